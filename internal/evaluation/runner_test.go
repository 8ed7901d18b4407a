package evaluation

import (
	"context"
	"errors"
	"testing"

	"github.com/meditrace/ccam-assist/internal/domain/entities"
)

type stubSuggestions struct {
	results map[string]*entities.SuggestionResult
	errs    map[string]error
	err     error
}

func (s *stubSuggestions) Suggest(_ context.Context, acte *entities.Acte, _ bool) (*entities.SuggestionResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	if err := s.errs[acte.DescriptionClinique]; err != nil {
		return nil, err
	}
	return s.results[acte.DescriptionClinique], nil
}

func suggestionsFor(codes ...string) *entities.SuggestionResult {
	result := &entities.SuggestionResult{}
	for _, code := range codes {
		result.Suggestions = append(result.Suggestions, entities.Suggestion{Code: code, ScoreConfiance: 80})
	}
	return result
}

func TestRunner_Run(t *testing.T) {
	cases := []GoldenCase{
		{ID: "c1", DescriptionClinique: "appendicectomie", ExpectedCodes: []string{"HHFA001"}, Difficulty: DifficultyEasy},
		{ID: "c2", DescriptionClinique: "fibroscopie", ExpectedCodes: []string{"HEQE002"}, Difficulty: DifficultyHard},
	}

	stub := &stubSuggestions{results: map[string]*entities.SuggestionResult{
		"appendicectomie": suggestionsFor("HHFA001", "HHFA002"),
		"fibroscopie":     suggestionsFor("GAQE001", "HEQE002"),
	}}

	summary, err := NewRunner(stub).Run(context.Background(), cases)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.TotalCases != 2 {
		t.Errorf("expected 2 cases, got %d", summary.TotalCases)
	}
	// c1 top match, c2 not: accuracy 0.5.
	if !almostEqual(summary.TopAccuracy, 0.5) {
		t.Errorf("expected top accuracy 0.5, got %f", summary.TopAccuracy)
	}
	// Both cases find their expected code in the top 5.
	if !almostEqual(summary.AvgRecallAt5, 1.0) {
		t.Errorf("expected recall 1.0, got %f", summary.AvgRecallAt5)
	}
	// MRR: c1 rank 1 (1.0), c2 rank 2 (0.5) -> 0.75.
	if !almostEqual(summary.AvgMRRAt5, 0.75) {
		t.Errorf("expected MRR 0.75, got %f", summary.AvgMRRAt5)
	}
	if summary.CasesWithHit != 2 {
		t.Errorf("expected 2 cases with hits, got %d", summary.CasesWithHit)
	}
	// Both top suggestions are at confidence 80, above the auto-suggest bar.
	if !almostEqual(summary.AutoSuggestRate, 1.0) {
		t.Errorf("expected auto-suggest rate 1.0, got %f", summary.AutoSuggestRate)
	}
	if summary.ByDifficulty[DifficultyEasy].Count != 1 {
		t.Errorf("expected 1 easy case, got %d", summary.ByDifficulty[DifficultyEasy].Count)
	}
}

func TestRunner_Run_SkipsFailedCases(t *testing.T) {
	cases := []GoldenCase{
		{ID: "c1", DescriptionClinique: "appendicectomie", ExpectedCodes: []string{"HHFA001"}, Difficulty: DifficultyEasy},
	}

	stub := &stubSuggestions{err: errors.New("provider down")}

	summary, err := NewRunner(stub).Run(context.Background(), cases)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.CasesWithHit != 0 {
		t.Errorf("expected no hits, got %d", summary.CasesWithHit)
	}
	if summary.ErroredCases != 1 {
		t.Errorf("expected 1 errored case, got %d", summary.ErroredCases)
	}
}

func TestRunner_Run_ErroredCasesDoNotDiluteAverages(t *testing.T) {
	cases := []GoldenCase{
		{ID: "c1", DescriptionClinique: "appendicectomie", ExpectedCodes: []string{"HHFA001"}, Difficulty: DifficultyEasy},
		{ID: "c2", DescriptionClinique: "fibroscopie", ExpectedCodes: []string{"HEQE002"}, Difficulty: DifficultyHard},
	}

	stub := &stubSuggestions{
		results: map[string]*entities.SuggestionResult{
			"appendicectomie": suggestionsFor("HHFA001"),
		},
		errs: map[string]error{
			"fibroscopie": errors.New("provider down"),
		},
	}

	summary, err := NewRunner(stub).Run(context.Background(), cases)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.TotalCases != 2 {
		t.Errorf("expected 2 cases, got %d", summary.TotalCases)
	}
	if summary.ErroredCases != 1 {
		t.Errorf("expected 1 errored case, got %d", summary.ErroredCases)
	}
	// The single scored case is a perfect hit; the errored one counts
	// separately instead of halving every average.
	if !almostEqual(summary.TopAccuracy, 1.0) {
		t.Errorf("expected top accuracy 1.0, got %f", summary.TopAccuracy)
	}
	if !almostEqual(summary.AvgRecallAt5, 1.0) {
		t.Errorf("expected recall 1.0, got %f", summary.AvgRecallAt5)
	}
	if !almostEqual(summary.AutoSuggestRate, 1.0) {
		t.Errorf("expected auto-suggest rate 1.0, got %f", summary.AutoSuggestRate)
	}
}

func TestRunner_Run_NoExpectedCodes(t *testing.T) {
	cases := []GoldenCase{
		{ID: "c1", DescriptionClinique: "appendicectomie", Difficulty: DifficultyEasy},
	}

	stub := &stubSuggestions{results: map[string]*entities.SuggestionResult{
		"appendicectomie": suggestionsFor("HHFA001"),
	}}

	summary, err := NewRunner(stub).Run(context.Background(), cases)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(summary.TopAccuracy, 0) {
		t.Errorf("expected top accuracy 0, got %f", summary.TopAccuracy)
	}
}
