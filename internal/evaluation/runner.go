package evaluation

import (
	"context"
	"time"

	"github.com/meditrace/ccam-assist/internal/domain/entities"
)

// SuggestionProvider is the slice of the suggestion engine the runner needs.
type SuggestionProvider interface {
	Suggest(ctx context.Context, acte *entities.Acte, forceRegenerate bool) (*entities.SuggestionResult, error)
}

// Runner scores the suggestion engine against a set of golden cases.
// Retrieved codes pass through the production guardrails before scoring
// so the metrics reflect what clinicians would actually see.
type Runner struct {
	suggestions SuggestionProvider
	guardrails  *Guardrails
}

func NewRunner(svc SuggestionProvider) *Runner {
	return &Runner{
		suggestions: svc,
		guardrails:  NewGuardrails(GuardrailConfig{MinAutoSuggestConfidence: 50}),
	}
}

func (r *Runner) Run(ctx context.Context, cases []GoldenCase) (*Summary, error) {
	summary := &Summary{
		TotalCases:   len(cases),
		ByDifficulty: make(map[string]*DifficultySummary),
	}

	for _, gc := range cases {
		acte := &entities.Acte{
			TypeActe:            gc.TypeActe,
			DescriptionClinique: gc.DescriptionClinique,
			DureeActe:           gc.DureeActe,
			Modificateurs:       gc.Modificateurs,
			DateActe:            time.Now(),
		}

		start := time.Now()
		result, err := r.suggestions.Suggest(ctx, acte, true)
		duration := time.Since(start)

		if err != nil {
			summary.ErroredCases++
			continue
		}

		codes := make([]string, len(result.Suggestions))
		for i, s := range result.Suggestions {
			codes[i] = s.Code
		}
		codes = r.guardrails.LimitSuggestions(codes)

		caseResult := CaseResult{
			CaseID:         gc.ID,
			RetrievedCodes: codes,
			RecallAt5:      RecallAtK(gc.ExpectedCodes, codes, 5),
			MRRAt5:         MRRAtK(gc.ExpectedCodes, codes, 5),
			Latency:        duration,
		}
		if best := result.Best(); best != nil {
			caseResult.TopCode = best.Code
			caseResult.TopConfidence = best.ScoreConfiance
			caseResult.AutoSuggest = r.guardrails.ShouldAutoSuggest(best.ScoreConfiance)
			if len(gc.ExpectedCodes) > 0 {
				caseResult.TopMatch = best.Code == gc.ExpectedCodes[0]
			}
		}

		r.updateSummary(summary, gc.Difficulty, caseResult)
	}

	r.finalizeSummary(summary)
	return summary, nil
}

func (r *Runner) updateSummary(s *Summary, difficulty string, res CaseResult) {
	s.AvgRecallAt5 += res.RecallAt5
	s.AvgMRRAt5 += res.MRRAt5
	s.AvgLatency += res.Latency
	if res.TopMatch {
		s.TopAccuracy++
	}
	if res.RecallAt5 > 0 {
		s.CasesWithHit++
	}
	if res.AutoSuggest {
		s.AutoSuggestRate++
	}

	if _, ok := s.ByDifficulty[difficulty]; !ok {
		s.ByDifficulty[difficulty] = &DifficultySummary{}
	}
	ds := s.ByDifficulty[difficulty]
	ds.Count++
	ds.AvgRecallAt5 += res.RecallAt5
	ds.AvgMRRAt5 += res.MRRAt5
	if res.TopMatch {
		ds.TopAccuracy++
	}
}

func (r *Runner) finalizeSummary(s *Summary) {
	// Averages cover only the cases that produced a result; errored
	// cases are reported separately instead of deflating the scores.
	scored := s.TotalCases - s.ErroredCases
	if scored > 0 {
		n := float64(scored)
		s.TopAccuracy /= n
		s.AvgRecallAt5 /= n
		s.AvgMRRAt5 /= n
		s.AutoSuggestRate /= n
		s.AvgLatency /= time.Duration(scored)
	}

	for _, ds := range s.ByDifficulty {
		if ds.Count > 0 {
			n := float64(ds.Count)
			ds.TopAccuracy /= n
			ds.AvgRecallAt5 /= n
			ds.AvgMRRAt5 /= n
		}
	}
}
