package evaluation

import "time"

// Difficulty buckets for golden cases.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// GoldenCase is one labeled clinical scenario with its expected coding
// outcome, used to score the suggestion engine against a reference set.
type GoldenCase struct {
	ID                  string   `json:"id"`
	TypeActe            string   `json:"type_acte"`
	DescriptionClinique string   `json:"description_clinique"`
	DureeActe           int      `json:"duree_acte"`
	Modificateurs       []string `json:"modificateurs"`
	ExpectedCodes       []string `json:"expected_codes"`
	Difficulty          string   `json:"difficulty"`
}

// CaseResult holds the evaluation outcome for a single golden case.
type CaseResult struct {
	CaseID         string
	TopCode        string
	TopConfidence  float64
	RetrievedCodes []string
	RecallAt5      float64
	MRRAt5         float64
	TopMatch       bool
	AutoSuggest    bool
	Latency        time.Duration
}

// Summary holds aggregate metrics across all golden cases. Averages
// cover the scored cases only; ErroredCases counts the rest.
type Summary struct {
	TotalCases      int
	ErroredCases    int
	TopAccuracy     float64
	AvgRecallAt5    float64
	AvgMRRAt5       float64
	AutoSuggestRate float64
	AvgLatency      time.Duration
	CasesWithHit    int
	ByDifficulty    map[string]*DifficultySummary
}

// DifficultySummary holds metrics grouped by case difficulty.
type DifficultySummary struct {
	Count        int
	TopAccuracy  float64
	AvgRecallAt5 float64
	AvgMRRAt5    float64
}
