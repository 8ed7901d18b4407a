package entities

import "time"

// Suggestion is one ranked CCAM code candidate.
type Suggestion struct {
	Code             string   `json:"code"`
	Libelle          string   `json:"libelle"`
	Modificateurs    []string `json:"modificateurs"`
	ScoreConfiance   float64  `json:"score_confiance"`
	Explication      string   `json:"explication"`
	Incompatibilites []string `json:"incompatibilites"`

	// RuleValid and RuleReasons carry the compatibility rule engine
	// verdict that adjusted the confidence score.
	RuleValid   bool     `json:"rule_valid"`
	RuleReasons []string `json:"rule_reasons,omitempty"`
}

// SuggestionResult is the full answer of the suggestion engine for one
// acte. Ephemeral; produced per request and cached by fingerprint.
type SuggestionResult struct {
	Suggestions            []Suggestion `json:"suggestions"`
	ScoreConfianceGlobal   float64      `json:"score_confiance_global"`
	ExplicationGlobale     string       `json:"explication_globale"`
	QuestionsClarification []string     `json:"questions_clarification"`
	Alertes                []string     `json:"alertes"`

	GeneratedAt time.Time `json:"generated_at"`
	FromCache   bool      `json:"from_cache"`
}

// Best returns the top-ranked suggestion, or nil when there is none.
func (r *SuggestionResult) Best() *Suggestion {
	if len(r.Suggestions) == 0 {
		return nil
	}
	return &r.Suggestions[0]
}
