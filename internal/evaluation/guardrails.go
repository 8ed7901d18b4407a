package evaluation

type GuardrailConfig struct {
	MinAutoSuggestConfidence float64
	MaxSuggestions           int
}

// Guardrails bounds what the suggestion engine is allowed to surface.
type Guardrails struct {
	config GuardrailConfig
}

func NewGuardrails(config GuardrailConfig) *Guardrails {
	if config.MaxSuggestions <= 0 {
		config.MaxSuggestions = 5
	}
	return &Guardrails{config: config}
}

// ShouldAutoSuggest reports whether a suggestion is confident enough to
// surface without a clarification question.
func (g *Guardrails) ShouldAutoSuggest(confidence float64) bool {
	return confidence >= g.config.MinAutoSuggestConfidence
}

// LimitSuggestions truncates a candidate list to the configured maximum.
func (g *Guardrails) LimitSuggestions(codes []string) []string {
	if len(codes) > g.config.MaxSuggestions {
		return codes[:g.config.MaxSuggestions]
	}
	return codes
}
