package evaluation

import "testing"

func TestGuardrails_ShouldAutoSuggest(t *testing.T) {
	g := NewGuardrails(GuardrailConfig{MinAutoSuggestConfidence: 50})

	if !g.ShouldAutoSuggest(75) {
		t.Error("expected confidence 75 to pass")
	}
	if !g.ShouldAutoSuggest(50) {
		t.Error("expected confidence at threshold to pass")
	}
	if g.ShouldAutoSuggest(49.9) {
		t.Error("expected confidence below threshold to fail")
	}
}

func TestGuardrails_LimitSuggestions(t *testing.T) {
	g := NewGuardrails(GuardrailConfig{MaxSuggestions: 2})

	limited := g.LimitSuggestions([]string{"a", "b", "c", "d"})
	if len(limited) != 2 {
		t.Errorf("expected 2 suggestions, got %d", len(limited))
	}

	short := g.LimitSuggestions([]string{"a"})
	if len(short) != 1 {
		t.Errorf("expected 1 suggestion, got %d", len(short))
	}
}

func TestGuardrails_Defaults(t *testing.T) {
	g := NewGuardrails(GuardrailConfig{})

	codes := make([]string, 10)
	if got := g.LimitSuggestions(codes); len(got) != 5 {
		t.Errorf("expected default cap of 5, got %d", len(got))
	}
}
