package evaluation

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "golden.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func TestLoadGoldenCases_ValidFile(t *testing.T) {
	content := `[
		{"id": "c1", "type_acte": "chirurgie", "description_clinique": "appendicectomie coelioscopique", "duree_acte": 45, "modificateurs": ["U"], "expected_codes": ["HHFA001"], "difficulty": "easy"},
		{"id": "c2", "type_acte": "endoscopie", "description_clinique": "fibroscopie gastrique", "duree_acte": 20, "modificateurs": [], "expected_codes": ["HEQE002", "GAQE001"], "difficulty": "medium"}
	]`
	path := writeTempFile(t, content)

	cases, err := LoadGoldenCases(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cases) != 2 {
		t.Fatalf("expected 2 cases, got %d", len(cases))
	}
	if cases[0].ID != "c1" {
		t.Errorf("expected id c1, got %s", cases[0].ID)
	}
	if cases[0].ExpectedCodes[0] != "HHFA001" {
		t.Errorf("expected code HHFA001, got %s", cases[0].ExpectedCodes[0])
	}
	if len(cases[1].ExpectedCodes) != 2 {
		t.Errorf("expected 2 codes, got %d", len(cases[1].ExpectedCodes))
	}
}

func TestLoadGoldenCases_InvalidFile(t *testing.T) {
	_, err := LoadGoldenCases("/nonexistent/path.json")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadGoldenCases_InvalidJSON(t *testing.T) {
	path := writeTempFile(t, `not valid json`)
	_, err := LoadGoldenCases(path)
	if err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestValidateGoldenCases(t *testing.T) {
	valid := GoldenCase{
		ID:                  "c1",
		DescriptionClinique: "appendicectomie",
		ExpectedCodes:       []string{"HHFA001"},
		Difficulty:          "easy",
	}

	if err := ValidateGoldenCases([]GoldenCase{valid}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(GoldenCase) GoldenCase
	}{
		{"missing id", func(c GoldenCase) GoldenCase { c.ID = ""; return c }},
		{"missing description", func(c GoldenCase) GoldenCase { c.DescriptionClinique = ""; return c }},
		{"missing expected codes", func(c GoldenCase) GoldenCase { c.ExpectedCodes = nil; return c }},
		{"invalid difficulty", func(c GoldenCase) GoldenCase { c.Difficulty = "impossible"; return c }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateGoldenCases([]GoldenCase{tt.mutate(valid)}); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidateGoldenCases_DuplicateID(t *testing.T) {
	c := GoldenCase{
		ID:                  "c1",
		DescriptionClinique: "appendicectomie",
		ExpectedCodes:       []string{"HHFA001"},
		Difficulty:          "easy",
	}
	if err := ValidateGoldenCases([]GoldenCase{c, c}); err == nil {
		t.Error("expected duplicate id error")
	}
}
