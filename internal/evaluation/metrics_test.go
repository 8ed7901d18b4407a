package evaluation

import (
	"math"
	"testing"
)

const floatTolerance = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < floatTolerance
}

func TestRecallAtK_AllExpectedFound(t *testing.T) {
	expected := []string{"HHFA001", "HHFA002"}
	retrieved := []string{"HHFA001", "HHFA002", "GAQE001"}
	if got := RecallAtK(expected, retrieved, 5); !almostEqual(got, 1.0) {
		t.Errorf("expected 1.0, got %f", got)
	}
}

func TestRecallAtK_SomeExpectedMissing(t *testing.T) {
	expected := []string{"HHFA001", "HHFA002", "HHFA003", "HHFA004"}
	retrieved := []string{"HHFA001", "HHFA002", "ZZZZ001", "ZZZZ002", "ZZZZ003"}
	// 2 of 4 expected found
	if got := RecallAtK(expected, retrieved, 5); !almostEqual(got, 0.5) {
		t.Errorf("expected 0.5, got %f", got)
	}
}

func TestRecallAtK_CutoffExcludesLateHits(t *testing.T) {
	expected := []string{"HHFA001"}
	retrieved := []string{"a", "b", "c", "d", "e", "HHFA001"}
	if got := RecallAtK(expected, retrieved, 5); !almostEqual(got, 0.0) {
		t.Errorf("expected 0.0, got %f", got)
	}
}

func TestRecallAtK_EmptyInputs(t *testing.T) {
	if got := RecallAtK(nil, []string{"a"}, 5); !almostEqual(got, 0.0) {
		t.Errorf("expected 0.0 for empty expected, got %f", got)
	}
	if got := RecallAtK([]string{"a"}, nil, 5); !almostEqual(got, 0.0) {
		t.Errorf("expected 0.0 for empty retrieved, got %f", got)
	}
}

func TestMRRAtK_FirstPosition(t *testing.T) {
	expected := []string{"HHFA001"}
	retrieved := []string{"HHFA001", "b", "c"}
	if got := MRRAtK(expected, retrieved, 5); !almostEqual(got, 1.0) {
		t.Errorf("expected 1.0, got %f", got)
	}
}

func TestMRRAtK_ThirdPosition(t *testing.T) {
	expected := []string{"HHFA001"}
	retrieved := []string{"a", "b", "HHFA001"}
	if got := MRRAtK(expected, retrieved, 5); !almostEqual(got, 1.0/3.0) {
		t.Errorf("expected 1/3, got %f", got)
	}
}

func TestMRRAtK_NotFound(t *testing.T) {
	expected := []string{"HHFA001"}
	retrieved := []string{"a", "b", "c"}
	if got := MRRAtK(expected, retrieved, 5); !almostEqual(got, 0.0) {
		t.Errorf("expected 0.0, got %f", got)
	}
}

func TestMRRAtK_BeyondCutoff(t *testing.T) {
	expected := []string{"HHFA001"}
	retrieved := []string{"a", "b", "c", "d", "e", "HHFA001"}
	if got := MRRAtK(expected, retrieved, 5); !almostEqual(got, 0.0) {
		t.Errorf("expected 0.0, got %f", got)
	}
}
