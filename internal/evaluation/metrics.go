package evaluation

// RecallAtK computes Recall@K: the fraction of expected codes found in the top-K suggestions.
// Returns 0.0 if expected is empty.
func RecallAtK(expected, retrieved []string, k int) float64 {
	if len(expected) == 0 {
		return 0.0
	}

	expectedSet := make(map[string]struct{}, len(expected))
	for _, e := range expected {
		expectedSet[e] = struct{}{}
	}

	topK := retrieved
	if k < len(topK) {
		topK = topK[:k]
	}

	found := 0
	for _, r := range topK {
		if _, ok := expectedSet[r]; ok {
			found++
		}
	}

	return float64(found) / float64(len(expected))
}

// MRRAtK computes Mean Reciprocal Rank at K: the reciprocal of the rank of the first expected code
// in the top-K suggestions. Returns 0.0 if no expected code is found in top-K.
func MRRAtK(expected, retrieved []string, k int) float64 {
	if len(expected) == 0 || len(retrieved) == 0 {
		return 0.0
	}

	expectedSet := make(map[string]struct{}, len(expected))
	for _, e := range expected {
		expectedSet[e] = struct{}{}
	}

	topK := retrieved
	if k < len(topK) {
		topK = topK[:k]
	}

	for i, r := range topK {
		if _, ok := expectedSet[r]; ok {
			return 1.0 / float64(i+1)
		}
	}

	return 0.0
}
