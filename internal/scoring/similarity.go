package scoring

import "math"

const denominatorEpsilon = 1e-12

// Cosine returns the cosine similarity of a and b. Vectors of different length
// are compared over their common prefix. Zero vectors yield 0.
func Cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	return dot / (math.Sqrt(normA)*math.Sqrt(normB) + denominatorEpsilon)
}

// IsZero reports whether v has no magnitude.
func IsZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// Rescale maps a similarity in [-1, 1] linearly onto [0, 100], rounded and clamped.
func Rescale(similarity float64) int {
	if math.IsNaN(similarity) {
		return MinScore
	}
	return Clamp(int(math.Round((similarity + 1) / 2 * MaxScore)))
}

// Clamp bounds score into [MinScore, MaxScore].
func Clamp(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}
