package core

import "math"

// DistanceFunc computes the dissimilarity between two vectors. Lower values
// mean more similar. All built-in functions return +Inf on dimension mismatch
// so mismatched vectors sink to the bottom of any ranking.
type DistanceFunc func(a, b []float32) float64

// Metric names accepted by configuration.
const (
	MetricCosine    = "cosine"
	MetricEuclidean = "euclidean"
	MetricDot       = "dot"
)

// DistanceByName resolves a metric name to its function. Unknown names
// fall back to cosine.
func DistanceByName(name string) DistanceFunc {
	switch name {
	case MetricEuclidean:
		return EuclideanDistance
	case MetricDot:
		return DotProductDistance
	default:
		return CosineDistance
	}
}

// CosineDistance is 1 minus cosine similarity, ranging from 0 (identical
// direction) to 2 (opposite). Zero vectors are maximally distant from
// everything.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}

	var dot, normA, normB float64
	for i := 0; i < len(a); i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return math.Inf(1)
	}

	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}

// EuclideanDistance is the L2 distance between two vectors.
func EuclideanDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}

	var sum float64
	for i := 0; i < len(a); i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}

	return math.Sqrt(sum)
}

// DotProductDistance negates the dot product so that higher similarity maps
// to lower distance. Only meaningful when vectors are normalized.
func DotProductDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}

	var dot float64
	for i := 0; i < len(a); i++ {
		dot += float64(a[i]) * float64(b[i])
	}

	return -dot
}
