// Package distance provides the vector distance metrics used to compare
// feature vectors, plus the normalization helpers they rely on.
//
// All functions are pure. Vectors of different lengths are never compared;
// they produce a *LengthMismatchError instead.
package distance

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Epsilon is the norm/sum below which normalization is skipped.
const Epsilon = 1e-10

// ErrUnknownMetric is returned when a metric name or value is not recognized.
var ErrUnknownMetric = errors.New("unknown distance metric")

// LengthMismatchError indicates two vectors of different dimensionality.
type LengthMismatchError struct {
	Left  int
	Right int
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("vector length mismatch: %d vs %d", e.Left, e.Right)
}

func checkLengths(a, b []float64) error {
	if len(a) != len(b) {
		return &LengthMismatchError{Left: len(a), Right: len(b)}
	}
	return nil
}

// SSD returns the sum of squared differences.
func SSD(a, b []float64) (float64, error) {
	if err := checkLengths(a, b); err != nil {
		return 0, err
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum, nil
}

// Euclidean returns the L2 distance.
func Euclidean(a, b []float64) (float64, error) {
	if err := checkLengths(a, b); err != nil {
		return 0, err
	}
	if len(a) == 0 {
		return 0, nil
	}
	return floats.Distance(a, b, 2), nil
}

// Cosine returns 1 minus the cosine similarity of a and b, in [0, 2].
// Zero vectors are left unnormalized, so their distance to anything is 1.
func Cosine(a, b []float64) (float64, error) {
	if err := checkLengths(a, b); err != nil {
		return 0, err
	}
	if len(a) == 0 {
		return 0, nil
	}
	dot := floats.Dot(NormalizeL2(a), NormalizeL2(b))
	return 1 - math.Max(-1, math.Min(1, dot)), nil
}

// HistogramIntersection returns 1 minus the overlap of the sum-normalized
// histograms, in [0, 1] for non-negative inputs.
func HistogramIntersection(a, b []float64) (float64, error) {
	if err := checkLengths(a, b); err != nil {
		return 0, err
	}
	if len(a) == 0 {
		return 0, nil
	}
	na, nb := NormalizeSum(a), NormalizeSum(b)
	var overlap float64
	for i := range na {
		overlap += math.Min(na[i], nb[i])
	}
	return 1 - overlap, nil
}

// NormalizeL2 returns a copy of v scaled to unit length. If the norm is
// below Epsilon, v itself is returned.
func NormalizeL2(v []float64) []float64 {
	if len(v) == 0 {
		return v
	}
	norm := floats.Norm(v, 2)
	if norm < Epsilon {
		return v
	}
	out := slices.Clone(v)
	floats.Scale(1/norm, out)
	return out
}

// NormalizeSum returns a copy of v scaled so its entries sum to 1. If the
// sum is below Epsilon, v itself is returned.
func NormalizeSum(v []float64) []float64 {
	if len(v) == 0 {
		return v
	}
	sum := floats.Sum(v)
	if sum < Epsilon {
		return v
	}
	out := slices.Clone(v)
	floats.Scale(1/sum, out)
	return out
}

// Metric selects a distance function.
type Metric int

const (
	MetricSSD Metric = iota
	MetricEuclidean
	MetricCosine
	MetricIntersection
)

func (m Metric) String() string {
	switch m {
	case MetricSSD:
		return "ssd"
	case MetricEuclidean:
		return "euclidean"
	case MetricCosine:
		return "cosine"
	case MetricIntersection:
		return "intersection"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// ParseMetric converts a metric name (as produced by String) to a Metric.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ssd":
		return MetricSSD, nil
	case "euclidean", "l2":
		return MetricEuclidean, nil
	case "cosine":
		return MetricCosine, nil
	case "intersection", "histogram", "histogram-intersection":
		return MetricIntersection, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMetric, s)
}

// Func computes the distance between two vectors.
type Func func(a, b []float64) (float64, error)

// Provider returns the distance function for the given metric.
func Provider(m Metric) (Func, error) {
	switch m {
	case MetricSSD:
		return SSD, nil
	case MetricEuclidean:
		return Euclidean, nil
	case MetricCosine:
		return Cosine, nil
	case MetricIntersection:
		return HistogramIntersection, nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownMetric, m)
	}
}
