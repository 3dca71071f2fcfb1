package distance

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	tests := []struct {
		name     string
		fn       Func
		a, b     []float64
		expected float64
	}{
		{"ssd", SSD, []float64{1, 2, 3}, []float64{4, 6, 3}, 25},
		{"euclidean", Euclidean, []float64{1, 2, 3}, []float64{4, 6, 3}, 5},
		{"cosine orthogonal", Cosine, []float64{1, 0}, []float64{0, 3}, 1},
		{"cosine scaled", Cosine, []float64{1, 2}, []float64{2, 4}, 0},
		{"intersection disjoint", HistogramIntersection, []float64{1, 0}, []float64{0, 1}, 1},
		{"intersection half", HistogramIntersection, []float64{2, 2}, []float64{4, 0}, 0.5},
		{"intersection unnormalized", HistogramIntersection, []float64{1, 3}, []float64{10, 30}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := tt.fn(tt.a, tt.b)
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, d, 1e-9)
		})
	}
}

func TestIdenticalVectorsHaveZeroDistance(t *testing.T) {
	v := []float64{0.1, 3, 0, 7.5, 2}
	for _, m := range []Metric{MetricSSD, MetricEuclidean, MetricCosine, MetricIntersection} {
		t.Run(m.String(), func(t *testing.T) {
			fn, err := Provider(m)
			require.NoError(t, err)
			d, err := fn(v, v)
			require.NoError(t, err)
			assert.InDelta(t, 0, d, 1e-12)
		})
	}
}

func TestCosineOpposite(t *testing.T) {
	v := []float64{1, -2, 3.5}
	neg := []float64{-1, 2, -3.5}
	d, err := Cosine(v, neg)
	require.NoError(t, err)
	assert.InDelta(t, 2, d, 1e-12)
}

func TestLengthMismatch(t *testing.T) {
	for _, fn := range []Func{SSD, Euclidean, Cosine, HistogramIntersection} {
		_, err := fn([]float64{1, 2}, []float64{1, 2, 3})
		var lm *LengthMismatchError
		require.True(t, errors.As(err, &lm))
		assert.Equal(t, 2, lm.Left)
		assert.Equal(t, 3, lm.Right)
	}
}

func TestNormalizeSum(t *testing.T) {
	h := []float64{1, 3, 0, 4}
	n := NormalizeSum(h)
	var sum float64
	for _, v := range n {
		sum += v
	}
	assert.InDelta(t, 1, sum, 1e-12)
	assert.Equal(t, []float64{1, 3, 0, 4}, h, "input must not be modified")

	zero := []float64{0, 0, 0}
	assert.Equal(t, zero, NormalizeSum(zero))
}

func TestNormalizeL2(t *testing.T) {
	n := NormalizeL2([]float64{3, 4})
	assert.InDelta(t, 0.6, n[0], 1e-12)
	assert.InDelta(t, 0.8, n[1], 1e-12)

	tiny := []float64{1e-12, 0}
	assert.Equal(t, tiny, NormalizeL2(tiny))
}

func TestZeroVectors(t *testing.T) {
	z := []float64{0, 0}
	d, err := Cosine(z, []float64{1, 1})
	require.NoError(t, err)
	assert.InDelta(t, 1, d, 1e-12)

	d, err = HistogramIntersection(z, z)
	require.NoError(t, err)
	assert.InDelta(t, 1, d, 1e-12)
	assert.False(t, math.IsNaN(d))
}

func TestParseMetric(t *testing.T) {
	for _, m := range []Metric{MetricSSD, MetricEuclidean, MetricCosine, MetricIntersection} {
		got, err := ParseMetric(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := ParseMetric("manhattan")
	assert.ErrorIs(t, err, ErrUnknownMetric)

	_, err = Provider(Metric(99))
	assert.ErrorIs(t, err, ErrUnknownMetric)
}
