// Package refine implements relevance feedback: a query vector that is
// pulled toward the vectors of results the user marks as relevant.
//
// A Refiner is not safe for concurrent use; callers serialize AddFeedback.
package refine

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
)

const (
	initialAlpha = 0.7
	minAlpha     = 0.3
)

// LengthMismatchError is returned when feedback has a different
// dimensionality than the query.
type LengthMismatchError struct {
	Expected int
	Actual   int
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("feedback length mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Alpha returns the weight kept by the current query at the given
// iteration: max(0.3, 0.7/iteration).
func Alpha(iteration int) float64 {
	if iteration < 1 {
		return 1
	}
	return math.Max(minAlpha, initialAlpha/float64(iteration))
}

// Refiner holds the query state. It starts at iteration 0 with the
// original vector and moves one iteration per accepted feedback.
type Refiner struct {
	original  []float64
	current   []float64
	iteration int
	history   [][]float64
}

// New creates a refiner starting from initial. The slice is copied.
func New(initial []float64) *Refiner {
	return &Refiner{
		original: slices.Clone(initial),
		current:  slices.Clone(initial),
	}
}

// AddFeedback blends selected into the query:
// query = alpha*query + (1-alpha)*selected. On a length mismatch the state
// is left untouched.
func (r *Refiner) AddFeedback(selected []float64) error {
	if len(selected) != len(r.current) {
		return &LengthMismatchError{Expected: len(r.current), Actual: len(selected)}
	}

	iteration := r.iteration + 1
	alpha := Alpha(iteration)

	next := slices.Clone(r.current)
	floats.Scale(alpha, next)
	floats.AddScaled(next, 1-alpha, selected)

	r.iteration = iteration
	r.current = next
	r.history = append(r.history, slices.Clone(selected))
	return nil
}

// Features returns a copy of the current query vector.
func (r *Refiner) Features() []float64 {
	return slices.Clone(r.current)
}

// Iteration returns the number of accepted feedback rounds.
func (r *Refiner) Iteration() int {
	return r.iteration
}

// History returns the feedback vectors in the order they were added.
func (r *Refiner) History() [][]float64 {
	out := make([][]float64, len(r.history))
	for i, h := range r.history {
		out[i] = slices.Clone(h)
	}
	return out
}

// Reset restores the original query and clears iteration and history.
func (r *Refiner) Reset() {
	r.current = slices.Clone(r.original)
	r.iteration = 0
	r.history = nil
}
