// Package texture implements gray-level co-occurrence statistics and the
// Gabor and Laws filter banks.
package texture

import (
	"errors"
	"fmt"
	"math"

	cbimage "cbir-engine/internal/image"

	"gonum.org/v1/gonum/mat"
)

// Angles are the canonical co-occurrence directions in degrees.
var Angles = []int{0, 45, 90, 135}

// ErrInvalidAngle is returned for directions other than 0, 45, 90 or 135.
var ErrInvalidAngle = errors.New("co-occurrence angle must be 0, 45, 90 or 135")

// Quantize maps gray levels into [0, levels) by integer division by 256/levels.
func Quantize(gray *cbimage.Raster, levels int) []int {
	step := max(1, 256/levels)
	q := make([]int, gray.Width*gray.Height)
	for i := range q {
		q[i] = min(levels-1, max(0, int(gray.Pix[i*gray.Channels])/step))
	}
	return q
}

// Offset returns the neighbour displacement for distance d along angle.
// Rows grow downward, so the 45 and 90 degree neighbours lie above.
func Offset(d, angle int) (dx, dy int, err error) {
	switch angle {
	case 0:
		return d, 0, nil
	case 45:
		return d, -d, nil
	case 90:
		return 0, -d, nil
	case 135:
		return -d, -d, nil
	}
	return 0, 0, fmt.Errorf("%w: got %d", ErrInvalidAngle, angle)
}

// CooccurrenceMatrix is a levels x levels joint probability matrix. Entries
// sum to 1, or are all zero when no neighbour pair fit inside the image.
type CooccurrenceMatrix struct {
	*mat.Dense
	Pairs int
}

// Cooccurrence counts level pairs (p, p+offset) for every pixel whose
// neighbour is in bounds and normalizes by the number of pairs.
func Cooccurrence(gray *cbimage.Raster, d, angle, levels int) (*CooccurrenceMatrix, error) {
	if levels < 1 {
		return nil, fmt.Errorf("co-occurrence levels must be positive: %d", levels)
	}
	dx, dy, err := Offset(d, angle)
	if err != nil {
		return nil, err
	}
	if gray.Channels != 1 {
		gray = gray.Gray()
	}

	q := Quantize(gray, levels)
	counts := make([]float64, levels*levels)
	var pairs int
	for y := 0; y < gray.Height; y++ {
		ny := y + dy
		if ny < 0 || ny >= gray.Height {
			continue
		}
		for x := 0; x < gray.Width; x++ {
			nx := x + dx
			if nx < 0 || nx >= gray.Width {
				continue
			}
			counts[q[y*gray.Width+x]*levels+q[ny*gray.Width+nx]]++
			pairs++
		}
	}

	m := mat.NewDense(levels, levels, counts)
	if pairs > 0 {
		m.Scale(1/float64(pairs), m)
	}
	return &CooccurrenceMatrix{Dense: m, Pairs: pairs}, nil
}

// Descriptors are the Haralick statistics of a co-occurrence matrix.
type Descriptors struct {
	Energy      float64
	Entropy     float64
	Contrast    float64
	Homogeneity float64
}

// Slice returns the descriptors in energy, entropy, contrast, homogeneity order.
func (d Descriptors) Slice() []float64 {
	return []float64{d.Energy, d.Entropy, d.Contrast, d.Homogeneity}
}

// Haralick computes energy, entropy (natural log), contrast and homogeneity.
func Haralick(m *CooccurrenceMatrix) Descriptors {
	var d Descriptors
	rows, cols := m.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			p := m.At(i, j)
			if p <= 0 {
				continue
			}
			diff := float64((i - j) * (i - j))
			d.Energy += p * p
			d.Entropy -= p * math.Log(p)
			d.Contrast += diff * p
			d.Homogeneity += p / (1 + diff)
		}
	}
	return d
}

// GLCMFeatures returns the four Haralick descriptors for each canonical
// angle, concatenated angle by angle (16 values).
func GLCMFeatures(gray *cbimage.Raster, d, levels int) ([]float64, error) {
	out := make([]float64, 0, 4*len(Angles))
	for _, angle := range Angles {
		m, err := Cooccurrence(gray, d, angle, levels)
		if err != nil {
			return nil, err
		}
		out = append(out, Haralick(m).Slice()...)
	}
	return out, nil
}
