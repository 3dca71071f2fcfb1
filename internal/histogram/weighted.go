package histogram

import (
	"errors"
	"fmt"

	"cbir-engine/internal/gradient"
	cbimage "cbir-engine/internal/image"
)

// ErrExtentMismatch is returned when a weight map does not cover the image exactly.
var ErrExtentMismatch = errors.New("weight map extent does not match image")

func checkExtent(r *cbimage.Raster, w *cbimage.Plane) error {
	if w == nil || w.Width != r.Width || w.Height != r.Height {
		return ErrExtentMismatch
	}
	return nil
}

// normalizeByWeight divides by the accumulated weight; a zero total leaves zeros.
func normalizeByWeight(hist []float64, total float64) []float64 {
	if total > 0 {
		for i := range hist {
			hist[i] /= total
		}
	}
	return hist
}

// WeightedRGB builds a joint RGB histogram where each pixel contributes its
// weight instead of 1, normalized by the total weight.
func WeightedRGB(r *cbimage.Raster, weights *cbimage.Plane, bins int) ([]float64, error) {
	if bins < 1 {
		return nil, fmt.Errorf("weighted rgb histogram: %w", ErrInvalidBins)
	}
	if err := checkExtent(r, weights); err != nil {
		return nil, err
	}

	hist := make([]float64, bins*bins*bins)
	var total float64
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			w := weights.At(x, y)
			cr, cg, cb := r.RGB(x, y)
			hist[RGBIndex(cr, cg, cb, bins)] += w
			total += w
		}
	}
	return normalizeByWeight(hist, total), nil
}

// WeightedGradient builds a gradient magnitude histogram over [0, max] of
// the grayscale image, weighting each pixel and normalizing by total weight.
func WeightedGradient(r *cbimage.Raster, weights *cbimage.Plane, bins int) ([]float64, error) {
	if bins < 1 {
		return nil, fmt.Errorf("weighted gradient histogram: %w", ErrInvalidBins)
	}
	if err := checkExtent(r, weights); err != nil {
		return nil, err
	}

	mag, err := gradient.GrayMagnitude(r)
	if err != nil {
		return nil, err
	}
	_, hi := mag.MinMax()

	hist := make([]float64, bins)
	var total float64
	for i, v := range mag.Data {
		w := weights.Data[i]
		hist[gradient.Bin(v, hi, bins)] += w
		total += w
	}
	return normalizeByWeight(hist, total), nil
}
