// Package histogram builds color histograms, the baseline center patch and
// saliency-weighted color/gradient histograms.
//
// Builders return raw counts unless noted; callers normalize.
package histogram

import (
	"errors"
	"fmt"

	cbimage "cbir-engine/internal/image"
)

// ErrInvalidBins is returned for bin counts below 1.
var ErrInvalidBins = errors.New("bin count must be at least 1")

// PatchRadius is the half-size of the baseline center window (7x7).
const PatchRadius = 3

// ChannelBin maps an 8-bit sample to one of bins equal-width buckets.
func ChannelBin(v uint8, bins int) int {
	return min(int(v)*bins/256, bins-1)
}

// RGBIndex returns the joint bin of a pixel: r*B^2 + g*B + b.
func RGBIndex(r, g, b uint8, bins int) int {
	return ChannelBin(r, bins)*bins*bins + ChannelBin(g, bins)*bins + ChannelBin(b, bins)
}

// RGB builds a joint RGB histogram with bins buckets per channel (bins^3 cells).
func RGB(r *cbimage.Raster, bins int) ([]float64, error) {
	if bins < 1 {
		return nil, fmt.Errorf("rgb histogram: %w", ErrInvalidBins)
	}
	hist := make([]float64, bins*bins*bins)
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			cr, cg, cb := r.RGB(x, y)
			hist[RGBIndex(cr, cg, cb, bins)]++
		}
	}
	return hist, nil
}

// Chromaticity builds an rg-chromaticity histogram of rBins x gBins cells.
// Pixels whose channel sum is zero carry no chromaticity and are skipped.
func Chromaticity(r *cbimage.Raster, rBins, gBins int) ([]float64, error) {
	if rBins < 1 || gBins < 1 {
		return nil, fmt.Errorf("chromaticity histogram: %w", ErrInvalidBins)
	}
	hist := make([]float64, rBins*gBins)
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			cr, cg, cb := r.RGB(x, y)
			sum := float64(cr) + float64(cg) + float64(cb)
			if sum < 1e-6 {
				continue
			}
			rb := min(int(float64(cr)/sum*float64(rBins)), rBins-1)
			gb := min(int(float64(cg)/sum*float64(gBins)), gBins-1)
			hist[rb*gBins+gb]++
		}
	}
	return hist, nil
}

// MultiRegion concatenates the RGB histograms of the top and bottom halves.
// The split row is Height/2; the bottom half takes the odd row.
func MultiRegion(r *cbimage.Raster, bins int) ([]float64, error) {
	mid := r.Height / 2
	top, err := RGB(r.Rows(0, mid), bins)
	if err != nil {
		return nil, err
	}
	bottom, err := RGB(r.Rows(mid, r.Height), bins)
	if err != nil {
		return nil, err
	}
	return append(top, bottom...), nil
}

// BaselinePatch flattens the 7x7 window centered on the image, channel
// interleaved in RGB order. Pixels outside the image are omitted, so small
// images yield fewer than 147 values.
func BaselinePatch(r *cbimage.Raster) []float64 {
	cy, cx := r.Height/2, r.Width/2
	out := make([]float64, 0, (2*PatchRadius+1)*(2*PatchRadius+1)*3)
	for y := cy - PatchRadius; y <= cy+PatchRadius; y++ {
		for x := cx - PatchRadius; x <= cx+PatchRadius; x++ {
			if y < 0 || y >= r.Height || x < 0 || x >= r.Width {
				continue
			}
			cr, cg, cb := r.RGB(x, y)
			out = append(out, float64(cr), float64(cg), float64(cb))
		}
	}
	return out
}
