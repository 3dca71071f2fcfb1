// Package analysis measures global image characteristics and derives
// per-category feature weights from them.
package analysis

import (
	"math"

	"cbir-engine/internal/gradient"
	cbimage "cbir-engine/internal/image"
	"cbir-engine/pkg/colorutil"

	"gonum.org/v1/gonum/stat"
)

const (
	hueBins  = 32
	gridSize = 4
)

// Characteristics summarizes an image; each field is nominally in [0, 1].
type Characteristics struct {
	ColorVariance     float64
	TextureStrength   float64
	SpatialComplexity float64
	BrightnessRange   float64
}

// Analyze computes all characteristics of r.
func Analyze(r *cbimage.Raster) (Characteristics, error) {
	if r.Empty() {
		return Characteristics{}, nil
	}
	gray := r.Gray()
	texture, err := TextureStrength(gray)
	if err != nil {
		return Characteristics{}, err
	}
	return Characteristics{
		ColorVariance:     (HSVSpread(r) + HueEntropy(r)) / 2,
		TextureStrength:   texture,
		SpatialComplexity: SpatialComplexity(r),
		BrightnessRange:   BrightnessRange(gray),
	}, nil
}

func hsvChannels(r *cbimage.Raster) (hue, sat []float64) {
	n := r.Width * r.Height
	hue = make([]float64, 0, n)
	sat = make([]float64, 0, n)
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			cr, cg, cb := r.RGB(x, y)
			h, s, _ := colorutil.RGBToHSV(float64(cr), float64(cg), float64(cb))
			// 8-bit OpenCV HSV stores rounded values
			hue = append(hue, math.Round(h))
			sat = append(sat, math.Round(s))
		}
	}
	return hue, sat
}

// HSVSpread returns 0.5*(hue stddev/180) + 0.5*(saturation stddev/255).
func HSVSpread(r *cbimage.Raster) float64 {
	hue, sat := hsvChannels(r)
	return 0.5*popStdDev(hue)/180 + 0.5*popStdDev(sat)/255
}

// HueEntropy returns the Shannon entropy of a 32-bin hue histogram over
// [0, 180), normalized by log2(32).
func HueEntropy(r *cbimage.Raster) float64 {
	hue, _ := hsvChannels(r)
	if len(hue) == 0 {
		return 0
	}
	hist := make([]float64, hueBins)
	for _, h := range hue {
		if h >= 180 {
			continue
		}
		hist[int(h*hueBins/180)]++
	}
	var entropy float64
	for _, c := range hist {
		p := c / float64(len(hue))
		if p > 0 {
			entropy -= p * math.Log2(p)
		}
	}
	return entropy / math.Log2(hueBins)
}

// MeanGradient returns the mean Sobel magnitude of a gray raster divided by 255.
func MeanGradient(gray *cbimage.Raster) (float64, error) {
	f, err := gradient.Compute(gray)
	if err != nil {
		return 0, err
	}
	return stat.Mean(f.Magnitude(0).Data, nil) / 255, nil
}

// TextureStrength averages the mean gradient with the Canny edge ratio.
func TextureStrength(gray *cbimage.Raster) (float64, error) {
	mean, err := MeanGradient(gray)
	if err != nil {
		return 0, err
	}
	edges, err := gradient.EdgeRatio(gray)
	if err != nil {
		return 0, err
	}
	return (mean + edges) / 2, nil
}

// SpatialComplexity returns the population standard deviation of the mean
// brightness over a 4x4 grid, divided by 255. Images too small to give every
// cell a pixel score 0.
func SpatialComplexity(r *cbimage.Raster) float64 {
	rh, rw := r.Height/gridSize, r.Width/gridSize
	if rh == 0 || rw == 0 {
		return 0
	}

	means := make([]float64, 0, gridSize*gridSize)
	for gy := 0; gy < gridSize; gy++ {
		for gx := 0; gx < gridSize; gx++ {
			var sum float64
			for y := gy * rh; y < (gy+1)*rh; y++ {
				for x := gx * rw; x < (gx+1)*rw; x++ {
					cr, cg, cb := r.RGB(x, y)
					sum += (float64(cr) + float64(cg) + float64(cb)) / 3
				}
			}
			means = append(means, sum/float64(rh*rw))
		}
	}
	return popStdDev(means) / 255
}

// BrightnessRange returns (max - min) gray level divided by 255.
func BrightnessRange(gray *cbimage.Raster) float64 {
	if len(gray.Pix) == 0 {
		return 0
	}
	lo, hi := gray.Pix[0], gray.Pix[0]
	for _, v := range gray.Pix {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return float64(hi-lo) / 255
}

func popStdDev(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	_, variance := stat.PopMeanVariance(x, nil)
	return math.Sqrt(variance)
}
