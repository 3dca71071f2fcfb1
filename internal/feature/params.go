package feature

import (
	"cbir-engine/internal/saliency"
	"cbir-engine/internal/texture"
)

// Params holds every tunable of the extractors.
type Params struct {
	RGBBins int // bins per channel for joint RGB histograms

	ChromaRBins int
	ChromaGBins int

	GradientBins int

	GLCMDistance int
	GLCMLevels   int

	Gabor texture.GaborParams

	SaliencyMethod      saliency.Method
	SaliencyColorBins   int
	SaliencyTextureBins int
}

// DefaultParams returns the standard extractor configuration.
func DefaultParams() Params {
	return Params{
		RGBBins: 8,

		ChromaRBins: 16,
		ChromaGBins: 16,

		GradientBins: 16,

		GLCMDistance: 1,
		GLCMLevels:   16,

		Gabor: texture.DefaultGaborParams(),

		SaliencyMethod:      saliency.Spectral,
		SaliencyColorBins:   8,
		SaliencyTextureBins: 16,
	}
}

// WithRGBBins returns a copy of params with a different RGB bin count.
func (p Params) WithRGBBins(bins int) Params {
	p.RGBBins = bins
	return p
}

// WithChromaBins returns a copy of params with different chromaticity bin counts.
func (p Params) WithChromaBins(rBins, gBins int) Params {
	p.ChromaRBins = rBins
	p.ChromaGBins = gBins
	return p
}

// WithGradientBins returns a copy of params with a different gradient bin count.
func (p Params) WithGradientBins(bins int) Params {
	p.GradientBins = bins
	return p
}

// WithGLCM returns a copy of params with a different co-occurrence distance and level count.
func (p Params) WithGLCM(distance, levels int) Params {
	p.GLCMDistance = distance
	p.GLCMLevels = levels
	return p
}

// WithGaborBank returns a copy of params with a different filter bank shape.
// Kernel size, sigma and the base wavelength keep their current values.
func (p Params) WithGaborBank(scales, orientations, bins int) Params {
	p.Gabor.Scales = scales
	p.Gabor.Orientations = orientations
	p.Gabor.Bins = bins
	return p
}

// WithSaliency returns a copy of params using a different saliency method.
func (p Params) WithSaliency(m saliency.Method) Params {
	p.SaliencyMethod = m
	return p
}
