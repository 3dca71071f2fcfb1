package feature

import (
	"fmt"
	"strings"
	"sync"

	"cbir-engine/internal/gradient"
	"cbir-engine/internal/histogram"
	cbimage "cbir-engine/internal/image"
	"cbir-engine/internal/saliency"
	"cbir-engine/internal/texture"
)

// funcExtractor adapts a plain function to the Extractor interface.
type funcExtractor struct {
	name     string
	category Category
	fn       func(*cbimage.Raster) (Vector, error)
}

func (e *funcExtractor) Name() string       { return e.name }
func (e *funcExtractor) Category() Category { return e.category }

func (e *funcExtractor) Extract(img *cbimage.Raster) (Vector, error) {
	if img.Empty() {
		return nil, ErrEmptyImage
	}
	v, err := e.fn(img)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.name, err)
	}
	return v, nil
}

// Baseline returns the 7x7 center patch extractor.
func Baseline() Extractor {
	return &funcExtractor{
		name:     "baseline",
		category: CategorySpatial,
		fn: func(img *cbimage.Raster) (Vector, error) {
			return histogram.BaselinePatch(img), nil
		},
	}
}

// RGBHistogram returns a joint RGB histogram extractor (bins^3 values).
func RGBHistogram(bins int) Extractor {
	return &funcExtractor{
		name:     fmt.Sprintf("rgb%d", bins),
		category: CategoryColor,
		fn: func(img *cbimage.Raster) (Vector, error) {
			return histogram.RGB(img, bins)
		},
	}
}

// Chromaticity returns an rg-chromaticity histogram extractor.
func Chromaticity(rBins, gBins int) Extractor {
	return &funcExtractor{
		name:     fmt.Sprintf("chroma%dx%d", rBins, gBins),
		category: CategoryColor,
		fn: func(img *cbimage.Raster) (Vector, error) {
			return histogram.Chromaticity(img, rBins, gBins)
		},
	}
}

// MultiRegion returns the top/bottom half RGB histogram extractor (2*bins^3 values).
func MultiRegion(bins int) Extractor {
	return &funcExtractor{
		name:     fmt.Sprintf("multi%d", bins),
		category: CategorySpatial,
		fn: func(img *cbimage.Raster) (Vector, error) {
			return histogram.MultiRegion(img, bins)
		},
	}
}

// GradientHistogram returns a grayscale gradient magnitude histogram extractor.
func GradientHistogram(bins int) Extractor {
	return &funcExtractor{
		name:     fmt.Sprintf("gradient%d", bins),
		category: CategoryTexture,
		fn: func(img *cbimage.Raster) (Vector, error) {
			if bins < 1 {
				return nil, histogram.ErrInvalidBins
			}
			mag, err := gradient.GrayMagnitude(img)
			if err != nil {
				return nil, err
			}
			return gradient.Histogram(mag, bins), nil
		},
	}
}

// GLCM returns the 16-value Haralick descriptor extractor.
func GLCM(distance, levels int) Extractor {
	return &funcExtractor{
		name:     fmt.Sprintf("glcm-d%d-l%d", distance, levels),
		category: CategoryTexture,
		fn: func(img *cbimage.Raster) (Vector, error) {
			return texture.GLCMFeatures(img.Gray(), distance, levels)
		},
	}
}

// Gabor returns a Gabor bank response histogram extractor. The bank is
// built on first use and shared by every call.
func Gabor(p texture.GaborParams) Extractor {
	var (
		once    sync.Once
		bank    []cbimage.Kernel
		bankErr error
	)
	return &funcExtractor{
		name: fmt.Sprintf("gabor-s%d-o%d-b%d-k%d-sig%g-lam%g-gam%g-psi%g",
			p.Scales, p.Orientations, p.Bins, p.KernelSize, p.Sigma, p.Lambda0, p.Gamma, p.Psi),
		category: CategoryTexture,
		fn: func(img *cbimage.Raster) (Vector, error) {
			once.Do(func() { bank, bankErr = texture.GaborBank(p) })
			if bankErr != nil {
				return nil, bankErr
			}
			return texture.GaborFeatures(img.Gray(), bank, p.Bins)
		},
	}
}

// Laws returns the 25-value Laws energy extractor.
func Laws() Extractor {
	return &funcExtractor{
		name:     "laws",
		category: CategoryTexture,
		fn: func(img *cbimage.Raster) (Vector, error) {
			return texture.LawsFeatures(img.Gray())
		},
	}
}

// Saliency returns the saliency-weighted color and gradient histogram
// extractor; the two histograms are concatenated color first.
func Saliency(m saliency.Method, colorBins, textureBins int) Extractor {
	return &funcExtractor{
		name:     fmt.Sprintf("saliency-%s-c%d-t%d", m, colorBins, textureBins),
		category: CategorySaliency,
		fn: func(img *cbimage.Raster) (Vector, error) {
			sal, err := saliency.Compute(img, m)
			if err != nil {
				return nil, err
			}
			color, err := histogram.WeightedRGB(img, sal, colorBins)
			if err != nil {
				return nil, err
			}
			tex, err := histogram.WeightedGradient(img, sal, textureBins)
			if err != nil {
				return nil, err
			}
			return append(color, tex...), nil
		},
	}
}

// Composite concatenates the outputs of several extractors. Its category
// is that of the first part.
type Composite struct {
	Parts []Extractor
}

// NewComposite builds a composite from parts.
func NewComposite(parts ...Extractor) *Composite {
	return &Composite{Parts: parts}
}

// Name joins the part names with '+'.
func (c *Composite) Name() string {
	names := make([]string, len(c.Parts))
	for i, p := range c.Parts {
		names[i] = p.Name()
	}
	return strings.Join(names, "+")
}

func (c *Composite) Category() Category {
	if len(c.Parts) == 0 {
		return CategoryColor
	}
	return c.Parts[0].Category()
}

func (c *Composite) Extract(img *cbimage.Raster) (Vector, error) {
	if img.Empty() {
		return nil, ErrEmptyImage
	}
	var out Vector
	for _, p := range c.Parts {
		v, err := p.Extract(img)
		if err != nil {
			return nil, err
		}
		out = append(out, v...)
	}
	return out, nil
}

// AdvancedTexture combines GLCM, Gabor and Laws features (16 + S*O*bins + 25 values).
func AdvancedTexture(p Params) *Composite {
	return NewComposite(GLCM(p.GLCMDistance, p.GLCMLevels), Gabor(p.Gabor), Laws())
}

// ColorTexture combines an RGB histogram with a gradient histogram.
func ColorTexture(p Params) *Composite {
	return NewComposite(RGBHistogram(p.RGBBins), GradientHistogram(p.GradientBins))
}
