package analysis

import (
	"math"
	"testing"

	cbimage "cbir-engine/internal/image"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fill(w, h int, r, g, b uint8) *cbimage.Raster {
	img := cbimage.New(w, h, 3)
	for i := 0; i < w*h; i++ {
		img.Pix[i*3], img.Pix[i*3+1], img.Pix[i*3+2] = r, g, b
	}
	return img
}

func checker(w, h, cell int) *cbimage.Raster {
	img := cbimage.New(w, h, 3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/cell+y/cell)%2 == 0 {
				img.Set(x, y, 0, 255)
				img.Set(x, y, 1, 255)
				img.Set(x, y, 2, 255)
			}
		}
	}
	return img
}

func assertWeightInvariant(t *testing.T, w FeatureWeights) {
	t.Helper()
	assert.GreaterOrEqual(t, w.Color, MinWeight-1e-12)
	assert.GreaterOrEqual(t, w.Texture, MinWeight-1e-12)
	assert.GreaterOrEqual(t, w.Spatial, MinWeight-1e-12)
	assert.InDelta(t, 1, w.Color+w.Texture+w.Spatial, 1e-9)
}

func TestAdaptiveWeightsInvariant(t *testing.T) {
	tests := []struct {
		name string
		c    Characteristics
	}{
		{"zero", Characteristics{}},
		{"color dominated", Characteristics{ColorVariance: 1, BrightnessRange: 1}},
		{"texture only", Characteristics{TextureStrength: 0.8}},
		{"spatial only", Characteristics{SpatialComplexity: 0.01}},
		{"balanced", Characteristics{0.5, 0.5, 0.5, 0.5}},
		{"nan", Characteristics{ColorVariance: math.NaN()}},
		{"negative", Characteristics{TextureStrength: -1, SpatialComplexity: 0.2}},
		{"skewed", Characteristics{ColorVariance: 0.9, TextureStrength: 0.05, SpatialComplexity: 0.05}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertWeightInvariant(t, ComputeAdaptiveWeights(tt.c))
		})
	}
}

func TestAdaptiveWeightsValues(t *testing.T) {
	w := ComputeAdaptiveWeights(Characteristics{})
	assert.InDelta(t, 0.33, w.Color, 1e-12)
	assert.InDelta(t, 0.33, w.Texture, 1e-12)
	assert.InDelta(t, 0.34, w.Spatial, 1e-12)

	w = ComputeAdaptiveWeights(Characteristics{TextureStrength: 1})
	assert.InDelta(t, 0.8, w.Texture, 1e-12)
	assert.InDelta(t, 0.1, w.Color, 1e-12)
	assert.InDelta(t, 0.1, w.Spatial, 1e-12)

	// color importance 0.6*0.5 + 0.4*0.5 = 0.5, texture 0.3, spatial 0.2
	w = ComputeAdaptiveWeights(Characteristics{ColorVariance: 0.5, BrightnessRange: 0.5, TextureStrength: 0.3, SpatialComplexity: 0.2})
	assert.InDelta(t, 0.5, w.Color, 1e-12)
	assert.InDelta(t, 0.3, w.Texture, 1e-12)
	assert.InDelta(t, 0.2, w.Spatial, 1e-12)
}

func TestAnalyzeFlatImage(t *testing.T) {
	c, err := Analyze(fill(16, 16, 120, 120, 120))
	require.NoError(t, err)
	assert.Zero(t, c.ColorVariance)
	assert.Zero(t, c.TextureStrength)
	assert.Zero(t, c.SpatialComplexity)
	assert.Zero(t, c.BrightnessRange)
	assertWeightInvariant(t, ComputeAdaptiveWeights(c))
}

func TestAnalyzeChecker(t *testing.T) {
	c, err := Analyze(checker(32, 32, 8))
	require.NoError(t, err)
	assert.InDelta(t, 1, c.BrightnessRange, 1e-12)
	// 4x4 grid of 8x8 cells aligns with the checker: means alternate 0 and 255
	assert.InDelta(t, 0.5, c.SpatialComplexity, 1e-12)
	assert.Greater(t, c.TextureStrength, 0.0)
	assert.Zero(t, HueEntropy(checker(32, 32, 8)), "gray pixels all have hue 0")
}

func TestHueEntropy(t *testing.T) {
	img := cbimage.New(2, 1, 3)
	img.Set(0, 0, 0, 255) // red: hue 0
	img.Set(1, 0, 2, 255) // blue: hue 120
	assert.InDelta(t, 1.0/5.0, HueEntropy(img), 1e-12)
}

func TestSpatialComplexityTinyImage(t *testing.T) {
	assert.Zero(t, SpatialComplexity(fill(3, 3, 10, 200, 30)))
}

func TestAnalyzeEmpty(t *testing.T) {
	c, err := Analyze(cbimage.New(0, 0, 3))
	require.NoError(t, err)
	assert.Equal(t, Characteristics{}, c)
}
