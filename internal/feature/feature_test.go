package feature

import (
	"math"
	"testing"

	cbimage "cbir-engine/internal/image"
	"cbir-engine/internal/saliency"
	"cbir-engine/internal/texture"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pattern(w, h int) *cbimage.Raster {
	r := cbimage.New(w, h, 3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r.Set(x, y, 0, uint8(x*17))
			r.Set(x, y, 1, uint8(y*29))
			r.Set(x, y, 2, uint8((x+y)*11))
		}
	}
	return r
}

func smallParams() Params {
	return DefaultParams().WithGaborBank(2, 3, 4)
}

func TestExtractorDimensions(t *testing.T) {
	p := smallParams()
	p.Gabor.KernelSize = 9

	tests := []struct {
		ext      Extractor
		dim      int
		category Category
	}{
		{Baseline(), 147, CategorySpatial},
		{RGBHistogram(8), 512, CategoryColor},
		{Chromaticity(16, 16), 256, CategoryColor},
		{MultiRegion(8), 1024, CategorySpatial},
		{GradientHistogram(16), 16, CategoryTexture},
		{GLCM(1, 16), 16, CategoryTexture},
		{Gabor(p.Gabor), 2 * 3 * 4, CategoryTexture},
		{Laws(), 25, CategoryTexture},
		{Saliency(saliency.Contrast, 8, 16), 512 + 16, CategorySaliency},
		{ColorTexture(p), 512 + 16, CategoryColor},
		{AdvancedTexture(p), 16 + 24 + 25, CategoryTexture},
	}

	img := pattern(20, 18)
	for _, tt := range tests {
		t.Run(tt.ext.Name(), func(t *testing.T) {
			v, err := tt.ext.Extract(img)
			require.NoError(t, err)
			assert.Len(t, v, tt.dim)
			assert.Equal(t, tt.category, tt.ext.Category())
		})
	}
}

func TestDefaultAdvancedTextureDimension(t *testing.T) {
	p := DefaultParams()
	p.Gabor.KernelSize = 5
	v, err := AdvancedTexture(p).Extract(pattern(12, 12))
	require.NoError(t, err)
	assert.Len(t, v, 233)
}

func TestEmptyImage(t *testing.T) {
	for _, e := range []Extractor{Baseline(), RGBHistogram(8), NewComposite(Laws())} {
		_, err := e.Extract(cbimage.New(0, 4, 3))
		assert.ErrorIs(t, err, ErrEmptyImage, e.Name())
	}
}

func TestInvalidBins(t *testing.T) {
	_, err := RGBHistogram(0).Extract(pattern(4, 4))
	assert.Error(t, err)
	_, err = GradientHistogram(0).Extract(pattern(4, 4))
	assert.Error(t, err)
}

func TestNamesIdentifyConfiguration(t *testing.T) {
	assert.NotEqual(t, RGBHistogram(8).Name(), RGBHistogram(4).Name())
	assert.Equal(t, "rgb8+gradient16", ColorTexture(DefaultParams()).Name())
	assert.NotEqual(t,
		Saliency(saliency.Spectral, 8, 16).Name(),
		Saliency(saliency.Contrast, 8, 16).Name())

	base := texture.DefaultGaborParams()
	assert.Equal(t, "gabor-s4-o6-b8-k31-sig4-lam8-gam0.5-psi0", Gabor(base).Name())
	for _, tweak := range []func(*texture.GaborParams){
		func(p *texture.GaborParams) { p.Sigma = 3 },
		func(p *texture.GaborParams) { p.Lambda0 = 6 },
		func(p *texture.GaborParams) { p.Gamma = 1 },
		func(p *texture.GaborParams) { p.Psi = math.Pi / 2 },
	} {
		p := base
		tweak(&p)
		assert.NotEqual(t, Gabor(base).Name(), Gabor(p).Name())
	}
}

func TestSplit(t *testing.T) {
	parts, err := Split(Vector{1, 2, 3, 4, 5}, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, Vector{1, 2}, parts[0])
	assert.Equal(t, Vector{3, 4, 5}, parts[1])

	// parts must not alias past their end
	parts[0] = append(parts[0], 9)
	assert.Equal(t, Vector{3, 4, 5}, parts[1])

	_, err = Split(Vector{1, 2}, 3)
	assert.Error(t, err)
}

func TestParamsBuilders(t *testing.T) {
	base := DefaultParams()
	p := base.WithRGBBins(4).WithChromaBins(8, 4).WithGLCM(2, 8).WithSaliency(saliency.Contrast)
	assert.Equal(t, 4, p.RGBBins)
	assert.Equal(t, 8, p.ChromaRBins)
	assert.Equal(t, 4, p.ChromaGBins)
	assert.Equal(t, 2, p.GLCMDistance)
	assert.Equal(t, saliency.Contrast, p.SaliencyMethod)
	assert.Equal(t, 8, base.RGBBins, "builders return copies")
}

func TestPrecomputed(t *testing.T) {
	e := Precomputed("dnn", CategoryEmbedding)
	assert.Equal(t, "dnn", e.Name())
	assert.Equal(t, CategoryEmbedding, e.Category())
	_, err := e.Extract(pattern(2, 2))
	assert.ErrorIs(t, err, ErrNotExtractable)
	assert.False(t, Extractable(e))
	assert.True(t, Extractable(Laws()))
}
