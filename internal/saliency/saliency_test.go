package saliency

import (
	"testing"

	cbimage "cbir-engine/internal/image"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// square draws a red size x size block centered on a gray w x h image.
func square(w, h, size int) *cbimage.Raster {
	r := cbimage.New(w, h, 3)
	for i := range r.Pix {
		r.Pix[i] = 90
	}
	x0, y0 := (w-size)/2, (h-size)/2
	for y := y0; y < y0+size; y++ {
		for x := x0; x < x0+size; x++ {
			r.Set(x, y, 0, 230)
			r.Set(x, y, 1, 20)
			r.Set(x, y, 2, 20)
		}
	}
	return r
}

func TestOptimalDFTSize(t *testing.T) {
	tests := map[int]int{0: 1, 1: 1, 7: 8, 11: 12, 13: 15, 17: 18, 31: 32, 97: 100, 120: 120}
	for n, want := range tests {
		assert.Equal(t, want, OptimalDFTSize(n), "n=%d", n)
	}
}

func TestSpectralResidual(t *testing.T) {
	img := square(37, 29, 6)
	m, err := SpectralResidual(img)
	require.NoError(t, err)
	assert.Equal(t, 37, m.Width)
	assert.Equal(t, 29, m.Height)

	lo, hi := m.MinMax()
	assert.InDelta(t, 0, lo, 1e-12)
	assert.InDelta(t, 1, hi, 1e-12)

	again, err := Compute(img, Spectral)
	require.NoError(t, err)
	for i := range m.Data {
		assert.InDelta(t, m.Data[i], again.Data[i], 1e-12)
	}
}

func TestContrastMap(t *testing.T) {
	m, err := ContrastMap(square(32, 32, 8))
	require.NoError(t, err)
	assert.Greater(t, m.At(16, 16), m.At(1, 1))
	assert.InDelta(t, 1, m.At(16, 16), 0.05)

	flat := cbimage.New(8, 8, 3)
	m, err = Compute(flat, Contrast)
	require.NoError(t, err)
	for _, v := range m.Data {
		assert.Zero(t, v)
	}
}

func TestGrayInput(t *testing.T) {
	g := square(16, 16, 4).Gray()
	m, err := Compute(g, Spectral)
	require.NoError(t, err)
	assert.Len(t, m.Data, 256)
}

func TestEmpty(t *testing.T) {
	_, err := SpectralResidual(cbimage.New(0, 0, 3))
	assert.ErrorIs(t, err, ErrEmptyImage)
	_, err = ContrastMap(cbimage.New(3, 0, 3))
	assert.ErrorIs(t, err, ErrEmptyImage)
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("contrast")
	require.NoError(t, err)
	assert.Equal(t, Contrast, m)

	m, err = ParseMethod("")
	require.NoError(t, err)
	assert.Equal(t, Spectral, m)

	_, err = ParseMethod("graph")
	assert.Error(t, err)
}
