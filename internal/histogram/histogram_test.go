package histogram

import (
	"testing"

	cbimage "cbir-engine/internal/image"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fill(w, h int, r, g, b uint8) *cbimage.Raster {
	img := cbimage.New(w, h, 3)
	for i := 0; i < w*h; i++ {
		img.Pix[i*3] = r
		img.Pix[i*3+1] = g
		img.Pix[i*3+2] = b
	}
	return img
}

// gradientImage varies every channel with position so many bins are hit.
func gradientImage(w, h int) *cbimage.Raster {
	img := cbimage.New(w, h, 3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, 0, uint8(x*255/max(1, w-1)))
			img.Set(x, y, 1, uint8(y*255/max(1, h-1)))
			img.Set(x, y, 2, uint8((x*y)%256))
		}
	}
	return img
}

func sum(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x
	}
	return s
}

func TestRGBPureRed(t *testing.T) {
	h, err := RGB(fill(2, 2, 255, 0, 0), 2)
	require.NoError(t, err)
	require.Len(t, h, 8)
	// r_bin=1, g_bin=0, b_bin=0 -> 1*4 + 0 + 0
	assert.Equal(t, []float64{0, 0, 0, 0, 4, 0, 0, 0}, h)
}

func TestRGBCountsEveryPixel(t *testing.T) {
	img := gradientImage(13, 9)
	for _, bins := range []int{1, 2, 3, 8, 16} {
		h, err := RGB(img, bins)
		require.NoError(t, err)
		assert.Len(t, h, bins*bins*bins)
		assert.Equal(t, float64(13*9), sum(h), "bins=%d", bins)
	}

	_, err := RGB(img, 0)
	assert.ErrorIs(t, err, ErrInvalidBins)
}

func TestChannelBin(t *testing.T) {
	assert.Equal(t, 0, ChannelBin(0, 8))
	assert.Equal(t, 0, ChannelBin(31, 8))
	assert.Equal(t, 1, ChannelBin(32, 8))
	assert.Equal(t, 7, ChannelBin(255, 8))
	assert.Equal(t, 0, ChannelBin(255, 1))
}

func TestChromaticity(t *testing.T) {
	img := fill(3, 1, 0, 0, 0)
	img.Set(1, 0, 0, 200) // pure red
	img.Set(2, 0, 0, 50)  // gray-ish
	img.Set(2, 0, 1, 50)
	img.Set(2, 0, 2, 50)

	h, err := Chromaticity(img, 4, 4)
	require.NoError(t, err)
	assert.Equal(t, 2.0, sum(h), "black pixel skipped")
	assert.Equal(t, 1.0, h[3*4+0], "r=1 clamps to last bin")
	assert.Equal(t, 1.0, h[1*4+1], "r=g=1/3")
}

func TestMultiRegion(t *testing.T) {
	img := fill(2, 3, 0, 0, 0)
	for x := 0; x < 2; x++ {
		for y := 1; y < 3; y++ {
			img.Set(x, y, 2, 255)
		}
	}
	h, err := MultiRegion(img, 2)
	require.NoError(t, err)
	require.Len(t, h, 16)

	// top half is row 0 (black), bottom is rows 1-2 (blue)
	assert.Equal(t, 2.0, h[0])
	assert.Equal(t, 4.0, h[8+1])
	assert.Equal(t, 6.0, sum(h))
}

func TestBaselinePatch(t *testing.T) {
	img := gradientImage(20, 20)
	p := BaselinePatch(img)
	require.Len(t, p, 147)
	r, g, b := img.RGB(7, 7)
	assert.Equal(t, []float64{float64(r), float64(g), float64(b)}, p[:3])

	small := BaselinePatch(fill(4, 2, 1, 2, 3))
	// rows -2..4 clipped to 0..1, cols -1..5 clipped to 0..3
	assert.Len(t, small, 2*4*3)
	assert.Equal(t, []float64{1, 2, 3}, small[:3])
}

func TestWeightedRGB(t *testing.T) {
	img := fill(2, 1, 255, 0, 0)
	img.Set(1, 0, 0, 0) // second pixel black

	w := &cbimage.Plane{Width: 2, Height: 1, Data: []float64{0.75, 0.25}}
	h, err := WeightedRGB(img, w, 2)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, h[4], 1e-12)
	assert.InDelta(t, 0.25, h[0], 1e-12)
	assert.InDelta(t, 1, sum(h), 1e-12)

	zero := cbimage.NewPlane(2, 1)
	h, err = WeightedRGB(img, zero, 2)
	require.NoError(t, err)
	assert.Zero(t, sum(h))

	_, err = WeightedRGB(img, cbimage.NewPlane(3, 1), 2)
	assert.ErrorIs(t, err, ErrExtentMismatch)
}

func TestWeightedGradient(t *testing.T) {
	img := gradientImage(12, 10)
	w := cbimage.NewPlane(12, 10)
	for i := range w.Data {
		w.Data[i] = 0.5
	}
	h, err := WeightedGradient(img, w, 16)
	require.NoError(t, err)
	assert.Len(t, h, 16)
	assert.InDelta(t, 1, sum(h), 1e-9)

	_, err = WeightedGradient(img, nil, 16)
	assert.ErrorIs(t, err, ErrExtentMismatch)
}
