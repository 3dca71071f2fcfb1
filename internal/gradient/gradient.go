// Package gradient computes Sobel gradient fields, magnitude histograms and
// Canny edge maps.
package gradient

import (
	"math"

	cbimage "cbir-engine/internal/image"

	"gocv.io/x/gocv"
)

// Field holds the signed horizontal and vertical derivatives of every
// channel of an image. Border rows and columns are zero.
type Field struct {
	Width  int
	Height int
	GX     []*cbimage.Plane
	GY     []*cbimage.Plane
}

// Compute derives the per-channel gradient field of r with 3x3 Sobel
// operators.
func Compute(r *cbimage.Raster) (*Field, error) {
	f := &Field{Width: r.Width, Height: r.Height}
	for c := 0; c < r.Channels; c++ {
		p := r.Channel(c)
		gx, err := sobel(p, 1, 0)
		if err != nil {
			return nil, err
		}
		gy, err := sobel(p, 0, 1)
		if err != nil {
			return nil, err
		}
		zeroBorder(gx)
		zeroBorder(gy)
		f.GX = append(f.GX, gx)
		f.GY = append(f.GY, gy)
	}
	return f, nil
}

func sobel(p *cbimage.Plane, dx, dy int) (*cbimage.Plane, error) {
	if len(p.Data) == 0 {
		return cbimage.NewPlane(p.Width, p.Height), nil
	}
	src, err := p.Mat()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.Sobel(src, &dst, gocv.MatTypeCV64F, dx, dy, 3, 1, 0, gocv.BorderReflect101)
	return cbimage.PlaneFromMat(dst)
}

// zeroBorder clears the one-pixel frame where the 3x3 support is incomplete.
func zeroBorder(p *cbimage.Plane) {
	if len(p.Data) == 0 {
		return
	}
	for x := 0; x < p.Width; x++ {
		p.Data[x] = 0
		if p.Height > 1 {
			p.Data[(p.Height-1)*p.Width+x] = 0
		}
	}
	for y := 0; y < p.Height; y++ {
		p.Data[y*p.Width] = 0
		if p.Width > 1 {
			p.Data[y*p.Width+p.Width-1] = 0
		}
	}
}

// Channels returns the number of channels in the field.
func (f *Field) Channels() int {
	return len(f.GX)
}

// Magnitude returns sqrt(gx^2 + gy^2) for channel c.
func (f *Field) Magnitude(c int) *cbimage.Plane {
	out := cbimage.NewPlane(f.Width, f.Height)
	gx, gy := f.GX[c].Data, f.GY[c].Data
	for i := range out.Data {
		out.Data[i] = math.Hypot(gx[i], gy[i])
	}
	return out
}

// Combined returns, per pixel, the largest magnitude over all channels.
func (f *Field) Combined() *cbimage.Plane {
	out := cbimage.NewPlane(f.Width, f.Height)
	for c := range f.GX {
		m := f.Magnitude(c)
		for i, v := range m.Data {
			if v > out.Data[i] {
				out.Data[i] = v
			}
		}
	}
	return out
}

// GrayMagnitude returns the gradient magnitude of the grayscale version of r.
func GrayMagnitude(r *cbimage.Raster) (*cbimage.Plane, error) {
	f, err := Compute(r.Gray())
	if err != nil {
		return nil, err
	}
	return f.Magnitude(0), nil
}

// Bin returns the histogram bin of v over [0, hi] split into bins buckets.
// A zero range places everything in bin 0.
func Bin(v, hi float64, bins int) int {
	if hi <= 0 {
		return 0
	}
	b := int(v / (hi / float64(bins)))
	return max(0, min(bins-1, b))
}

// Histogram counts the values of p over [0, max(p)] into bins buckets.
func Histogram(p *cbimage.Plane, bins int) []float64 {
	hist := make([]float64, bins)
	if bins < 1 {
		return hist
	}
	_, hi := p.MinMax()
	for _, v := range p.Data {
		hist[Bin(v, hi, bins)]++
	}
	return hist
}
