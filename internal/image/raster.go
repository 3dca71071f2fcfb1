// Package image provides the pixel containers shared by every extractor,
// plus image loading and the 2-D filters the extractors are built on.
package image

import (
	"image"
	"image/color"

	"cbir-engine/pkg/colorutil"
)

// Raster is an 8-bit image with 1 (gray) or 3 (RGB) interleaved channels.
// Pixels are stored row-major; channel c of pixel (x, y) lives at
// Pix[(y*Width+x)*Channels+c].
type Raster struct {
	Width    int
	Height   int
	Channels int
	Pix      []uint8
}

// New allocates a zeroed raster.
func New(width, height, channels int) *Raster {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Raster{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]uint8, width*height*channels),
	}
}

// FromImage converts a decoded image into an RGB raster. Gray images keep a
// single channel. Alpha is discarded after un-premultiplying, so the same
// picture gives the same pixels whatever its in-memory color model.
func FromImage(img image.Image) *Raster {
	b := img.Bounds()
	switch src := img.(type) {
	case *image.Gray:
		r := New(b.Dx(), b.Dy(), 1)
		for y := 0; y < r.Height; y++ {
			off := src.PixOffset(b.Min.X, b.Min.Y+y)
			copy(r.Pix[y*r.Width:(y+1)*r.Width], src.Pix[off:off+r.Width])
		}
		return r
	case *image.RGBA:
		r := New(b.Dx(), b.Dy(), 3)
		for y := 0; y < r.Height; y++ {
			row := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
			for x := 0; x < r.Width; x++ {
				i := (y*r.Width + x) * 3
				px := row[x*4 : x*4+4]
				if px[3] != 0xff {
					// samples are premultiplied by alpha
					c := color.NRGBAModel.Convert(color.RGBA{R: px[0], G: px[1], B: px[2], A: px[3]}).(color.NRGBA)
					r.Pix[i], r.Pix[i+1], r.Pix[i+2] = c.R, c.G, c.B
					continue
				}
				r.Pix[i] = px[0]
				r.Pix[i+1] = px[1]
				r.Pix[i+2] = px[2]
			}
		}
		return r
	}

	r := New(b.Dx(), b.Dy(), 3)
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			i := (y*r.Width + x) * 3
			r.Pix[i] = c.R
			r.Pix[i+1] = c.G
			r.Pix[i+2] = c.B
		}
	}
	return r
}

// Empty reports whether the raster has no pixels.
func (r *Raster) Empty() bool {
	return r == nil || r.Width == 0 || r.Height == 0 || r.Channels == 0
}

// At returns channel c of pixel (x, y).
func (r *Raster) At(x, y, c int) uint8 {
	return r.Pix[(y*r.Width+x)*r.Channels+c]
}

// Set stores v in channel c of pixel (x, y).
func (r *Raster) Set(x, y, c int, v uint8) {
	r.Pix[(y*r.Width+x)*r.Channels+c] = v
}

// RGB returns the color of pixel (x, y). Gray rasters replicate the value.
func (r *Raster) RGB(x, y int) (uint8, uint8, uint8) {
	i := (y*r.Width + x) * r.Channels
	if r.Channels < 3 {
		v := r.Pix[i]
		return v, v, v
	}
	return r.Pix[i], r.Pix[i+1], r.Pix[i+2]
}

// Gray returns a single-channel copy using Rec.601 luma weights.
func (r *Raster) Gray() *Raster {
	if r.Channels == 1 {
		out := New(r.Width, r.Height, 1)
		copy(out.Pix, r.Pix)
		return out
	}
	out := New(r.Width, r.Height, 1)
	for i := range out.Pix {
		p := r.Pix[i*r.Channels:]
		out.Pix[i] = colorutil.Luma(p[0], p[1], p[2])
	}
	return out
}

// Rows returns a copy of the horizontal band [y0, y1).
func (r *Raster) Rows(y0, y1 int) *Raster {
	y0 = max(0, y0)
	y1 = min(r.Height, y1)
	if y1 < y0 {
		y1 = y0
	}
	out := New(r.Width, y1-y0, r.Channels)
	stride := r.Width * r.Channels
	copy(out.Pix, r.Pix[y0*stride:y1*stride])
	return out
}

// Channel returns channel c as a float plane.
func (r *Raster) Channel(c int) *Plane {
	p := NewPlane(r.Width, r.Height)
	for i := range p.Data {
		p.Data[i] = float64(r.Pix[i*r.Channels+c])
	}
	return p
}

// ToImage converts the raster back into a standard library image.
func (r *Raster) ToImage() image.Image {
	if r.Channels == 1 {
		img := image.NewGray(image.Rect(0, 0, r.Width, r.Height))
		copy(img.Pix, r.Pix)
		return img
	}
	img := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	for i := 0; i < r.Width*r.Height; i++ {
		img.Pix[i*4] = r.Pix[i*r.Channels]
		img.Pix[i*4+1] = r.Pix[i*r.Channels+1]
		img.Pix[i*4+2] = r.Pix[i*r.Channels+2]
		img.Pix[i*4+3] = 255
	}
	return img
}

// Plane is a single-channel grid of floats used for filter responses,
// gradient components and saliency maps.
type Plane struct {
	Width  int
	Height int
	Data   []float64
}

// NewPlane allocates a zeroed plane.
func NewPlane(width, height int) *Plane {
	return &Plane{Width: width, Height: height, Data: make([]float64, width*height)}
}

// At returns the value at (x, y).
func (p *Plane) At(x, y int) float64 {
	return p.Data[y*p.Width+x]
}

// Set stores v at (x, y).
func (p *Plane) Set(x, y int, v float64) {
	p.Data[y*p.Width+x] = v
}

// MinMax returns the smallest and largest values. An empty plane yields 0, 0.
func (p *Plane) MinMax() (lo, hi float64) {
	if len(p.Data) == 0 {
		return 0, 0
	}
	lo, hi = p.Data[0], p.Data[0]
	for _, v := range p.Data[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// Crop returns the top-left width x height region as a new plane.
func (p *Plane) Crop(width, height int) *Plane {
	width = min(width, p.Width)
	height = min(height, p.Height)
	out := NewPlane(width, height)
	for y := 0; y < height; y++ {
		copy(out.Data[y*width:(y+1)*width], p.Data[y*p.Width:y*p.Width+width])
	}
	return out
}

// Clone returns a deep copy.
func (p *Plane) Clone() *Plane {
	out := NewPlane(p.Width, p.Height)
	copy(out.Data, p.Data)
	return out
}
