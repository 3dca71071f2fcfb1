package image

import (
	"image"

	"gocv.io/x/gocv"
)

// Kernel is a dense 2-D filter anchored at its center.
type Kernel struct {
	Width  int
	Height int
	Data   []float64
}

// At returns the coefficient at column x, row y.
func (k Kernel) At(x, y int) float64 {
	return k.Data[y*k.Width+x]
}

// Outer builds the kernel col^T * row.
func Outer(col, row []float64) Kernel {
	k := Kernel{Width: len(row), Height: len(col), Data: make([]float64, len(row)*len(col))}
	for y, cv := range col {
		for x, rv := range row {
			k.Data[y*k.Width+x] = cv * rv
		}
	}
	return k
}

// centered anchors kernels at their middle coefficient.
var centered = image.Point{X: -1, Y: -1}

// filter runs op over p as a float64 Mat and copies the result back. Every
// filter below uses reflect-101 borders (gfedcb|abcdefgh|gfedcba).
func filter(p *Plane, op func(src gocv.Mat, dst *gocv.Mat) error) (*Plane, error) {
	if len(p.Data) == 0 {
		return NewPlane(p.Width, p.Height), nil
	}
	src, err := p.Mat()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	if err := op(src, &dst); err != nil {
		return nil, err
	}
	return PlaneFromMat(dst)
}

// Correlate applies k to p without flipping it.
func Correlate(p *Plane, k Kernel) (*Plane, error) {
	return filter(p, func(src gocv.Mat, dst *gocv.Mat) error {
		km, err := k.Mat()
		if err != nil {
			return err
		}
		defer km.Close()
		gocv.Filter2D(src, dst, gocv.MatTypeCV64F, km, centered, 0, gocv.BorderReflect101)
		return nil
	})
}

// SeparableCorrelate applies row horizontally and then col vertically.
func SeparableCorrelate(p *Plane, row, col []float64) (*Plane, error) {
	return filter(p, func(src gocv.Mat, dst *gocv.Mat) error {
		kx, err := vectorMat(row)
		if err != nil {
			return err
		}
		defer kx.Close()
		ky, err := vectorMat(col)
		if err != nil {
			return err
		}
		defer ky.Close()
		gocv.SepFilter2D(src, dst, gocv.MatTypeCV64F, kx, ky, centered, 0, gocv.BorderReflect101)
		return nil
	})
}

// GaussianBlur smooths p with a square ksize Gaussian. A non-positive sigma
// is derived from the size as 0.3*((ksize-1)/2-1)+0.8.
func GaussianBlur(p *Plane, ksize int, sigma float64) (*Plane, error) {
	return filter(p, func(src gocv.Mat, dst *gocv.Mat) error {
		gocv.GaussianBlur(src, dst, image.Pt(ksize, ksize), sigma, sigma, gocv.BorderReflect101)
		return nil
	})
}

// BoxFilter averages over a ksize x ksize window.
func BoxFilter(p *Plane, ksize int) (*Plane, error) {
	return filter(p, func(src gocv.Mat, dst *gocv.Mat) error {
		gocv.Blur(src, dst, image.Pt(ksize, ksize))
		return nil
	})
}

// NormalizeMinMax linearly maps p onto [lo, hi]. A constant plane maps to lo.
func NormalizeMinMax(p *Plane, lo, hi float64) (*Plane, error) {
	return filter(p, func(src gocv.Mat, dst *gocv.Mat) error {
		gocv.Normalize(src, dst, lo, hi, gocv.NormMinMax)
		return nil
	})
}
