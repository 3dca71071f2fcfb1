// Package saliency computes per-pixel visual saliency maps normalized to [0, 1].
package saliency

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"strings"

	cbimage "cbir-engine/internal/image"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Method selects the saliency algorithm.
type Method int

const (
	// Spectral is the frequency-domain spectral residual method.
	Spectral Method = iota
	// Contrast measures each pixel's distance from the mean color.
	Contrast
)

func (m Method) String() string {
	switch m {
	case Spectral:
		return "spectral"
	case Contrast:
		return "contrast"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// ParseMethod converts a method name to a Method.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "spectral", "spectral-residual":
		return Spectral, nil
	case "contrast":
		return Contrast, nil
	}
	return 0, fmt.Errorf("unknown saliency method %q", s)
}

// ErrEmptyImage is returned when the input has no pixels.
var ErrEmptyImage = errors.New("saliency of empty image")

const (
	spectralBlurSize = 11
	contrastBlurSize = 15
)

// Compute returns the saliency map of r using method m.
func Compute(r *cbimage.Raster, m Method) (*cbimage.Plane, error) {
	switch m {
	case Spectral:
		return SpectralResidual(r)
	case Contrast:
		return ContrastMap(r)
	}
	return nil, fmt.Errorf("unknown saliency method %v", m)
}

// OptimalDFTSize returns the smallest n' >= n whose only prime factors are 2, 3 and 5.
func OptimalDFTSize(n int) int {
	if n <= 1 {
		return 1
	}
	for m := n; ; m++ {
		v := m
		for _, p := range []int{2, 3, 5} {
			for v%p == 0 {
				v /= p
			}
		}
		if v == 1 {
			return m
		}
	}
}

// SpectralResidual computes the spectral residual saliency of r. Each Lab
// channel is processed concurrently.
func SpectralResidual(r *cbimage.Raster) (*cbimage.Plane, error) {
	if r.Empty() {
		return nil, ErrEmptyImage
	}
	lab, err := r.LabPlanes()
	if err != nil {
		return nil, err
	}

	var maps [3]*cbimage.Plane
	var g errgroup.Group
	for c := range lab {
		g.Go(func() (err error) {
			maps[c], err = channelResidual(lab[c])
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := cbimage.NewPlane(r.Width, r.Height)
	for _, m := range maps {
		for i, v := range m.Data {
			out.Data[i] += v / 3
		}
	}
	return smooth(out, spectralBlurSize)
}

// smooth blurs a raw saliency map and rescales it onto [0, 1].
func smooth(p *cbimage.Plane, ksize int) (*cbimage.Plane, error) {
	blurred, err := cbimage.GaussianBlur(p, ksize, 0)
	if err != nil {
		return nil, err
	}
	return cbimage.NormalizeMinMax(blurred, 0, 1)
}

// channelResidual returns the spatial magnitude of the inverse transform
// of exp(log-amplitude residual) combined with the original phase.
func channelResidual(p *cbimage.Plane) (*cbimage.Plane, error) {
	h, w := OptimalDFTSize(p.Height), OptimalDFTSize(p.Width)
	freq := make([]complex128, w*h)
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			freq[y*w+x] = complex(p.At(x, y), 0)
		}
	}
	fft2(freq, w, h, false)

	logAmp := cbimage.NewPlane(w, h)
	phase := make([]float64, w*h)
	for i, v := range freq {
		logAmp.Data[i] = math.Log(cmplx.Abs(v) + 1)
		phase[i] = cmplx.Phase(v)
	}
	avg, err := cbimage.BoxFilter(logAmp, 3)
	if err != nil {
		return nil, err
	}
	for i := range freq {
		freq[i] = cmplx.Rect(math.Exp(logAmp.Data[i]-avg.Data[i]), phase[i])
	}
	fft2(freq, w, h, true)

	mag := cbimage.NewPlane(w, h)
	for i, v := range freq {
		mag.Data[i] = cmplx.Abs(v)
	}
	return mag.Crop(p.Width, p.Height), nil
}

// fft2 transforms a row-major w x h grid in place, rows then columns. The
// inverse is unscaled.
func fft2(data []complex128, w, h int, inverse bool) {
	transform := func(fft *fourier.CmplxFFT, seq []complex128) []complex128 {
		if inverse {
			return fft.Sequence(seq, seq)
		}
		return fft.Coefficients(seq, seq)
	}

	rowFFT := fourier.NewCmplxFFT(w)
	for y := 0; y < h; y++ {
		transform(rowFFT, data[y*w:(y+1)*w])
	}

	colFFT := fourier.NewCmplxFFT(h)
	col := make([]complex128, h)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			col[y] = data[y*w+x]
		}
		transform(colFFT, col)
		for y := 0; y < h; y++ {
			data[y*w+x] = col[y]
		}
	}
}

// ContrastMap scores each pixel by its Lab distance from the image's mean color.
func ContrastMap(r *cbimage.Raster) (*cbimage.Plane, error) {
	if r.Empty() {
		return nil, ErrEmptyImage
	}
	lab, err := r.LabPlanes()
	if err != nil {
		return nil, err
	}

	n := float64(r.Width * r.Height)
	var mean [3]float64
	for c := range lab {
		for _, v := range lab[c].Data {
			mean[c] += v
		}
		mean[c] /= n
	}

	out := cbimage.NewPlane(r.Width, r.Height)
	for i := range out.Data {
		var d float64
		for c := range lab {
			diff := lab[c].Data[i] - mean[c]
			d += diff * diff
		}
		out.Data[i] = math.Sqrt(d)
	}
	return smooth(out, contrastBlurSize)
}
