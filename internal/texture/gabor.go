package texture

import (
	"fmt"
	"image"
	"math"

	cbimage "cbir-engine/internal/image"

	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"
)

// GaborParams describes a bank of scales x orientations Gabor kernels.
type GaborParams struct {
	Scales       int
	Orientations int
	KernelSize   int
	Sigma        float64
	Lambda0      float64 // wavelength of scale 0; doubles per scale
	Gamma        float64 // spatial aspect ratio
	Psi          float64 // phase offset
	Bins         int
}

// DefaultGaborParams returns a 4 scale, 6 orientation bank of 31x31 kernels.
func DefaultGaborParams() GaborParams {
	return GaborParams{
		Scales:       4,
		Orientations: 6,
		KernelSize:   31,
		Sigma:        4,
		Lambda0:      8,
		Gamma:        0.5,
		Psi:          0,
		Bins:         8,
	}
}

// GaborKernel builds a real Gabor kernel of size ksize x ksize with OpenCV.
func GaborKernel(ksize int, sigma, theta, lambda, gamma, psi float64) (cbimage.Kernel, error) {
	m := gocv.GetGaborKernel(image.Pt(ksize, ksize), sigma, theta, lambda, gamma, psi, gocv.MatTypeCV64F)
	defer m.Close()
	k, err := cbimage.KernelFromMat(m)
	if err != nil {
		return cbimage.Kernel{}, fmt.Errorf("gabor kernel theta=%g lambda=%g: %w", theta, lambda, err)
	}
	return k, nil
}

// GaborBank returns the kernels ordered scale-major, orientation-minor.
func GaborBank(p GaborParams) ([]cbimage.Kernel, error) {
	bank := make([]cbimage.Kernel, 0, p.Scales*p.Orientations)
	for s := 0; s < p.Scales; s++ {
		lambda := p.Lambda0 * math.Pow(2, float64(s))
		for o := 0; o < p.Orientations; o++ {
			theta := float64(o) * math.Pi / float64(p.Orientations)
			k, err := GaborKernel(p.KernelSize, p.Sigma, theta, lambda, p.Gamma, p.Psi)
			if err != nil {
				return nil, err
			}
			bank = append(bank, k)
		}
	}
	return bank, nil
}

// ResponseHistogram histograms |response| over its observed [min, max]
// range and normalizes it to sum 1. A response that is constant up to
// rounding gives all zeros.
func ResponseHistogram(resp *cbimage.Plane, bins int) []float64 {
	hist := make([]float64, bins)
	abs := make([]float64, len(resp.Data))
	for i, v := range resp.Data {
		abs[i] = math.Abs(v)
	}
	mag := &cbimage.Plane{Width: resp.Width, Height: resp.Height, Data: abs}
	lo, hi := mag.MinMax()
	if hi-lo <= 1e-9*math.Max(1, hi) {
		return hist
	}
	width := (hi - lo) / float64(bins)
	for _, v := range abs {
		hist[min(int((v-lo)/width), bins-1)]++
	}
	n := float64(len(abs))
	for i := range hist {
		hist[i] /= n
	}
	return hist
}

// GaborFeatures filters the grayscale image with every kernel in the bank
// and concatenates the response histograms. Filters run concurrently; the
// output order always follows the bank.
func GaborFeatures(gray *cbimage.Raster, bank []cbimage.Kernel, bins int) ([]float64, error) {
	if gray.Channels != 1 {
		gray = gray.Gray()
	}
	src := gray.Channel(0)

	hists := make([][]float64, len(bank))
	var g errgroup.Group
	for i, k := range bank {
		g.Go(func() error {
			resp, err := cbimage.Correlate(src, k)
			if err != nil {
				return err
			}
			hists[i] = ResponseHistogram(resp, bins)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]float64, 0, len(bank)*bins)
	for _, h := range hists {
		out = append(out, h...)
	}
	return out, nil
}
