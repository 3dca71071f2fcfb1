package gradient

import (
	"fmt"

	cbimage "cbir-engine/internal/image"

	"gocv.io/x/gocv"
)

// Default hysteresis thresholds for DetectEdges.
const (
	DefaultLowThreshold  = 50
	DefaultHighThreshold = 150
)

// canny returns the 8-bit Canny edge map of a gray raster. The caller
// closes it.
func canny(gray *cbimage.Raster, low, high float64) (gocv.Mat, error) {
	if gray.Channels != 1 {
		return gocv.Mat{}, fmt.Errorf("edge detection needs a gray raster, got %d channels", gray.Channels)
	}
	src, err := gray.Mat()
	if err != nil {
		return gocv.Mat{}, err
	}
	defer src.Close()

	edges := gocv.NewMat()
	gocv.Canny(src, &edges, float32(low), float32(high))
	return edges, nil
}

// DetectEdges finds edges in a gray raster with the Canny detector (L1
// gradient, hysteresis between low and high). The result has one entry per
// pixel, true where an edge was found.
func DetectEdges(gray *cbimage.Raster, low, high float64) ([]bool, error) {
	if gray.Empty() {
		return nil, nil
	}
	edges, err := canny(gray, low, high)
	if err != nil {
		return nil, err
	}
	defer edges.Close()

	out := make([]bool, gray.Width*gray.Height)
	for i, v := range edges.ToBytes() {
		out[i] = v != 0
	}
	return out, nil
}

// EdgeRatio returns the fraction of pixels the detector marks with the
// default thresholds.
func EdgeRatio(gray *cbimage.Raster) (float64, error) {
	if gray.Empty() {
		return 0, nil
	}
	edges, err := canny(gray, DefaultLowThreshold, DefaultHighThreshold)
	if err != nil {
		return 0, err
	}
	defer edges.Close()
	return float64(gocv.CountNonZero(edges)) / float64(gray.Width*gray.Height), nil
}
