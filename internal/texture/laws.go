package texture

import (
	cbimage "cbir-engine/internal/image"
)

// Laws 1-D masks.
var (
	L5 = []float64{1, 4, 6, 4, 1}   // level
	E5 = []float64{-1, -2, 0, 2, 1} // edge
	S5 = []float64{-1, 0, 2, 0, -1} // spot
	W5 = []float64{-1, 2, 0, -2, 1} // wave
	R5 = []float64{1, -4, 6, -4, 1} // ripple
)

// LawsBank returns the 25 outer products of the 1-D masks. Filter i*5+j
// has rows weighted by mask i and columns by mask j.
func LawsBank() []cbimage.Kernel {
	masks := [][]float64{L5, E5, S5, W5, R5}
	bank := make([]cbimage.Kernel, 0, len(masks)*len(masks))
	for _, col := range masks {
		for _, row := range masks {
			bank = append(bank, cbimage.Outer(col, row))
		}
	}
	return bank
}

// LawsFeatures returns the energy (sum of squared responses) of the
// grayscale image under each Laws filter, in LawsBank order.
func LawsFeatures(gray *cbimage.Raster) ([]float64, error) {
	if gray.Channels != 1 {
		gray = gray.Gray()
	}
	src := gray.Channel(0)

	masks := [][]float64{L5, E5, S5, W5, R5}
	out := make([]float64, 0, len(masks)*len(masks))
	for _, col := range masks {
		for _, row := range masks {
			resp, err := cbimage.SeparableCorrelate(src, row, col)
			if err != nil {
				return nil, err
			}
			var energy float64
			for _, v := range resp.Data {
				energy += v * v
			}
			out = append(out, energy)
		}
	}
	return out, nil
}
