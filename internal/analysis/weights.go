package analysis

import "fmt"

// MinWeight is the floor every category weight is held at.
const MinWeight = 0.1

// FeatureWeights are the per-category weights; each is at least MinWeight
// and together they sum to 1.
type FeatureWeights struct {
	Color   float64
	Texture float64
	Spatial float64
}

func (w FeatureWeights) String() string {
	return fmt.Sprintf("color=%.3f texture=%.3f spatial=%.3f", w.Color, w.Texture, w.Spatial)
}

// UniformWeights returns the default split used when an image gives no signal.
func UniformWeights() FeatureWeights {
	return enforceFloor(FeatureWeights{Color: 0.33, Texture: 0.33, Spatial: 0.34})
}

// ComputeAdaptiveWeights derives weights from image characteristics:
// color importance is 0.6*ColorVariance + 0.4*BrightnessRange, texture and
// spatial importance are TextureStrength and SpatialComplexity.
func ComputeAdaptiveWeights(c Characteristics) FeatureWeights {
	color := nonNegative(0.6*c.ColorVariance + 0.4*c.BrightnessRange)
	texture := nonNegative(c.TextureStrength)
	spatial := nonNegative(c.SpatialComplexity)

	total := color + texture + spatial
	if !(total > 0) {
		return UniformWeights()
	}
	return enforceFloor(FeatureWeights{
		Color:   color / total,
		Texture: texture / total,
		Spatial: spatial / total,
	})
}

func nonNegative(v float64) float64 {
	if v > 0 {
		return v
	}
	return 0
}

// enforceFloor raises weights below MinWeight and rescales the rest so the
// total stays 1. Rescaling can push another weight under the floor, so
// pinned weights accumulate until none remain below it.
func enforceFloor(w FeatureWeights) FeatureWeights {
	vals := []*float64{&w.Color, &w.Texture, &w.Spatial}
	pinned := make([]bool, len(vals))

	for range vals {
		var free float64
		nPinned := 0
		for i, v := range vals {
			if pinned[i] {
				nPinned++
				continue
			}
			free += *v
		}
		budget := 1 - MinWeight*float64(nPinned)
		changed := false
		for i, v := range vals {
			if pinned[i] {
				*v = MinWeight
				continue
			}
			if free > 0 {
				*v = *v / free * budget
			} else {
				*v = budget / float64(len(vals)-nPinned)
			}
			if *v < MinWeight {
				pinned[i] = true
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	for i, v := range vals {
		if pinned[i] {
			*v = MinWeight
		}
	}
	return w
}
