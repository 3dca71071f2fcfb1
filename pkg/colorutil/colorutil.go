// Package colorutil provides shared color-space conversions for feature extraction.
package colorutil

import (
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// RGBToHSV converts RGB (0-255) to HSV (OpenCV convention: H 0-180, S 0-255, V 0-255).
func RGBToHSV(r, g, b float64) (h, s, v float64) {
	h, s, v = colorful.Color{R: r / 255, G: g / 255, B: b / 255}.Hsv()
	// OpenCV stores hue halved so it fits a byte
	return h / 2, s * 255, v * 255
}

// Luma returns the Rec.601 gray value of an RGB triple, rounded to the nearest integer.
func Luma(r, g, b uint8) uint8 {
	y := 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
	return uint8(math.Min(255, math.Round(y)))
}
