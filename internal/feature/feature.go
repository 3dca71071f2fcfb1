// Package feature defines the extractor interface shared by every feature
// category and the concrete extractors built on the histogram, gradient,
// texture and saliency packages.
package feature

import (
	"errors"
	"fmt"

	cbimage "cbir-engine/internal/image"
)

// Vector is a fixed-length descriptor. Two vectors are comparable only if
// the same extractor configuration produced them.
type Vector []float64

// Category groups extractors for weighting purposes.
type Category int

const (
	CategoryColor Category = iota
	CategoryTexture
	CategorySpatial
	CategorySaliency
	CategoryEmbedding
	CategoryObject
)

func (c Category) String() string {
	switch c {
	case CategoryColor:
		return "color"
	case CategoryTexture:
		return "texture"
	case CategorySpatial:
		return "spatial"
	case CategorySaliency:
		return "saliency"
	case CategoryEmbedding:
		return "embedding"
	case CategoryObject:
		return "object"
	default:
		return fmt.Sprintf("unknown(%d)", int(c))
	}
}

// ErrEmptyImage is returned by every extractor for images without pixels.
var ErrEmptyImage = errors.New("image has no pixels")

// Extractor turns an image into a feature vector.
type Extractor interface {
	// Name identifies the extractor and its configuration; it keys stored
	// and cached vectors.
	Name() string
	Category() Category
	Extract(img *cbimage.Raster) (Vector, error)
}

// Split cuts v into consecutive parts of the given sizes. The sizes must
// add up to len(v).
func Split(v Vector, sizes ...int) ([]Vector, error) {
	total := 0
	for _, s := range sizes {
		total += s
	}
	if total != len(v) {
		return nil, fmt.Errorf("cannot split %d values into parts totalling %d", len(v), total)
	}
	parts := make([]Vector, 0, len(sizes))
	off := 0
	for _, s := range sizes {
		parts = append(parts, v[off:off+s:off+s])
		off += s
	}
	return parts, nil
}

// ErrNotExtractable is returned by extractors whose vectors only come from
// an external source.
var ErrNotExtractable = errors.New("vector must be supplied, it cannot be extracted from pixels")

type precomputed struct {
	name     string
	category Category
}

// Precomputed returns an extractor placeholder for vectors produced
// elsewhere, such as embeddings loaded from a file. Extract always fails
// with ErrNotExtractable.
func Precomputed(name string, c Category) Extractor {
	return &precomputed{name: name, category: c}
}

func (p *precomputed) Name() string       { return p.name }
func (p *precomputed) Category() Category { return p.category }

func (p *precomputed) Extract(*cbimage.Raster) (Vector, error) {
	return nil, fmt.Errorf("%s: %w", p.name, ErrNotExtractable)
}

// Extractable reports whether e computes vectors from pixels, as opposed to
// a Precomputed placeholder.
func Extractable(e Extractor) bool {
	_, ok := e.(*precomputed)
	return !ok
}
