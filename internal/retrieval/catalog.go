package retrieval

import (
	"iter"
	"path/filepath"

	"cbir-engine/internal/feature"
	cbimage "cbir-engine/internal/image"
	"cbir-engine/internal/store"
)

// Entry is one catalog item. Vectors holds precomputed feature vectors
// keyed by extractor name; when a needed vector is missing the engine
// extracts it from Image, or from the result of Load if Image is nil.
type Entry struct {
	ID      string
	Image   *cbimage.Raster
	Load    func() (*cbimage.Raster, error)
	Vectors map[string]feature.Vector
}

// Catalog yields entries in a stable order. Ties in the ranking are broken
// by this order, so a catalog must yield the same sequence on every pass.
type Catalog = iter.Seq[Entry]

// SliceCatalog yields the given entries.
func SliceCatalog(entries ...Entry) Catalog {
	return func(yield func(Entry) bool) {
		for _, e := range entries {
			if !yield(e) {
				return
			}
		}
	}
}

// FileCatalog yields one entry per image path. Images are decoded lazily by
// the worker that scores them and downscaled to maxDim.
func FileCatalog(paths []string, maxDim int) Catalog {
	return func(yield func(Entry) bool) {
		for _, p := range paths {
			e := Entry{
				ID: p,
				Load: func() (*cbimage.Raster, error) {
					return cbimage.LoadRaster(p, maxDim)
				},
			}
			if !yield(e) {
				return
			}
		}
	}
}

// DirCatalog lists the images in dir and returns a FileCatalog over them.
func DirCatalog(dir string, maxDim int) (Catalog, error) {
	paths, err := cbimage.ListImageFiles(dir)
	if err != nil {
		return nil, err
	}
	return FileCatalog(paths, maxDim), nil
}

// VectorCatalog yields entries carrying only the precomputed vectors for
// one extractor, in the given order.
func VectorCatalog(name string, ids []string, vectors []feature.Vector) Catalog {
	return func(yield func(Entry) bool) {
		for i, id := range ids {
			e := Entry{ID: id, Vectors: map[string]feature.Vector{name: vectors[i]}}
			if !yield(e) {
				return
			}
		}
	}
}

// RecordCatalog yields stored records as entries carrying the vector for
// the extractor called name.
func RecordCatalog(name string, records []store.Record) Catalog {
	return func(yield func(Entry) bool) {
		for _, rec := range records {
			e := Entry{ID: rec.ID, Vectors: map[string]feature.Vector{name: rec.Vector}}
			if !yield(e) {
				return
			}
		}
	}
}

// Attach decorates c so every entry also carries the vector found in
// vectors under its ID or, failing that, under the base name of its ID.
// Entries without a match pass through unchanged.
func Attach(c Catalog, name string, vectors map[string]feature.Vector) Catalog {
	return func(yield func(Entry) bool) {
		for e := range c {
			v, ok := vectors[e.ID]
			if !ok {
				v, ok = vectors[filepath.Base(e.ID)]
			}
			if ok {
				merged := make(map[string]feature.Vector, len(e.Vectors)+1)
				for k, vv := range e.Vectors {
					merged[k] = vv
				}
				merged[name] = v
				e.Vectors = merged
			}
			if !yield(e) {
				return
			}
		}
	}
}
