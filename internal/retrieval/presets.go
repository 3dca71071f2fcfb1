package retrieval

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"cbir-engine/internal/distance"
	"cbir-engine/internal/feature"
)

// ErrUnknownMethod is returned for unrecognized preset names.
var ErrUnknownMethod = errors.New("unknown matching method")

// EmbeddingName keys externally supplied embedding vectors.
const EmbeddingName = "embedding"

// Externals supplies extractors backed by external models. Either may be
// nil; presets that need a missing one fall back or fail as documented.
type Externals struct {
	// Embedding produces embedding vectors from pixels. When nil, embedding
	// vectors must be attached to entries and the query under EmbeddingName.
	Embedding feature.Extractor
	// Object scores how confidently an object class appears in an image.
	Object feature.Extractor
}

func (x Externals) embedding() feature.Extractor {
	if x.Embedding != nil {
		return x.Embedding
	}
	return feature.Precomputed(EmbeddingName, feature.CategoryEmbedding)
}

// Preset is a named matching method.
type Preset struct {
	Name        string
	Description string
	// Adaptive presets reweight their scorers from the query image.
	Adaptive bool
	build    func(p feature.Params, x Externals) ([]Scorer, error)
}

// Scorers builds the preset's scorers.
func (p Preset) Scorers(params feature.Params, x Externals) ([]Scorer, error) {
	return p.build(params, x)
}

func whole(ext feature.Extractor, m distance.Metric) []Scorer {
	return []Scorer{{Extractor: ext, Metric: m, Weight: 1}}
}

var presets = []Preset{
	{
		Name:        "baseline",
		Description: "7x7 center patch, sum of squared differences",
		build: func(p feature.Params, _ Externals) ([]Scorer, error) {
			return whole(feature.Baseline(), distance.MetricSSD), nil
		},
	},
	{
		Name:        "histogram",
		Description: "rg-chromaticity histogram, histogram intersection",
		build: func(p feature.Params, _ Externals) ([]Scorer, error) {
			return whole(feature.Chromaticity(p.ChromaRBins, p.ChromaGBins), distance.MetricIntersection), nil
		},
	},
	{
		Name:        "multi-histogram",
		Description: "top and bottom half RGB histograms compared separately, equally weighted",
		build: func(p feature.Params, _ Externals) ([]Scorer, error) {
			ext := feature.MultiRegion(p.RGBBins)
			n := cube(p.RGBBins)
			return []Scorer{
				{Extractor: ext, Part: &Part{0, n, feature.CategorySpatial}, Metric: distance.MetricIntersection, Weight: 0.5},
				{Extractor: ext, Part: &Part{n, 2 * n, feature.CategorySpatial}, Metric: distance.MetricIntersection, Weight: 0.5},
			}, nil
		},
	},
	{
		Name:        "texture-color",
		Description: "RGB histogram and gradient magnitude histogram, equally weighted",
		build: func(p feature.Params, _ Externals) ([]Scorer, error) {
			ext := feature.ColorTexture(p)
			n := cube(p.RGBBins)
			return []Scorer{
				{Extractor: ext, Part: &Part{0, n, feature.CategoryColor}, Metric: distance.MetricIntersection, Weight: 0.5},
				{Extractor: ext, Part: &Part{n, n + p.GradientBins, feature.CategoryTexture}, Metric: distance.MetricIntersection, Weight: 0.5},
			}, nil
		},
	},
	{
		Name:        "refinement",
		Description: "RGB and gradient histograms as one vector, histogram intersection; suited to relevance feedback",
		build: func(p feature.Params, _ Externals) ([]Scorer, error) {
			return whole(feature.ColorTexture(p), distance.MetricIntersection), nil
		},
	},
	{
		Name:        "texture",
		Description: "co-occurrence, Gabor and Laws texture vector, Euclidean distance",
		build: func(p feature.Params, _ Externals) ([]Scorer, error) {
			return whole(feature.AdvancedTexture(p), distance.MetricEuclidean), nil
		},
	},
	{
		Name:        "saliency",
		Description: "saliency-weighted color and gradient histograms, histogram intersection",
		build: func(p feature.Params, _ Externals) ([]Scorer, error) {
			ext := feature.Saliency(p.SaliencyMethod, p.SaliencyColorBins, p.SaliencyTextureBins)
			return whole(ext, distance.MetricIntersection), nil
		},
	},
	{
		Name:        "adaptive",
		Description: "color, texture and spatial histograms weighted from the query's characteristics",
		Adaptive:    true,
		build: func(p feature.Params, _ Externals) ([]Scorer, error) {
			ext := feature.NewComposite(
				feature.RGBHistogram(p.RGBBins),
				feature.GradientHistogram(p.GradientBins),
				feature.MultiRegion(p.RGBBins),
			)
			n := cube(p.RGBBins)
			g := n + p.GradientBins
			return []Scorer{
				{Extractor: ext, Part: &Part{0, n, feature.CategoryColor}, Metric: distance.MetricIntersection, Weight: 0.33},
				{Extractor: ext, Part: &Part{n, g, feature.CategoryTexture}, Metric: distance.MetricIntersection, Weight: 0.33},
				{Extractor: ext, Part: &Part{g, g + 2*n, feature.CategorySpatial}, Metric: distance.MetricIntersection, Weight: 0.34},
			}, nil
		},
	},
	{
		Name:        "custom",
		Description: "spatial histogram 0.4, gradient histogram 0.3 and embedding cosine 0.3 when available",
		build: func(p feature.Params, x Externals) ([]Scorer, error) {
			ext := feature.NewComposite(feature.MultiRegion(p.RGBBins), feature.GradientHistogram(p.GradientBins))
			n := 2 * cube(p.RGBBins)
			return []Scorer{
				{Extractor: ext, Part: &Part{0, n, feature.CategorySpatial}, Metric: distance.MetricIntersection, Weight: 0.4},
				{Extractor: ext, Part: &Part{n, n + p.GradientBins, feature.CategoryTexture}, Metric: distance.MetricIntersection, Weight: 0.3},
				{Extractor: x.embedding(), Metric: distance.MetricCosine, Weight: 0.3, Optional: true},
			}, nil
		},
	},
	{
		Name:        "embedding",
		Description: "embedding vectors, cosine distance",
		build: func(p feature.Params, x Externals) ([]Scorer, error) {
			return whole(x.embedding(), distance.MetricCosine), nil
		},
	},
	{
		Name:        "object",
		Description: "object detection confidence, most confident first",
		build: func(p feature.Params, x Externals) ([]Scorer, error) {
			if x.Object == nil {
				return nil, errors.New("object method requires a detector")
			}
			return whole(x.Object, distance.MetricSSD), nil
		},
	},
}

func cube(n int) int {
	return n * n * n
}

// Presets returns all matching methods.
func Presets() []Preset {
	return slices.Clone(presets)
}

// PresetNames returns the names of all matching methods.
func PresetNames() []string {
	names := make([]string, len(presets))
	for i, p := range presets {
		names[i] = p.Name
	}
	return names
}

// LookupPreset finds a matching method by name.
func LookupPreset(name string) (Preset, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, p := range presets {
		if p.Name == name {
			return p, nil
		}
	}
	return Preset{}, fmt.Errorf("%w: %q (available: %s)", ErrUnknownMethod, name, strings.Join(PresetNames(), ", "))
}
