package retrieval

import (
	"context"
	"fmt"
	"maps"

	"cbir-engine/internal/analysis"
	"cbir-engine/internal/feature"
	cbimage "cbir-engine/internal/image"
	"cbir-engine/internal/refine"

	"go.uber.org/zap"
)

// Round is one ranking pass of a relevance feedback session. Round 0 is
// the unrefined query and has no selection.
type Round struct {
	Iteration int
	Selected  string
	Result    *Result
}

// Selector picks the match treated as relevant for the next round.
type Selector func(r *Result) (Match, bool)

// PickRank selects the match at zero-based rank i, if there is one.
func PickRank(i int) Selector {
	return func(r *Result) (Match, bool) {
		if i < 0 || i >= len(r.Matches) {
			return Match{}, false
		}
		return r.Matches[i], true
	}
}

// Refine runs up to rounds feedback iterations on the query vector keyed by
// name. Each round blends the selected match's vector into the query and
// ranks the catalog again. The session stops early when pick finds nothing.
func (e *Engine) Refine(ctx context.Context, q Query, name string, catalog Catalog, rounds int, pick Selector) ([]Round, error) {
	initial, ok := q[name]
	if !ok {
		return nil, fmt.Errorf("query has no %s vector to refine", name)
	}
	eng := e.With(WithKeepVectors())
	q = maps.Clone(q)
	r := refine.New(initial)

	res, err := eng.Rank(ctx, q, catalog)
	if err != nil {
		return nil, err
	}
	out := []Round{{Iteration: 0, Result: res}}

	for range rounds {
		m, ok := pick(res)
		if !ok {
			break
		}
		v, ok := m.Vectors[name]
		if !ok {
			return out, fmt.Errorf("match %s has no %s vector", m.ID, name)
		}
		if err := r.AddFeedback(v); err != nil {
			return out, fmt.Errorf("feedback from %s: %w", m.ID, err)
		}
		q[name] = feature.Vector(r.Features())
		e.logger.Debug("refined query",
			zap.String("selected", m.ID),
			zap.Int("iteration", r.Iteration()),
			zap.Float64("alpha", refine.Alpha(r.Iteration())))

		res, err = eng.Rank(ctx, q, catalog)
		if err != nil {
			return out, err
		}
		out = append(out, Round{Iteration: r.Iteration(), Selected: m.ID, Result: res})
	}
	return out, nil
}

// Adapt analyzes img and returns a copy of e whose color, texture and
// spatial scorers carry the adaptive weights for it.
func (e *Engine) Adapt(img *cbimage.Raster) (*Engine, analysis.Characteristics, analysis.FeatureWeights, error) {
	c, err := analysis.Analyze(img)
	if err != nil {
		return nil, c, analysis.FeatureWeights{}, fmt.Errorf("analyze query image: %w", err)
	}
	w := analysis.ComputeAdaptiveWeights(c)
	e.logger.Debug("adaptive weights",
		zap.Float64("color_variance", c.ColorVariance),
		zap.Float64("texture_strength", c.TextureStrength),
		zap.Float64("spatial_complexity", c.SpatialComplexity),
		zap.Float64("brightness_range", c.BrightnessRange),
		zap.Stringer("weights", w))
	return e.With(WithWeights(w)), c, w, nil
}
