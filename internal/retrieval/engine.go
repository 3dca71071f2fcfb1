// Package retrieval ranks an image catalog against a query by a weighted
// sum of per-feature distances.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"cbir-engine/internal/analysis"
	"cbir-engine/internal/distance"
	"cbir-engine/internal/feature"
	cbimage "cbir-engine/internal/image"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrNoSource is returned when an entry has neither a precomputed vector
// nor an image to extract one from.
var ErrNoSource = errors.New("entry has no vector and no image")

// ErrNoScorers is returned when an engine is built without scorers.
var ErrNoScorers = errors.New("at least one scorer is required")

// Part selects the sub-vector [Start, End) of an extractor's output, so one
// composite vector can feed several scorers.
type Part struct {
	Start, End int
	Category   feature.Category
}

// Scorer contributes Weight * Metric(query, entry) to an entry's distance,
// comparing the vectors produced by Extractor, or the Part of them when set.
type Scorer struct {
	Extractor feature.Extractor
	Part      *Part
	Metric    distance.Metric
	Weight    float64
	// Optional scorers drop out for entries whose vector is unavailable
	// instead of causing the entry to be skipped.
	Optional bool
}

// Name returns the extractor name, which keys query and entry vectors.
func (s Scorer) Name() string {
	return s.Extractor.Name()
}

// Category is the category adaptive weights apply to.
func (s Scorer) Category() feature.Category {
	if s.Part != nil {
		return s.Part.Category
	}
	return s.Extractor.Category()
}

func (s Scorer) label() string {
	if s.Part == nil {
		return s.Name()
	}
	return fmt.Sprintf("%s[%d:%d]", s.Name(), s.Part.Start, s.Part.End)
}

// slice returns the part of v the scorer compares.
func (s Scorer) slice(v feature.Vector) (feature.Vector, error) {
	if s.Part == nil {
		return v, nil
	}
	if s.Part.End > len(v) {
		return nil, fmt.Errorf("vector has %d values, part ends at %d", len(v), s.Part.End)
	}
	return v[s.Part.Start:s.Part.End], nil
}

// Query maps extractor names to query vectors. Scorers whose vector is
// absent from the query are inactive for that ranking.
type Query map[string]feature.Vector

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers bounds the number of entries scored concurrently.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithLogger sets the logger used for per-entry diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics records throughput and latency into m.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithCache reuses vectors extracted in earlier passes.
func WithCache(c Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithWeights overrides the weight of every color, texture and spatial scorer.
func WithWeights(w analysis.FeatureWeights) Option {
	return func(e *Engine) { e.scorers = applyWeights(e.scorers, w) }
}

// WithMaxDimension records the downscale bound catalog images were loaded
// with. It keys cached vectors so different bounds never share entries.
func WithMaxDimension(n int) Option {
	return func(e *Engine) { e.maxDim = max(n, 0) }
}

// WithKeepVectors stores the scored vectors on each Match.
func WithKeepVectors() Option {
	return func(e *Engine) { e.keepVectors = true }
}

// Engine scores catalogs. It is safe for concurrent use once built.
type Engine struct {
	scorers     []Scorer
	funcs       []distance.Func
	workers     int
	logger      *zap.Logger
	metrics     *Metrics
	cache       Cache
	maxDim      int
	keepVectors bool
}

// NewEngine creates an engine from scorers.
func NewEngine(scorers []Scorer, opts ...Option) (*Engine, error) {
	if len(scorers) == 0 {
		return nil, ErrNoScorers
	}
	e := &Engine{
		scorers: append([]Scorer(nil), scorers...),
		workers: runtime.NumCPU(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.funcs = make([]distance.Func, len(e.scorers))
	for i, s := range e.scorers {
		if s.Extractor == nil {
			return nil, fmt.Errorf("scorer %d has no extractor", i)
		}
		if p := s.Part; p != nil && (p.Start < 0 || p.End <= p.Start) {
			return nil, fmt.Errorf("scorer %s: invalid part [%d:%d]", s.Name(), p.Start, p.End)
		}
		fn, err := distance.Provider(s.Metric)
		if err != nil {
			return nil, fmt.Errorf("scorer %s: %w", s.Name(), err)
		}
		e.funcs[i] = fn
	}
	return e, nil
}

// Scorers returns a copy of the engine's scorers.
func (e *Engine) Scorers() []Scorer {
	return append([]Scorer(nil), e.scorers...)
}

// With returns a copy of the engine with additional options applied.
func (e *Engine) With(opts ...Option) *Engine {
	c := *e
	c.scorers = append([]Scorer(nil), e.scorers...)
	for _, opt := range opts {
		opt(&c)
	}
	return &c
}

func applyWeights(scorers []Scorer, w analysis.FeatureWeights) []Scorer {
	out := append([]Scorer(nil), scorers...)
	for i, s := range out {
		switch s.Category() {
		case feature.CategoryColor:
			out[i].Weight = w.Color
		case feature.CategoryTexture:
			out[i].Weight = w.Texture
		case feature.CategorySpatial:
			out[i].Weight = w.Spatial
		}
	}
	return out
}

// QueryFromImage extracts the query vector of every scorer from img.
// Optional scorers that fail are left out of the query.
func (e *Engine) QueryFromImage(img *cbimage.Raster) (Query, error) {
	q := make(Query, len(e.scorers))
	for _, s := range e.scorers {
		if _, ok := q[s.Name()]; ok {
			continue
		}
		v, err := e.extract(s.Extractor, img)
		if err != nil {
			if s.Optional {
				e.logger.Debug("optional query feature unavailable",
					zap.String("extractor", s.Name()), zap.Error(err))
				continue
			}
			return nil, fmt.Errorf("query %s: %w", s.Name(), err)
		}
		q[s.Name()] = v
	}
	return q, nil
}

func (e *Engine) extract(ext feature.Extractor, img *cbimage.Raster) (feature.Vector, error) {
	start := time.Now()
	v, err := ext.Extract(img)
	if e.metrics != nil && err == nil {
		e.metrics.extraction.WithLabelValues(ext.Name()).Observe(time.Since(start).Seconds())
	}
	return v, err
}

// active returns the indices of scorers that have a query vector.
func (e *Engine) active(q Query) []int {
	var idx []int
	for i, s := range e.scorers {
		if _, ok := q[s.Name()]; ok {
			idx = append(idx, i)
		}
	}
	return idx
}

// Rank scores every catalog entry against q and returns them sorted by
// ascending distance. Entries that cannot be loaded or extracted are
// skipped and counted. Cancellation is checked between entries.
func (e *Engine) Rank(ctx context.Context, q Query, catalog Catalog) (*Result, error) {
	active := e.active(q)
	if len(active) == 0 {
		return nil, fmt.Errorf("query has no vector for any of the %d scorers", len(e.scorers))
	}
	start := time.Now()

	var (
		mu      sync.Mutex
		matches []Match
		skipped int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	order := 0
	for entry := range catalog {
		if err := gctx.Err(); err != nil {
			break
		}
		idx := order
		order++
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			m, err := e.score(gctx, q, active, entry)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				skipped++
				e.logger.Warn("skipping catalog entry", zap.String("id", entry.ID), zap.Error(err))
				return nil
			}
			m.order = idx
			matches = append(matches, m)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sortMatches(matches)
	if e.metrics != nil {
		e.metrics.processed.Add(float64(len(matches)))
		e.metrics.skipped.Add(float64(skipped))
		e.metrics.rank.Observe(time.Since(start).Seconds())
	}
	e.logger.Debug("ranked catalog",
		zap.Int("processed", len(matches)),
		zap.Int("skipped", skipped),
		zap.Duration("elapsed", time.Since(start)))

	return &Result{Matches: matches, Processed: len(matches), Skipped: skipped}, nil
}

// score computes the weighted distance of one entry. The entry's image is
// loaded at most once, and only if some vector is not precomputed.
func (e *Engine) score(ctx context.Context, q Query, active []int, entry Entry) (Match, error) {
	src := &imageSource{entry: entry}
	m := Match{ID: entry.ID}
	if e.keepVectors {
		m.Vectors = make(map[string]feature.Vector, len(active))
	}

	resolved := make(map[string]feature.Vector, len(active))
	failed := make(map[string]error)
	for _, i := range active {
		s := e.scorers[i]
		name := s.Name()
		full, ok := resolved[name]
		if !ok {
			if err, seen := failed[name]; seen {
				if s.Optional {
					continue
				}
				return Match{}, fmt.Errorf("%s: %w", name, err)
			}
			v, err := e.vector(ctx, s.Extractor, entry, src)
			if err != nil {
				failed[name] = err
				if s.Optional {
					continue
				}
				return Match{}, fmt.Errorf("%s: %w", name, err)
			}
			resolved[name] = v
			full = v
		}

		qv, err := s.slice(q[name])
		if err != nil {
			return Match{}, fmt.Errorf("query %s: %w", s.label(), err)
		}
		v, err := s.slice(full)
		if err != nil {
			return Match{}, fmt.Errorf("%s: %w", s.label(), err)
		}
		d, err := e.funcs[i](qv, v)
		if err != nil {
			return Match{}, fmt.Errorf("%s: %w", s.label(), err)
		}
		m.Distance += s.Weight * d
		if m.Vectors != nil {
			m.Vectors[name] = full
		}
	}
	return m, nil
}

// vector resolves an entry's vector from, in order, the entry itself, the
// cache, and extraction from the entry's image.
func (e *Engine) vector(ctx context.Context, ext feature.Extractor, entry Entry, src *imageSource) (feature.Vector, error) {
	name := ext.Name()
	if v, ok := entry.Vectors[name]; ok {
		return v, nil
	}

	key := CacheKey(name, e.maxDim, entry.ID)
	if e.cache != nil {
		v, ok, err := e.cache.Get(ctx, key)
		switch {
		case err != nil:
			e.logger.Warn("feature cache read failed", zap.String("key", key), zap.Error(err))
		case ok:
			e.countCache("hit")
			return v, nil
		default:
			e.countCache("miss")
		}
	}

	img, err := src.raster()
	if err != nil {
		return nil, err
	}
	v, err := e.extract(ext, img)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		if err := e.cache.Set(ctx, key, v); err != nil {
			e.logger.Warn("feature cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return v, nil
}

func (e *Engine) countCache(result string) {
	if e.metrics != nil {
		e.metrics.cacheHits.WithLabelValues(result).Inc()
	}
}

// imageSource loads an entry's raster on first use.
type imageSource struct {
	entry  Entry
	img    *cbimage.Raster
	err    error
	loaded bool
}

func (s *imageSource) raster() (*cbimage.Raster, error) {
	if s.loaded {
		return s.img, s.err
	}
	s.loaded = true
	switch {
	case s.entry.Image != nil:
		s.img = s.entry.Image
	case s.entry.Load != nil:
		s.img, s.err = s.entry.Load()
	default:
		s.err = ErrNoSource
	}
	return s.img, s.err
}
