// Package app owns the collaborators the command-line tools share: logger,
// feature parameters, vector cache, metrics registry and model networks.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"cbir-engine/internal/config"
	"cbir-engine/internal/dnn"
	"cbir-engine/internal/feature"
	"cbir-engine/internal/logging"
	"cbir-engine/internal/retrieval"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisPingTimeout = 2 * time.Second

// App holds the state of one tool invocation. Close releases everything
// it opened.
type App struct {
	Config *config.Config
	Logger *zap.Logger
	Params feature.Params

	cache    retrieval.Cache
	registry *prometheus.Registry
	metrics  *retrieval.Metrics
	closers  []io.Closer
}

// New builds the application state from cfg.
func New(cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return NewWithLogger(cfg, logger)
}

// NewWithLogger is New with a caller-supplied logger.
func NewWithLogger(cfg *config.Config, logger *zap.Logger) (*App, error) {
	params, err := cfg.FeatureParams()
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Logger: logger, Params: params}

	if err := a.openCache(); err != nil {
		_ = a.Close()
		return nil, err
	}
	if cfg.Metrics.Enabled {
		a.registry = prometheus.NewRegistry()
		if a.metrics, err = retrieval.NewMetrics(a.registry); err != nil {
			_ = a.Close()
			return nil, err
		}
	}
	return a, nil
}

func (a *App) openCache() error {
	c := a.Config.Cache
	switch c.Backend {
	case "", "none":
	case "memory":
		a.cache = retrieval.NewMemoryCache(c.TTL)
	case "redis":
		rc := retrieval.NewRedisCache(&redis.Options{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
		}, c.TTL)
		ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
		defer cancel()
		if err := rc.Ping(ctx); err != nil {
			_ = rc.Close()
			a.Logger.Warn("redis unavailable, caching in memory",
				zap.String("addr", c.Redis.Addr), zap.Error(err))
			a.cache = retrieval.NewMemoryCache(c.TTL)
			return nil
		}
		a.cache = rc
		a.closers = append(a.closers, rc)
	default:
		return fmt.Errorf("unknown cache backend %q", c.Backend)
	}
	return nil
}

// Cache returns the configured vector cache, or nil when caching is off.
func (a *App) Cache() retrieval.Cache {
	return a.cache
}

// Externals loads the model networks a preset needs. The embedding network
// is optional; the detector is loaded only for objectClass != "".
func (a *App) Externals(objectClass string) (retrieval.Externals, error) {
	var x retrieval.Externals
	m := a.Config.Models

	if m.Embedding.Model != "" {
		emb, err := dnn.NewEmbedder(dnn.EmbedderConfig{
			Name:   retrieval.EmbeddingName,
			Model:  m.Embedding.Model,
			Config: m.Embedding.Config,
			Output: m.Embedding.Output,
			Size:   m.Embedding.Size,
			SwapRB: m.Embedding.SwapRB,
		})
		if err != nil {
			return x, fmt.Errorf("embedding model: %w", err)
		}
		a.closers = append(a.closers, emb)
		x.Embedding = emb
	}

	if objectClass != "" {
		det, err := dnn.NewObjectDetector(dnn.DetectorConfig{
			Prototxt:    m.Detector.Prototxt,
			Model:       m.Detector.Model,
			ClassesFile: m.Detector.Classes,
			Threshold:   m.Detector.Threshold,
		})
		if err != nil {
			return x, fmt.Errorf("detector model: %w", err)
		}
		a.closers = append(a.closers, det)
		if x.Object, err = det.Extractor(objectClass); err != nil {
			return x, err
		}
	}
	return x, nil
}

// Engine builds an engine for preset with the app's logger, cache and
// metrics. workers <= 0 uses the configured worker count.
func (a *App) Engine(preset retrieval.Preset, x retrieval.Externals, workers int, opts ...retrieval.Option) (*retrieval.Engine, error) {
	scorers, err := preset.Scorers(a.Params, x)
	if err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = a.Config.Engine.Workers
	}
	base := []retrieval.Option{
		retrieval.WithWorkers(workers),
		retrieval.WithLogger(a.Logger),
		retrieval.WithMaxDimension(a.Config.Engine.MaxDimension),
	}
	if a.cache != nil {
		base = append(base, retrieval.WithCache(a.cache))
	}
	if a.metrics != nil {
		base = append(base, retrieval.WithMetrics(a.metrics))
	}
	return retrieval.NewEngine(scorers, append(base, opts...)...)
}

// ReportMetrics logs the collected counters and latency summaries.
func (a *App) ReportMetrics() {
	if a.registry == nil {
		return
	}
	families, err := a.registry.Gather()
	if err != nil {
		a.Logger.Warn("gathering metrics failed", zap.Error(err))
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			fields := []zap.Field{zap.String("metric", mf.GetName())}
			for _, lp := range m.GetLabel() {
				fields = append(fields, zap.String(lp.GetName(), lp.GetValue()))
			}
			switch {
			case m.GetCounter() != nil:
				fields = append(fields, zap.Float64("value", m.GetCounter().GetValue()))
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				fields = append(fields,
					zap.Uint64("count", h.GetSampleCount()),
					zap.Float64("sum_seconds", h.GetSampleSum()))
			}
			a.Logger.Info("metric", fields...)
		}
	}
}

// Registry returns the metrics registry, or nil when metrics are off.
func (a *App) Registry() *prometheus.Registry {
	return a.registry
}

// Close releases networks and connections and flushes the logger.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	a.closers = nil
	logging.Sync(a.Logger)
	return errors.Join(errs...)
}
