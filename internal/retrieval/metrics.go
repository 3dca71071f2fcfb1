package retrieval

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records ranking throughput and extraction latency.
type Metrics struct {
	processed  prometheus.Counter
	skipped    prometheus.Counter
	cacheHits  *prometheus.CounterVec
	extraction *prometheus.HistogramVec
	rank       prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		processed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cbir_images_processed_total",
			Help: "Catalog entries scored successfully",
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cbir_images_skipped_total",
			Help: "Catalog entries skipped because they could not be loaded or extracted",
		}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cbir_feature_cache_lookups_total",
			Help: "Feature cache lookups by result",
		}, []string{"result"}),
		extraction: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cbir_extraction_duration_seconds",
			Help:    "Feature extraction latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"extractor"}),
		rank: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cbir_rank_duration_seconds",
			Help:    "Latency of a full catalog ranking pass",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
	}

	for _, c := range []prometheus.Collector{m.processed, m.skipped, m.cacheHits, m.extraction, m.rank} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}
