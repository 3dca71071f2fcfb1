package app

import (
	"context"
	"testing"

	"cbir-engine/internal/config"
	"cbir-engine/internal/feature"
	cbimage "cbir-engine/internal/image"
	"cbir-engine/internal/retrieval"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewDefaults(t *testing.T) {
	a, err := NewWithLogger(config.Default(), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &retrieval.MemoryCache{}, a.Cache())
	assert.Nil(t, a.Registry())
	assert.Equal(t, feature.DefaultParams(), a.Params)
}

func TestCacheBackends(t *testing.T) {
	cfg := config.Default()
	cfg.Cache.Backend = "none"
	a, err := NewWithLogger(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, a.Cache())
	require.NoError(t, a.Close())

	cfg.Cache.Backend = "redis"
	cfg.Cache.Redis.Addr = "127.0.0.1:1"
	a, err = NewWithLogger(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &retrieval.MemoryCache{}, a.Cache(), "falls back when redis is down")
	require.NoError(t, a.Close())

	cfg.Cache.Backend = "memcached"
	_, err = NewWithLogger(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestEngineWithMetrics(t *testing.T) {
	cfg := config.Default()
	cfg.Metrics.Enabled = true
	a, err := NewWithLogger(cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	p, err := retrieval.LookupPreset("histogram")
	require.NoError(t, err)
	x, err := a.Externals("")
	require.NoError(t, err)
	e, err := a.Engine(p, x, 2)
	require.NoError(t, err)

	img := cbimage.New(4, 4, 3)
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 7)
	}
	q, err := e.QueryFromImage(img)
	require.NoError(t, err)
	res, err := e.Rank(context.Background(), q, retrieval.SliceCatalog(retrieval.Entry{ID: "self", Image: img}))
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.InDelta(t, 0, res.Matches[0].Distance, 1e-9)

	families, err := a.Registry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
	a.ReportMetrics()
}

func TestExternalsErrors(t *testing.T) {
	cfg := config.Default()
	cfg.Models.Embedding.Model = "/nonexistent/model.onnx"
	a, err := NewWithLogger(cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Externals("")
	assert.Error(t, err)

	a.Config.Models.Embedding.Model = ""
	_, err = a.Externals("bottle")
	assert.Error(t, err, "no detector configured")
}

func TestInvalidParams(t *testing.T) {
	cfg := config.Default()
	cfg.Extract.RGBBins = 0
	_, err := NewWithLogger(cfg, zap.NewNop())
	assert.Error(t, err)
}
