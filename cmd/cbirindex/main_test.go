package main

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"cbir-engine/internal/app"
	"cbir-engine/internal/config"
	"cbir-engine/internal/feature"
	"cbir-engine/internal/retrieval"
	"cbir-engine/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writePNG(t *testing.T, path string, c color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 12, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 12; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func testDir(t *testing.T) string {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), color.RGBA{R: 200, A: 255})
	writePNG(t, filepath.Join(dir, "b.png"), color.RGBA{G: 200, A: 255})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.jpg"), []byte("not a jpeg"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))
	return dir
}

func newApp(t *testing.T) *app.App {
	a, err := app.NewWithLogger(config.Default(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestIndexCSV(t *testing.T) {
	dir := testDir(t)
	out := filepath.Join(t.TempDir(), "features.csv.zst")

	require.NoError(t, run(context.Background(), newApp(t), dir, "histogram", out, 2))

	records, skipped, err := store.ReadFile(out, nil)
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, records, 2)
	assert.Equal(t, filepath.Join(dir, "a.png"), records[0].ID)
	assert.Len(t, records[0].Vector, 256)
}

func TestIndexBolt(t *testing.T) {
	dir := testDir(t)
	out := filepath.Join(t.TempDir(), "features.db")
	a := newApp(t)

	require.NoError(t, run(context.Background(), a, dir, "adaptive", out, 1))

	db, err := store.OpenBolt(out)
	require.NoError(t, err)
	defer db.Close()

	buckets, err := db.Buckets()
	require.NoError(t, err)
	require.Len(t, buckets, 1, "adaptive uses one composite vector")

	records, err := db.All(buckets[0])
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestDistinctExtractors(t *testing.T) {
	ext := []retrieval.Scorer{
		{Extractor: feature.Laws()},
		{Extractor: feature.Baseline()},
		{Extractor: feature.Laws()},
		{Extractor: feature.Precomputed("embedding", feature.CategoryEmbedding)},
	}
	got := distinctExtractors(ext)
	require.Len(t, got, 2)
	assert.Equal(t, "laws", got[0].Name())
}

func TestIndexUnknownMethod(t *testing.T) {
	err := run(context.Background(), newApp(t), t.TempDir(), "sift", filepath.Join(t.TempDir(), "x.csv"), 1)
	assert.ErrorIs(t, err, retrieval.ErrUnknownMethod)
}
