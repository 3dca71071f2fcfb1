// Command cbirindex precomputes feature vectors for a directory of images.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"

	"cbir-engine/internal/app"
	"cbir-engine/internal/config"
	"cbir-engine/internal/feature"
	cbimage "cbir-engine/internal/image"
	"cbir-engine/internal/retrieval"
	"cbir-engine/internal/store"
	"cbir-engine/internal/version"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const progressEvery = 50

func main() {
	dir := flag.String("dir", "", "Directory of images to index")
	method := flag.String("method", "baseline", "Matching method whose features are computed")
	out := flag.String("out", "", "Output file: .csv, .csv.zst or .db (default from config store section)")
	workers := flag.Int("workers", 0, "Concurrent images (default from config)")
	configPath := flag.String("config", "", "YAML configuration file")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("cbirindex", version.String())
		return
	}
	cfg, err := config.New(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *out == "" {
		*out = cfg.Store.Path()
	}
	if *dir == "" || *out == "" {
		fmt.Println("Usage: cbirindex -dir <images> -out <features.csv|features.csv.zst|features.db> [-method baseline]")
		os.Exit(1)
	}
	a, err := app.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err = run(ctx, a, *dir, *method, *out, *workers)
	stop()
	_ = a.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, a *app.App, dir, method, out string, workers int) error {
	preset, err := retrieval.LookupPreset(method)
	if err != nil {
		return err
	}
	x, err := a.Externals("")
	if err != nil {
		return err
	}
	scorers, err := preset.Scorers(a.Params, x)
	if err != nil {
		return err
	}
	extractors := distinctExtractors(scorers)
	if len(extractors) == 0 {
		return fmt.Errorf("method %s has no features computable from pixels", preset.Name)
	}

	bolt := strings.EqualFold(filepath.Ext(out), ".db")
	if !bolt && len(extractors) > 1 {
		return fmt.Errorf("method %s computes %d vectors per image; write a .db file instead", preset.Name, len(extractors))
	}

	paths, err := cbimage.ListImageFiles(dir)
	if err != nil {
		return err
	}
	fmt.Printf("Indexing %d images with %s\n", len(paths), preset.Name)

	if workers <= 0 {
		workers = a.Config.Engine.Workers
	}
	results, err := extractAll(ctx, a, paths, extractors, workers)
	if err != nil {
		return err
	}

	written := 0
	if bolt {
		db, err := store.OpenBolt(out)
		if err != nil {
			return err
		}
		defer db.Close()
		for i, ext := range extractors {
			if err := db.PutAll(ext.Name(), collect(results, i)); err != nil {
				return err
			}
		}
		written = len(collect(results, 0))
	} else {
		records := collect(results, 0)
		if err := store.WriteFile(out, records); err != nil {
			return err
		}
		written = len(records)
	}
	fmt.Printf("Wrote %d of %d images to %s\n", written, len(paths), out)
	return nil
}

// distinctExtractors returns each pixel-based extractor of scorers once.
func distinctExtractors(scorers []retrieval.Scorer) []feature.Extractor {
	seen := make(map[string]bool)
	var out []feature.Extractor
	for _, s := range scorers {
		if seen[s.Name()] || !feature.Extractable(s.Extractor) {
			continue
		}
		seen[s.Name()] = true
		out = append(out, s.Extractor)
	}
	return out
}

// extractAll computes every extractor for every path. Images that fail are
// logged and left nil.
func extractAll(ctx context.Context, a *app.App, paths []string, extractors []feature.Extractor, workers int) ([][]store.Record, error) {
	results := make([][]store.Record, len(paths))
	maxDim := a.Config.Engine.MaxDimension
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, path := range paths {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			recs, err := extractOne(path, maxDim, extractors)
			if err != nil {
				a.Logger.Warn("skipping image", zap.String("path", path), zap.Error(err))
			} else {
				results[i] = recs
			}
			if n := done.Add(1); n%progressEvery == 0 {
				fmt.Printf("  %d images...\n", n)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, ctx.Err()
}

func extractOne(path string, maxDim int, extractors []feature.Extractor) ([]store.Record, error) {
	img, err := cbimage.LoadRaster(path, maxDim)
	if err != nil {
		return nil, err
	}
	recs := make([]store.Record, len(extractors))
	for i, ext := range extractors {
		v, err := ext.Extract(img)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ext.Name(), err)
		}
		recs[i] = store.Record{ID: path, Vector: v}
	}
	return recs, nil
}

// collect returns the records of extractor i for every indexed image, in
// directory order.
func collect(results [][]store.Record, i int) []store.Record {
	var out []store.Record
	for _, recs := range results {
		if recs != nil {
			out = append(out, recs[i])
		}
	}
	return out
}
