// Command cbirsearch ranks an image collection by similarity to a target image.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"cbir-engine/internal/analysis"
	"cbir-engine/internal/app"
	"cbir-engine/internal/config"
	"cbir-engine/internal/dnn"
	"cbir-engine/internal/feature"
	cbimage "cbir-engine/internal/image"
	"cbir-engine/internal/retrieval"
	"cbir-engine/internal/store"
	"cbir-engine/internal/version"
)

type options struct {
	target     string
	dir        string
	features   string
	embeddings string
	method     string
	object     string
	topN       int
	leastN     int
	rounds     int
	pick       int
	workers    int
}

func main() {
	var o options
	flag.StringVar(&o.target, "target", "", "Target image")
	flag.StringVar(&o.dir, "dir", "", "Directory of images to search")
	flag.StringVar(&o.features, "features", "", "Precomputed features (.csv, .csv.zst or .db) used instead of -dir")
	flag.StringVar(&o.embeddings, "embeddings", "", "Embedding vectors CSV, matched to images by file name")
	flag.StringVar(&o.method, "method", "baseline", "Matching method (see -list)")
	flag.StringVar(&o.object, "object", "", "Object class for -method object, e.g. bottle")
	flag.IntVar(&o.topN, "n", 0, "Number of matches to show (default from config)")
	flag.IntVar(&o.leastN, "least", -1, "Number of least similar images to show (default from config)")
	flag.IntVar(&o.rounds, "refine", 0, "Relevance feedback rounds")
	flag.IntVar(&o.pick, "pick", 1, "Zero-based rank of the match selected as relevant in each feedback round")
	flag.IntVar(&o.workers, "workers", 0, "Concurrent images (default from config)")
	configPath := flag.String("config", "", "YAML configuration file")
	list := flag.Bool("list", false, "List matching methods and exit")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("cbirsearch", version.String())
		return
	}
	if *list {
		fmt.Println("Matching methods:")
		for _, p := range retrieval.Presets() {
			fmt.Printf("  %-16s %s\n", p.Name, p.Description)
		}
		return
	}
	cfg, err := config.New(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if o.features == "" && o.dir == "" {
		o.features = cfg.Store.Path()
	}
	if (o.target == "" && o.method != "object") || (o.dir == "" && o.features == "") {
		fmt.Println("Usage: cbirsearch -target <image> (-dir <images> | -features <file>) [-method baseline] [-n 3]")
		fmt.Println("       cbirsearch -method object -object <class> -dir <images>")
		os.Exit(1)
	}
	if o.topN <= 0 {
		o.topN = cfg.Engine.TopK
	}
	if o.leastN < 0 {
		o.leastN = cfg.Engine.BottomK
	}

	a, err := app.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err = run(ctx, a, o)
	stop()
	a.ReportMetrics()
	_ = a.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, a *app.App, o options) error {
	preset, err := retrieval.LookupPreset(o.method)
	if err != nil {
		return err
	}
	if preset.Name == "object" && o.object == "" {
		return errors.New("-method object needs -object <class>")
	}
	x, err := a.Externals(o.object)
	if err != nil {
		return err
	}
	eng, err := a.Engine(preset, x, o.workers)
	if err != nil {
		return err
	}
	primary := eng.Scorers()[0].Name()
	maxDim := a.Config.Engine.MaxDimension

	if o.target != "" {
		fmt.Printf("Target image: %s\n", o.target)
	}
	fmt.Printf("Method: %s (%s)\n", preset.Name, preset.Description)

	var records []store.Record
	var catalog retrieval.Catalog
	if o.features != "" {
		fmt.Printf("Loading pre-computed features from: %s\n", o.features)
		if records, err = loadFeatures(a, o.features, primary); err != nil {
			return err
		}
		catalog = retrieval.RecordCatalog(primary, records)
	} else {
		fmt.Println("Computing features for all database images...")
		if catalog, err = retrieval.DirCatalog(o.dir, maxDim); err != nil {
			return err
		}
	}

	var embeddings []store.Record
	if o.embeddings != "" {
		var skipped int
		if embeddings, skipped, err = store.ReadFile(o.embeddings, a.Logger); err != nil {
			return err
		}
		fmt.Printf("Loaded %d embeddings (%d malformed lines skipped)\n", len(embeddings), skipped)
		catalog = retrieval.Attach(catalog, retrieval.EmbeddingName, store.Index(embeddings))
	}

	t := &target{path: o.target, maxDim: maxDim}
	q, err := buildQuery(eng, t, primary, records, embeddings)
	if err != nil {
		return err
	}

	switch {
	case preset.Adaptive:
		img, err := t.raster()
		if err != nil {
			return err
		}
		return runAdaptive(ctx, eng, img, q, catalog, o)
	case o.rounds > 0:
		return runRefine(ctx, eng, q, primary, catalog, o)
	}

	res, err := eng.Rank(ctx, q, catalog)
	if err != nil {
		return err
	}
	if preset.Name == "object" {
		printDetections(res, o.object, o.topN)
		return nil
	}
	printMatches(fmt.Sprintf("Top %d matches", o.topN), res.Top(o.topN), 1)
	if o.leastN > 0 {
		bottom := res.Bottom(o.leastN)
		printMatches(fmt.Sprintf("%d least similar", o.leastN), bottom, len(res.Matches)-len(bottom)+1)
	}
	printSkipped(res)
	return nil
}

// target loads the query image on first use.
type target struct {
	path   string
	maxDim int
	img    *cbimage.Raster
}

func (t *target) raster() (*cbimage.Raster, error) {
	if t.img != nil {
		return t.img, nil
	}
	img, err := cbimage.LoadRaster(t.path, t.maxDim)
	if err != nil {
		return nil, fmt.Errorf("could not read target image: %w", err)
	}
	t.img = img
	return img, nil
}

// buildQuery takes each scorer's query vector from the stored records when
// the target is among them, and extracts it from the target image otherwise.
func buildQuery(eng *retrieval.Engine, t *target, primary string, records, embeddings []store.Record) (retrieval.Query, error) {
	q := retrieval.Query{}
	for _, s := range eng.Scorers() {
		name := s.Name()
		if _, ok := q[name]; ok {
			continue
		}
		if s.Extractor.Category() == feature.CategoryObject {
			q[name] = dnn.QueryVector()
			continue
		}

		var stored []store.Record
		switch name {
		case primary:
			stored = records
		case retrieval.EmbeddingName:
			stored = embeddings
		}
		if rec, ok := store.Lookup(stored, t.path); ok {
			fmt.Printf("Found target features: %s\n", rec.ID)
			q[name] = rec.Vector
			continue
		}

		if !feature.Extractable(s.Extractor) {
			if s.Optional {
				fmt.Printf("No %s vector for the target; scoring without it\n", name)
				continue
			}
			return nil, fmt.Errorf("could not find target %s in the %s vectors", filepath.Base(t.path), name)
		}
		img, err := t.raster()
		if err != nil {
			return nil, err
		}
		v, err := s.Extractor.Extract(img)
		if err != nil {
			if s.Optional {
				continue
			}
			return nil, fmt.Errorf("target %s: %w", name, err)
		}
		q[name] = v
	}
	return q, nil
}

func loadFeatures(a *app.App, path, name string) ([]store.Record, error) {
	if strings.EqualFold(filepath.Ext(path), ".db") {
		db, err := store.OpenBolt(path)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		records, err := db.All(name)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return nil, fmt.Errorf("%s has no %s vectors; index it with the same method", path, name)
		}
		return records, nil
	}

	records, skipped, err := store.ReadFile(path, a.Logger)
	if err != nil {
		return nil, err
	}
	fmt.Printf("Loaded %d feature vectors (%d malformed lines skipped)\n", len(records), skipped)
	return records, nil
}

func runAdaptive(ctx context.Context, eng *retrieval.Engine, img *cbimage.Raster, q retrieval.Query, catalog retrieval.Catalog, o options) error {
	adapted, c, w, err := eng.Adapt(img)
	if err != nil {
		return err
	}

	fmt.Println("\n=== Image characteristics ===")
	fmt.Printf("  Color variance:     %.4f\n", c.ColorVariance)
	fmt.Printf("  Texture strength:   %.4f\n", c.TextureStrength)
	fmt.Printf("  Spatial complexity: %.4f\n", c.SpatialComplexity)
	fmt.Printf("  Brightness range:   %.4f\n", c.BrightnessRange)
	fmt.Printf("Adaptive weights: %s\n", w)

	res, err := adapted.Rank(ctx, q, catalog)
	if err != nil {
		return err
	}
	printMatches(fmt.Sprintf("Top %d matches (adaptive)", o.topN), res.Top(o.topN), 1)

	uniform := analysis.UniformWeights()
	fixed, err := eng.With(retrieval.WithWeights(uniform)).Rank(ctx, q, catalog)
	if err != nil {
		return err
	}
	printMatches(fmt.Sprintf("Top %d matches (fixed %s)", o.topN, uniform), fixed.Top(o.topN), 1)
	printSkipped(res)
	return nil
}

func runRefine(ctx context.Context, eng *retrieval.Engine, q retrieval.Query, name string, catalog retrieval.Catalog, o options) error {
	rounds, err := eng.Refine(ctx, q, name, catalog, o.rounds, retrieval.PickRank(o.pick))
	for _, r := range rounds {
		if r.Iteration == 0 {
			printMatches("ITERATION 0: Initial", r.Result.Top(o.topN), 1)
			continue
		}
		fmt.Printf("\nFeedback: selected #%d: %s\n", o.pick+1, r.Selected)
		printMatches(fmt.Sprintf("ITERATION %d", r.Iteration), r.Result.Top(o.topN), 1)
	}
	if err == nil && len(rounds) > 0 && len(rounds) <= o.rounds {
		fmt.Printf("\nStopped after %d rounds: no match at rank %d\n", len(rounds)-1, o.pick+1)
	}
	return err
}

func printMatches(title string, matches []retrieval.Match, firstRank int) {
	fmt.Printf("\n=== %s ===\n", title)
	for i, m := range matches {
		fmt.Printf("%d. %s (distance: %.6g)\n", firstRank+i, m.ID, m.Distance)
	}
}

// printDetections converts squared distances from full confidence back to
// detector confidences.
func printDetections(res *retrieval.Result, class string, n int) {
	fmt.Printf("\n=== Top %d %s detections ===\n", n, class)
	for i, m := range res.Top(n) {
		fmt.Printf("%d. %s (%.3f)\n", i+1, m.ID, 1-math.Sqrt(m.Distance))
	}
	if len(res.Matches) == 0 {
		fmt.Printf("No %s found.\n", class)
	}
}

func printSkipped(res *retrieval.Result) {
	if res.Skipped > 0 {
		fmt.Printf("\n%d images skipped (unreadable or missing features)\n", res.Skipped)
	}
}
