// Package dnn wraps OpenCV deep networks as feature extractors: an
// embedding network and a MobileNet-SSD style object detector. Every
// network is loaded once by its constructor and released by Close.
package dnn

import (
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"cbir-engine/internal/feature"
	cbimage "cbir-engine/internal/image"

	"gocv.io/x/gocv"
)

// ErrNoModel is returned when a network file is not configured.
var ErrNoModel = errors.New("model path is required")

// EmbedderConfig describes an embedding network.
type EmbedderConfig struct {
	// Name keys the produced vectors; defaults to "embedding".
	Name string
	// Model is the network file (ONNX, Caffe model, TensorFlow graph...).
	Model string
	// Config is the optional companion file, such as a Caffe prototxt.
	Config string
	// Output names the layer whose activations form the embedding; empty
	// means the network's final output.
	Output string
	// Size is the square input side in pixels; defaults to 224.
	Size int
	// Scale multiplies pixel values; defaults to 1/255.
	Scale float64
	// Mean is subtracted per channel before scaling.
	Mean [3]float64
	// SwapRB feeds RGB instead of OpenCV's BGR order.
	SwapRB bool
}

func (c EmbedderConfig) withDefaults() EmbedderConfig {
	if c.Name == "" {
		c.Name = "embedding"
	}
	if c.Size <= 0 {
		c.Size = 224
	}
	if c.Scale == 0 {
		c.Scale = 1.0 / 255
	}
	return c
}

func (c EmbedderConfig) validate() error {
	if c.Model == "" {
		return ErrNoModel
	}
	for _, p := range []string{c.Model, c.Config} {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("model file: %w", err)
		}
	}
	return nil
}

// Embedder produces embedding vectors from a network's output layer.
// Forward passes are serialized; a network is not safe for concurrent use.
type Embedder struct {
	mu  sync.Mutex
	net gocv.Net
	cfg EmbedderConfig
}

// NewEmbedder loads the network described by cfg.
func NewEmbedder(cfg EmbedderConfig) (*Embedder, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	net := gocv.ReadNet(cfg.Model, cfg.Config)
	if net.Empty() {
		_ = net.Close()
		return nil, fmt.Errorf("failed to load network %s", cfg.Model)
	}
	return &Embedder{net: net, cfg: cfg}, nil
}

func (e *Embedder) Name() string               { return e.cfg.Name }
func (e *Embedder) Category() feature.Category { return feature.CategoryEmbedding }

// Extract runs the network on img and returns the flattened output.
func (e *Embedder) Extract(img *cbimage.Raster) (feature.Vector, error) {
	if img.Empty() {
		return nil, feature.ErrEmptyImage
	}
	mat, err := img.BGRMat()
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	m := e.cfg.Mean
	blob := gocv.BlobFromImage(mat, e.cfg.Scale, image.Pt(e.cfg.Size, e.cfg.Size),
		gocv.NewScalar(m[0], m[1], m[2], 0), e.cfg.SwapRB, false)
	defer blob.Close()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.net.SetInput(blob, "")
	out := e.net.Forward(e.cfg.Output)
	defer out.Close()

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read %s output: %w", e.cfg.Name, err)
	}
	return toVector(data), nil
}

// Close releases the network.
func (e *Embedder) Close() error {
	return e.net.Close()
}

func toVector(data []float32) feature.Vector {
	v := make(feature.Vector, len(data))
	for i, f := range data {
		v[i] = float64(f)
	}
	return v
}
