package dnn

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"os"
	"slices"
	"strings"
	"sync"

	"cbir-engine/internal/feature"
	cbimage "cbir-engine/internal/image"

	"gocv.io/x/gocv"
)

// DefaultThreshold is the minimum confidence a detection must exceed.
const DefaultThreshold = 0.3

// MobileNet-SSD input preprocessing.
const (
	ssdSize  = 300
	ssdScale = 0.007843
	ssdMean  = 127.5
)

// ErrNoDetection is returned by a detection extractor when the target
// class is not found in an image.
var ErrNoDetection = errors.New("target class not detected")

// DetectorConfig describes a Caffe single-shot detector.
type DetectorConfig struct {
	Prototxt string
	Model    string
	// Classes lists class names by class ID. When empty they are read from
	// ClassesFile, one per line.
	Classes     []string
	ClassesFile string
	// Threshold defaults to DefaultThreshold.
	Threshold float64
}

// Detection is one detected object.
type Detection struct {
	ClassID    int
	Class      string
	Confidence float64
}

// ObjectDetector runs a MobileNet-SSD network. Forward passes are serialized.
type ObjectDetector struct {
	mu        sync.Mutex
	net       gocv.Net
	classes   []string
	threshold float64
}

// NewObjectDetector loads the network and class list.
func NewObjectDetector(cfg DetectorConfig) (*ObjectDetector, error) {
	if cfg.Prototxt == "" || cfg.Model == "" {
		return nil, ErrNoModel
	}
	for _, p := range []string{cfg.Prototxt, cfg.Model} {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("model file: %w", err)
		}
	}

	classes := cfg.Classes
	if len(classes) == 0 {
		if cfg.ClassesFile == "" {
			return nil, errors.New("detector needs a class list")
		}
		var err error
		if classes, err = ReadClasses(cfg.ClassesFile); err != nil {
			return nil, err
		}
	}
	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	net := gocv.ReadNetFromCaffe(cfg.Prototxt, cfg.Model)
	if net.Empty() {
		_ = net.Close()
		return nil, fmt.Errorf("failed to load network %s", cfg.Model)
	}
	return &ObjectDetector{net: net, classes: classes, threshold: threshold}, nil
}

// ReadClasses reads class names, one per line.
func ReadClasses(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var classes []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		classes = append(classes, strings.TrimSpace(sc.Text()))
	}
	return classes, sc.Err()
}

// Classes returns the class names by ID.
func (d *ObjectDetector) Classes() []string {
	return slices.Clone(d.classes)
}

// Detect returns every detection above the confidence threshold.
func (d *ObjectDetector) Detect(img *cbimage.Raster) ([]Detection, error) {
	if img.Empty() {
		return nil, feature.ErrEmptyImage
	}
	mat, err := img.BGRMat()
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	blob := gocv.BlobFromImage(mat, ssdScale, image.Pt(ssdSize, ssdSize),
		gocv.NewScalar(ssdMean, ssdMean, ssdMean, 0), false, false)
	defer blob.Close()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.net.SetInput(blob, "")
	out := d.net.Forward("")
	defer out.Close()

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read detections: %w", err)
	}
	return parseDetections(data, d.classes, d.threshold), nil
}

// parseDetections reads SSD output rows of
// [image, class, confidence, left, top, right, bottom].
func parseDetections(data []float32, classes []string, threshold float64) []Detection {
	const stride = 7
	var out []Detection
	for i := 0; i+stride <= len(data); i += stride {
		if data[i+2] <= float32(threshold) {
			continue
		}
		conf := float64(data[i+2])
		id := int(data[i+1])
		det := Detection{ClassID: id, Confidence: conf}
		if id >= 0 && id < len(classes) {
			det.Class = classes[id]
		}
		out = append(out, det)
	}
	return out
}

// maxConfidence returns the highest confidence among detections of class,
// or 0.
func maxConfidence(dets []Detection, class string) float64 {
	best := 0.0
	for _, d := range dets {
		if d.Class == class && d.Confidence > best {
			best = d.Confidence
		}
	}
	return best
}

// Confidence returns the highest confidence with which class is detected
// in img, or 0 when it is not.
func (d *ObjectDetector) Confidence(img *cbimage.Raster, class string) (float64, error) {
	dets, err := d.Detect(img)
	if err != nil {
		return 0, err
	}
	return maxConfidence(dets, class), nil
}

// Extractor returns an extractor producing [confidence] for class. Images
// without the class fail with ErrNoDetection so a ranking skips them.
func (d *ObjectDetector) Extractor(class string) (feature.Extractor, error) {
	if !slices.Contains(d.classes, class) {
		return nil, fmt.Errorf("unknown class %q", class)
	}
	return &detectionExtractor{detector: d, class: class}, nil
}

// Close releases the network.
func (d *ObjectDetector) Close() error {
	return d.net.Close()
}

type detectionExtractor struct {
	detector *ObjectDetector
	class    string
}

func (x *detectionExtractor) Name() string               { return "object-" + x.class }
func (x *detectionExtractor) Category() feature.Category { return feature.CategoryObject }

func (x *detectionExtractor) Extract(img *cbimage.Raster) (feature.Vector, error) {
	conf, err := x.detector.Confidence(img, x.class)
	if err != nil {
		return nil, err
	}
	if conf == 0 {
		return nil, fmt.Errorf("%s: %w", x.class, ErrNoDetection)
	}
	return feature.Vector{conf}, nil
}

// QueryVector is the query for a detection extractor: full confidence, so
// a squared difference ranks the most confident detections first.
func QueryVector() feature.Vector {
	return feature.Vector{1}
}
