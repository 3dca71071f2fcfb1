package dnn

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDetections(t *testing.T) {
	classes := []string{"background", "bottle", "chair"}
	data := []float32{
		0, 1, 0.9, 0, 0, 1, 1,
		0, 2, 0.2, 0, 0, 1, 1,
		0, 1, 0.6, 0, 0, 1, 1,
		0, 7, 0.8, 0, 0, 1, 1,
		0, 2, 0.3, 0, 0, 1, 1,
	}
	dets := parseDetections(data, classes, DefaultThreshold)
	require.Len(t, dets, 3)
	assert.Equal(t, "bottle", dets[0].Class)
	assert.Empty(t, dets[2].Class, "class id outside the list")

	assert.InDelta(t, 0.9, maxConfidence(dets, "bottle"), 1e-6)
	assert.Zero(t, maxConfidence(dets, "chair"), "0.3 is not above the threshold")
}

func TestReadClasses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "classes.txt")
	require.NoError(t, os.WriteFile(path, []byte("background\naeroplane\n bicycle \n"), 0o644))

	classes, err := ReadClasses(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"background", "aeroplane", "bicycle"}, classes)
}

func TestConstructorsValidate(t *testing.T) {
	_, err := NewEmbedder(EmbedderConfig{})
	assert.ErrorIs(t, err, ErrNoModel)

	_, err = NewEmbedder(EmbedderConfig{Model: filepath.Join(t.TempDir(), "missing.onnx")})
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = NewObjectDetector(DetectorConfig{Model: "x.caffemodel"})
	assert.ErrorIs(t, err, ErrNoModel)

	cfg := EmbedderConfig{}.withDefaults()
	assert.Equal(t, "embedding", cfg.Name)
	assert.Equal(t, 224, cfg.Size)
	assert.InDelta(t, 1.0/255, cfg.Scale, 1e-12)
}
