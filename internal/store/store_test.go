package store

import (
	"bytes"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cbir-engine/internal/feature"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func sampleRecords() []Record {
	return []Record{
		{ID: "img1.jpg", Vector: feature.Vector{0.1, 0.25, 1e-12}},
		{ID: "dir/img,2.png", Vector: feature.Vector{3, math.Pi}},
	}
}

func TestWriterFormat(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Write(Record{ID: "a.jpg", Vector: feature.Vector{1, 0.5, 0}}))
	require.NoError(t, w.Flush())
	assert.Equal(t, "a.jpg,1,0.5,0\n", buf.String())
}

func TestCSVRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	for _, rec := range sampleRecords() {
		require.NoError(t, w.Write(rec))
	}
	require.NoError(t, w.Flush())

	got, skipped, err := ReadAll(&buf, nil)
	require.NoError(t, err)
	assert.Zero(t, skipped)
	assert.Equal(t, sampleRecords(), got)
}

func TestReaderMalformed(t *testing.T) {
	input := strings.Join([]string{
		"good.jpg,1,2,3",
		"bad.jpg,1,abc,3",
		"lonely.jpg",
		"",
		"spaced.jpg, 4, 5",
	}, "\n")

	core, logs := observer.New(zap.WarnLevel)
	records, skipped, err := ReadAll(strings.NewReader(input), zap.New(core))
	require.NoError(t, err)
	assert.Equal(t, 2, skipped)
	require.Len(t, records, 2)
	assert.Equal(t, "good.jpg", records[0].ID)
	assert.Equal(t, feature.Vector{4, 5}, records[1].Vector)
	assert.Equal(t, 2, logs.Len())

	rd := NewReader(strings.NewReader("x.jpg,1,zz\n"))
	_, err = rd.Next()
	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 1, perr.Line)
	assert.Equal(t, 2, perr.Field)
	assert.Equal(t, "zz", perr.Token)
	assert.Contains(t, perr.Error(), "field 2")

	_, err = rd.Next()
	assert.Equal(t, io.EOF, err)
}

func TestLookupAndIndex(t *testing.T) {
	records := []Record{
		{ID: "/data/a.jpg", Vector: feature.Vector{1}},
		{ID: "b.jpg", Vector: feature.Vector{2}},
	}
	rec, ok := Lookup(records, "b.jpg")
	assert.True(t, ok)
	assert.Equal(t, feature.Vector{2}, rec.Vector)

	rec, ok = Lookup(records, "other/a.jpg")
	assert.True(t, ok)
	assert.Equal(t, "/data/a.jpg", rec.ID)

	_, ok = Lookup(records, "c.jpg")
	assert.False(t, ok)

	idx := Index(records)
	assert.Len(t, idx, 2)
	assert.Equal(t, feature.Vector{1}, idx["/data/a.jpg"])
}

func TestFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"features.csv", "features.csv.zst"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, WriteFile(path, sampleRecords()))

			got, skipped, err := ReadFile(path, zap.NewNop())
			require.NoError(t, err)
			assert.Zero(t, skipped)
			assert.Equal(t, sampleRecords(), got)
		})
	}

	// the compressed file is not plain text
	raw, err := os.ReadFile(filepath.Join(dir, "features.csv.zst"))
	require.NoError(t, err)
	assert.False(t, bytes.HasPrefix(raw, []byte("img1.jpg")))

	_, _, err = ReadFile(filepath.Join(dir, "missing.csv"), nil)
	assert.Error(t, err)
}

func TestBoltStore(t *testing.T) {
	s, err := OpenBolt(filepath.Join(t.TempDir(), "features.db"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.PutAll("rgb8", sampleRecords()))
	require.NoError(t, s.Put("laws", Record{ID: "img1.jpg", Vector: feature.Vector{-1.5}}))

	rec, err := s.Get("rgb8", "img1.jpg")
	require.NoError(t, err)
	assert.Equal(t, sampleRecords()[0].Vector, rec.Vector)

	_, err = s.Get("rgb8", "nope.jpg")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get("gabor", "img1.jpg")
	assert.ErrorIs(t, err, ErrNotFound)

	all, err := s.All("rgb8")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "dir/img,2.png", all[0].ID, "ordered by key")

	none, err := s.All("gabor")
	require.NoError(t, err)
	assert.Empty(t, none)

	buckets, err := s.Buckets()
	require.NoError(t, err)
	assert.Equal(t, []string{"laws", "rgb8"}, buckets)

	require.NoError(t, s.Put("laws", Record{ID: "img1.jpg", Vector: feature.Vector{2}}))
	rec, err = s.Get("laws", "img1.jpg")
	require.NoError(t, err)
	assert.Equal(t, feature.Vector{2}, rec.Vector)
}

func TestDecodeVector(t *testing.T) {
	_, err := decodeVector([]byte{1, 2, 3})
	assert.Error(t, err)

	v, err := decodeVector(encodeVector(feature.Vector{math.Inf(1), 0, -2}))
	require.NoError(t, err)
	assert.Equal(t, feature.Vector{math.Inf(1), 0, -2}, v)
}
