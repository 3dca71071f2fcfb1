// Package store persists feature vectors, as CSV text (optionally zstd
// compressed) or in a bbolt database.
package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"cbir-engine/internal/feature"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Record is one image's feature vector.
type Record struct {
	ID     string
	Vector feature.Vector
}

// ParseError describes a malformed CSV line. Field is the zero-based
// column, or -1 when the line as a whole is rejected.
type ParseError struct {
	Line  int
	Field int
	Token string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Field < 0 {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("line %d, field %d (%q): %v", e.Line, e.Field, e.Token, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Writer writes records as lines of "id,f1,f2,...".
type Writer struct {
	cw *csv.Writer
}

// NewWriter creates a writer on w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{cw: csv.NewWriter(w)}
}

// Write buffers one record.
func (w *Writer) Write(rec Record) error {
	row := make([]string, 0, len(rec.Vector)+1)
	row = append(row, rec.ID)
	for _, v := range rec.Vector {
		row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
	}
	return w.cw.Write(row)
}

// Flush writes buffered records and reports any write error.
func (w *Writer) Flush() error {
	w.cw.Flush()
	return w.cw.Error()
}

// Reader reads records written by Writer. Lines may have any number of
// values; comparing vectors of different lengths is left to the caller.
type Reader struct {
	cr *csv.Reader
}

// NewReader creates a reader on r.
func NewReader(r io.Reader) *Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return &Reader{cr: cr}
}

// Next returns the next record, io.EOF at the end of input, or a
// *ParseError for a malformed line after which reading may continue.
func (r *Reader) Next() (Record, error) {
	row, err := r.cr.Read()
	if err != nil {
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return Record{}, &ParseError{Line: perr.Line, Field: -1, Err: perr.Err}
		}
		return Record{}, err
	}
	line, _ := r.cr.FieldPos(0)

	if len(row) < 2 {
		return Record{}, &ParseError{Line: line, Field: -1, Err: errors.New("no feature values")}
	}
	rec := Record{ID: row[0], Vector: make(feature.Vector, len(row)-1)}
	for i, tok := range row[1:] {
		v, err := strconv.ParseFloat(strings.TrimSpace(tok), 64)
		if err != nil {
			return Record{}, &ParseError{Line: line, Field: i + 1, Token: tok, Err: err}
		}
		rec.Vector[i] = v
	}
	return rec, nil
}

// ReadAll reads every record from r. Malformed lines are logged and
// skipped; the number skipped is returned.
func ReadAll(r io.Reader, logger *zap.Logger) ([]Record, int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	rd := NewReader(r)
	var (
		records []Record
		skipped int
	)
	for {
		rec, err := rd.Next()
		if err == io.EOF {
			return records, skipped, nil
		}
		var perr *ParseError
		if errors.As(err, &perr) {
			skipped++
			logger.Warn("skipping malformed feature line", zap.Int("line", perr.Line), zap.Error(perr))
			continue
		}
		if err != nil {
			return records, skipped, err
		}
		records = append(records, rec)
	}
}

// Lookup finds the record for id, matching first the exact ID and then
// the base names of both.
func Lookup(records []Record, id string) (Record, bool) {
	for _, rec := range records {
		if rec.ID == id {
			return rec, true
		}
	}
	base := filepath.Base(id)
	for _, rec := range records {
		if filepath.Base(rec.ID) == base {
			return rec, true
		}
	}
	return Record{}, false
}

// Index maps record IDs to vectors. Later duplicates win.
func Index(records []Record) map[string]feature.Vector {
	m := make(map[string]feature.Vector, len(records))
	for _, rec := range records {
		m[rec.ID] = rec.Vector
	}
	return m
}

func compressed(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".zst")
}

// Create opens path for writing, zstd compressing when it ends in ".zst".
func Create(path string) (io.WriteCloser, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if !compressed(path) {
		return f, nil
	}
	enc, err := zstd.NewWriter(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to create compressor: %w", err)
	}
	return &zstdWriteCloser{Encoder: enc, f: f}, nil
}

type zstdWriteCloser struct {
	*zstd.Encoder
	f *os.File
}

func (z *zstdWriteCloser) Close() error {
	err := z.Encoder.Close()
	if cerr := z.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// Open opens path for reading, decompressing when it ends in ".zst".
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !compressed(path) {
		return f, nil
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to create decompressor: %w", err)
	}
	return &zstdReadCloser{Decoder: dec, f: f}, nil
}

type zstdReadCloser struct {
	*zstd.Decoder
	f *os.File
}

func (z *zstdReadCloser) Close() error {
	z.Decoder.Close()
	return z.f.Close()
}

// WriteFile writes records to path.
func WriteFile(path string, records []Record) error {
	out, err := Create(path)
	if err != nil {
		return err
	}
	w := NewWriter(out)
	for _, rec := range records {
		if err := w.Write(rec); err != nil {
			_ = out.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// ReadFile reads the records in path, skipping malformed lines.
func ReadFile(path string, logger *zap.Logger) ([]Record, int, error) {
	in, err := Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer in.Close()
	return ReadAll(in, logger)
}
