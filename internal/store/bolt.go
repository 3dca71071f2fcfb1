package store

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"cbir-engine/internal/feature"

	bolt "go.etcd.io/bbolt"
)

// BoltStore keeps vectors in a bbolt file, one bucket per extractor, keyed
// by image ID. Values are little-endian float64 arrays.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens or creates the database at path.
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &BoltStore{db: db}, nil
}

// Close releases the database file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Put stores one record in bucket, replacing any previous vector.
func (s *BoltStore) Put(bucket string, rec Record) error {
	return s.PutAll(bucket, []Record{rec})
}

// PutAll stores records in bucket in a single transaction.
func (s *BoltStore) PutAll(bucket string, records []Record) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return err
		}
		for _, rec := range records {
			if err := b.Put([]byte(rec.ID), encodeVector(rec.Vector)); err != nil {
				return fmt.Errorf("put %s: %w", rec.ID, err)
			}
		}
		return nil
	})
}

// Get returns the record for id in bucket, or ErrNotFound.
func (s *BoltStore) Get(bucket, id string) (Record, error) {
	var rec Record
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return ErrNotFound
		}
		data := b.Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		v, err := decodeVector(data)
		if err != nil {
			return fmt.Errorf("%s: %w", id, err)
		}
		rec = Record{ID: id, Vector: v}
		return nil
	})
	return rec, err
}

// All returns every record in bucket ordered by ID. A missing bucket
// yields no records.
func (s *BoltStore) All(bucket string) ([]Record, error) {
	var out []Record
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, data []byte) error {
			v, err := decodeVector(data)
			if err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
			out = append(out, Record{ID: string(k), Vector: v})
			return nil
		})
	})
	return out, err
}

// Buckets lists the extractor buckets in the database.
func (s *BoltStore) Buckets() ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			names = append(names, string(name))
			return nil
		})
	})
	return names, err
}

func encodeVector(v feature.Vector) []byte {
	buf := make([]byte, 8*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(f))
	}
	return buf
}

func decodeVector(data []byte) (feature.Vector, error) {
	if len(data)%8 != 0 {
		return nil, fmt.Errorf("vector blob of %d bytes is not a float64 array", len(data))
	}
	v := make(feature.Vector, len(data)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[8*i:]))
	}
	return v, nil
}
