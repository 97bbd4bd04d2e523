// Package storage persists aggregated explanation profiles so they can be
// reloaded later for comparison overlays. It uses BoltDB as the underlying
// storage engine with JSON-encoded records keyed by label and timestamp,
// which keeps time-range scans a simple prefix cursor walk.
package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"explainprof/internal/aggregate"

	"go.etcd.io/bbolt"
)

const aggregatesBucket = "aggregates"

// ErrNotFound is returned when no record exists for the requested label.
var ErrNotFound = errors.New("storage: no aggregated profile for label")

// ProfileRecord is a stored snapshot of an aggregated explanation.
type ProfileRecord struct {
	Label          string          `json:"label"`
	Kind           aggregate.Kind  `json:"kind"`
	CreatedAt      time.Time       `json:"created_at"`
	MeanPrediction float64         `json:"mean_prediction"`
	Rows           []aggregate.Row `json:"rows"`
}

// Store provides persistent storage for aggregated profiles.
type Store struct {
	db *bbolt.DB
}

// New opens (or creates) the database under dataPath.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, "explainprof.db")

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(aggregatesBucket)); err != nil {
			return fmt.Errorf("create aggregates bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection gracefully.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveProfiles stores a snapshot of an aggregated result under the label.
func (s *Store) SaveProfiles(label string, p *aggregate.Profiles) error {
	rec := ProfileRecord{
		Label:          label,
		Kind:           p.Kind(),
		CreatedAt:      time.Now().UTC(),
		MeanPrediction: p.MeanPrediction,
		Rows:           p.Result,
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(aggregatesBucket))

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal profile record: %w", err)
		}

		key := fmt.Sprintf("%s_%d", label, rec.CreatedAt.UnixNano())
		return b.Put([]byte(key), data)
	})
}

// Latest returns the most recent record stored under the label.
func (s *Store) Latest(label string) (ProfileRecord, error) {
	var out ProfileRecord
	found := false

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(aggregatesBucket))
		c := b.Cursor()
		prefix := []byte(label + "_")

		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var rec ProfileRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue // Skip malformed records
			}
			if !found || rec.CreatedAt.After(out.CreatedAt) {
				out = rec
				found = true
			}
		}
		return nil
	})
	if err != nil {
		return ProfileRecord{}, err
	}
	if !found {
		return ProfileRecord{}, fmt.Errorf("%w: %s", ErrNotFound, label)
	}
	return out, nil
}

// GetInRange returns records for a label within a time window, oldest first.
func (s *Store) GetInRange(label string, start, end time.Time) ([]ProfileRecord, error) {
	var records []ProfileRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(aggregatesBucket))
		c := b.Cursor()

		prefix := []byte(label + "_")
		startKey := []byte(fmt.Sprintf("%s_%d", label, start.UnixNano()))
		endKey := []byte(fmt.Sprintf("%s_%d", label, end.UnixNano()))

		for k, v := c.Seek(startKey); k != nil && bytes.Compare(k, endKey) <= 0; k, v = c.Next() {
			if !bytes.HasPrefix(k, prefix) {
				continue
			}
			var rec ProfileRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue
			}
			records = append(records, rec)
		}
		return nil
	})

	return records, err
}

// Restore rebuilds an aggregate.Profiles from a stored record. The raw
// profile overlay is not persisted, so the restored object plots aggregates
// only.
func (rec ProfileRecord) Restore() *aggregate.Profiles {
	return aggregate.FromRows(rec.Kind, rec.Rows, rec.MeanPrediction)
}
