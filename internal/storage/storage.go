// Package storage provides the persistent prediction audit log for the
// nodule risk service. It uses BoltDB as the underlying storage engine to
// keep one record per served prediction, keyed for efficient per-tier
// time-range review queries.
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const predictionsBucket = "predictions"

// PredictionRecord is one served prediction as persisted for review.
type PredictionRecord struct {
	Tier        string    `json:"tier"`
	Diameter    float64   `json:"diameter"`
	Probability float64   `json:"probability"`
	Band        string    `json:"band"`
	Explained   bool      `json:"explained"`
	Ts          time.Time `json:"ts"`
}

// Store provides persistent storage for prediction records using BoltDB.
type Store struct {
	db *bbolt.DB
}

// New opens (or creates) the audit database under dataPath.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, "nodule-risk.db")

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(predictionsBucket)); err != nil {
			return fmt.Errorf("create predictions bucket: %w", err)
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

// StorePrediction persists one prediction record. Keys are
// "tier_timestamp" so per-tier range scans stay cheap.
func (s *Store) StorePrediction(rec PredictionRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(predictionsBucket))

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal prediction: %w", err)
		}

		key := fmt.Sprintf("%s_%d", rec.Tier, rec.Ts.UnixNano())
		return b.Put([]byte(key), data)
	})
}

// GetPredictions retrieves prediction records for a tier within a time
// range, inclusive of both ends.
func (s *Store) GetPredictions(tier string, start, end time.Time) ([]PredictionRecord, error) {
	var records []PredictionRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(predictionsBucket))
		c := b.Cursor()

		prefix := []byte(tier + "_")
		startKey := []byte(fmt.Sprintf("%s_%d", tier, start.UnixNano()))
		endKey := []byte(fmt.Sprintf("%s_%d", tier, end.UnixNano()))

		for k, v := c.Seek(startKey); k != nil && bytes.Compare(k, endKey) <= 0; k, v = c.Next() {
			if !bytes.HasPrefix(k, prefix) {
				continue
			}

			var rec PredictionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue // Skip malformed records
			}
			records = append(records, rec)
		}

		return nil
	})

	return records, err
}
