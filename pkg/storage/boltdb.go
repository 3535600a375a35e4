package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/cuemby/judgehost/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var bucketProblems = []byte("problems")

// BoltStore implements Store using BoltDB.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the judgehost database under dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "judgehost.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketProblems)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// CreateProblem persists a new (or replaced) ProblemRecord, keyed by problem_id.
func (s *BoltStore) CreateProblem(record *types.ProblemRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProblems)
		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		return b.Put([]byte(record.ProblemID), data)
	})
}

// GetProblem retrieves a ProblemRecord by problem_id.
func (s *BoltStore) GetProblem(problemID string) (*types.ProblemRecord, error) {
	var record types.ProblemRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProblems)
		data := b.Get([]byte(problemID))
		if data == nil {
			return fmt.Errorf("problem not found: %s", problemID)
		}
		return json.Unmarshal(data, &record)
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ListProblems returns every registered ProblemRecord.
func (s *BoltStore) ListProblems() ([]*types.ProblemRecord, error) {
	var records []*types.ProblemRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProblems)
		return b.ForEach(func(k, v []byte) error {
			var record types.ProblemRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return err
			}
			records = append(records, &record)
			return nil
		})
	})
	return records, err
}

// UpdateProblem is an upsert, same as CreateProblem.
func (s *BoltStore) UpdateProblem(record *types.ProblemRecord) error {
	return s.CreateProblem(record)
}

// DeleteProblem removes a ProblemRecord.
func (s *BoltStore) DeleteProblem(problemID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProblems)
		return b.Delete([]byte(problemID))
	})
}
