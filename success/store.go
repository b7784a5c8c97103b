package success

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pebble "github.com/cockroachdb/pebble"
)

// Record represents a successful job completion
type Record struct {
	JobID     string    `json:"job_id"`
	Timestamp time.Time `json:"timestamp"`
	Method    string    `json:"method"`
	URL       string    `json:"url"`
	Title     string    `json:"title,omitempty"`
	Link      string    `json:"link,omitempty"`
	Attempts  int       `json:"attempts"` // 2 when the single retry was spent
}

// Store keeps success records keyed by job id.
type Store struct {
	db *pebble.DB
}

// Open opens (or creates) the success store at dbPath
func Open(dbPath string) (*Store, error) {
	db, err := pebble.Open(dbPath, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open success store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the success store
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put stores a successful job completion. A zero Timestamp is set to now.
func (s *Store) Put(record Record) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("success store not initialized")
	}
	if record.JobID == "" {
		return fmt.Errorf("success record without job id")
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal success record: %w", err)
	}
	return s.db.Set([]byte(record.JobID), data, pebble.Sync)
}

// Get retrieves a success record by job id. Returns nil, nil when absent.
func (s *Store) Get(jobID string) (*Record, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("success store not initialized")
	}

	data, closer, err := s.db.Get([]byte(jobID))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	defer closer.Close()

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal success record: %w", err)
	}
	return &record, nil
}

// List returns all success records (for admin/debugging)
func (s *Store) List() ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("success store not initialized")
	}

	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var records []Record
	for iter.First(); iter.Valid(); iter.Next() {
		var record Record
		if err := json.Unmarshal(iter.Value(), &record); err != nil {
			continue // Skip invalid records
		}
		records = append(records, record)
	}
	return records, nil
}

// CleanupOldRecords removes records older than maxAge and reports how many
// were deleted.
func (s *Store) CleanupOldRecords(maxAge time.Duration) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("success store not initialized")
	}

	cutoff := time.Now().Add(-maxAge)
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return 0, err
	}

	var keysToDelete [][]byte
	for iter.First(); iter.Valid(); iter.Next() {
		var record Record
		if err := json.Unmarshal(iter.Value(), &record); err != nil {
			continue
		}
		if record.Timestamp.Before(cutoff) {
			key := make([]byte, len(iter.Key()))
			copy(key, iter.Key())
			keysToDelete = append(keysToDelete, key)
		}
	}
	if err := iter.Close(); err != nil {
		return 0, err
	}

	for i, key := range keysToDelete {
		if err := s.db.Delete(key, pebble.Sync); err != nil {
			return i, fmt.Errorf("failed to delete old success record: %w", err)
		}
	}
	return len(keysToDelete), nil
}

// CheckHealth performs a basic health check on the success database
func (s *Store) CheckHealth() error {
	if s == nil || s.db == nil {
		return fmt.Errorf("success database not initialized")
	}

	_, closer, err := s.db.Get([]byte("__health_check__"))
	if err != nil && !errors.Is(err, pebble.ErrNotFound) {
		return fmt.Errorf("database health check failed: %w", err)
	}
	if closer != nil {
		closer.Close()
	}
	return nil
}
