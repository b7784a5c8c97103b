package failures

import (
	"path/filepath"
	"testing"
	"time"
)

func TestFailureStore(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "failures.db"))
	if err != nil {
		t.Fatalf("Failed to initialize failure store: %v", err)
	}
	defer s.Close()

	record := Record{
		JobID:    "job-err",
		Method:   "clip",
		URL:      "https://www.youtube.com/watch?v=abc",
		Class:    "validation",
		Error:    "Requested gif length exceeds the maximum of 60 seconds",
		Attempts: 1,
	}
	if err := s.Put(record); err != nil {
		t.Fatalf("Failed to store failure: %v", err)
	}

	got, err := s.Get("job-err")
	if err != nil {
		t.Fatalf("Failed to get failure: %v", err)
	}
	if got == nil || got.Error != record.Error || got.Class != "validation" {
		t.Fatalf("Unexpected failure record %+v", got)
	}

	if missing, err := s.Get("nope"); err != nil || missing != nil {
		t.Errorf("Expected nil, nil for missing record, got %+v, %v", missing, err)
	}
}

func TestFailureCleanup(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "failures.db"))
	if err != nil {
		t.Fatalf("Failed to initialize failure store: %v", err)
	}
	defer s.Close()

	s.Put(Record{JobID: "a", Error: "x", Timestamp: time.Now().Add(-48 * time.Hour)})
	s.Put(Record{JobID: "b", Error: "y"})

	n, err := s.CleanupOldRecords(24 * time.Hour)
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 deleted, got %d", n)
	}

	list, err := s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 1 || list[0].JobID != "b" {
		t.Errorf("Unexpected remaining records %+v", list)
	}
}
