// Package janitor reclaims disk space and stale job history.
package janitor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/Atronar/yt-dlp-web-api/logger"
)

const (
	// Retention is how long an artifact stays in the downloads directory.
	Retention = 2 * time.Hour
	// Interval between sweeps.
	Interval = time.Hour
	// RecordRetention is how long job history is kept.
	RecordRetention = 30 * 24 * time.Hour
)

// RecordPruner is implemented by the success and failure stores.
type RecordPruner interface {
	CleanupOldRecords(maxAge time.Duration) (int, error)
}

// Janitor deletes expired artifacts from one directory and prunes old
// job records.
type Janitor struct {
	dir     string
	pruners map[string]RecordPruner
	remove  func(path string) error

	// OnSweep, when set, observes the number of files each cycle removed.
	OnSweep func(removed int)
}

// New creates a janitor for dir. pruners are keyed by a name used in logs.
func New(dir string, pruners map[string]RecordPruner) *Janitor {
	return &Janitor{dir: dir, pruners: pruners, remove: os.Remove}
}

// Sweep deletes every regular file whose modification time is more than
// Retention before now. If the directory is missing it is created and
// nothing else happens this cycle. Individual delete failures are logged
// and skipped. Returns the number of files removed.
func (j *Janitor) Sweep(now time.Time) (int, error) {
	entries, err := os.ReadDir(j.dir)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Infof("Downloads directory %s missing, creating it", j.dir)
		if err := os.MkdirAll(j.dir, 0755); err != nil {
			return 0, fmt.Errorf("failed to create downloads directory: %w", err)
		}
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to list downloads directory: %w", err)
	}

	cutoff := now.Add(-Retention)
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Deleted by someone else between ReadDir and Info.
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(j.dir, e.Name())
		if err := j.remove(path); err != nil {
			logger.Errorf("Failed to delete expired artifact %s: %v", path, err)
			continue
		}
		logger.Debugf("Deleted expired artifact %s", path)
		removed++
	}
	return removed, nil
}

// Prune removes job records older than RecordRetention from every store.
func (j *Janitor) Prune() {
	for name, p := range j.pruners {
		n, err := p.CleanupOldRecords(RecordRetention)
		if err != nil {
			logger.Errorf("Failed to cleanup old %s records: %v", name, err)
			continue
		}
		if n > 0 {
			logger.Infof("Cleaned up %d old %s records", n, name)
		}
	}
}

func (j *Janitor) cycle() {
	n, err := j.Sweep(time.Now())
	if err != nil {
		logger.Errorf("Sweep of %s failed: %v", j.dir, err)
	} else if n > 0 {
		logger.Infof("Sweep removed %d expired artifacts", n)
	}
	if j.OnSweep != nil {
		j.OnSweep(n)
	}
	j.Prune()
}

// Run sweeps immediately and then every Interval until ctx is done.
func (j *Janitor) Run(ctx context.Context) error {
	logger.Infof("Janitor started for %s (retention %v, every %v)", j.dir, Retention, Interval)
	j.cycle()

	ticker := time.NewTicker(Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Janitor stopped due to context cancellation")
			return nil
		case <-ticker.C:
			j.cycle()
		}
	}
}
