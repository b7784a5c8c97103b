// Package archive assembles playlist downloads into a single zip file.
package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/Atronar/yt-dlp-web-api/faults"

	"github.com/klauspost/compress/zip"
)

// Assembler owns one zip archive for the lifetime of a playlist job.
// Append may be called from several goroutines; entries are written one at
// a time.
type Assembler struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	zw     *zip.Writer
	names  map[string]int
	count  int
	closed bool
	// Set once an entry was left half written.
	broken error
}

// Create starts a new archive at path, truncating anything already there.
func Create(path string) (*Assembler, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive %s: %w", path, err)
	}
	return &Assembler{
		path:  path,
		file:  f,
		zw:    zip.NewWriter(f),
		names: make(map[string]int),
	}, nil
}

// Path returns the archive location on disk.
func (a *Assembler) Path() string { return a.path }

// Count reports how many entries were appended.
func (a *Assembler) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}

// Append copies the file at src into the archive under its base name.
// Duplicate base names get a numeric suffix so no entry is overwritten.
// Failures before the entry header is written leave the archive untouched
// and may be retried. Once the header is written, a failure leaves a
// truncated entry behind, so the error is permanent and every later
// Append fails too.
func (a *Assembler) Append(src string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s for archiving: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return fmt.Errorf("archive %s already closed", a.path)
	}
	if a.broken != nil {
		return faults.MarkPermanent(fmt.Errorf("archive %s is incomplete: %w", a.path, a.broken))
	}

	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = a.uniqueName(filepath.Base(src))
	hdr.Method = zip.Deflate

	w, err := a.zw.CreateHeader(hdr)
	if err != nil {
		a.broken = err
		return faults.MarkPermanent(fmt.Errorf("failed to add %s to archive: %w", hdr.Name, err))
	}
	if _, err := io.Copy(w, in); err != nil {
		a.broken = err
		return faults.MarkPermanent(fmt.Errorf("failed to write %s to archive: %w", hdr.Name, err))
	}
	a.count++
	return nil
}

// Close finalizes the central directory. Safe to call more than once.
func (a *Assembler) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true

	zerr := a.zw.Close()
	ferr := a.file.Close()
	if zerr != nil {
		return fmt.Errorf("failed to finalize archive: %w", zerr)
	}
	return ferr
}

func (a *Assembler) uniqueName(name string) string {
	n := a.names[name]
	a.names[name] = n + 1
	if n == 0 {
		return name
	}
	ext := filepath.Ext(name)
	return fmt.Sprintf("%s (%d)%s", name[:len(name)-len(ext)], n, ext)
}
