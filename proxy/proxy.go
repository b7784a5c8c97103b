// Package proxy keeps the pool of outbound proxies jobs are routed through.
// The list is fetched from a remote text source, cached on disk and
// refreshed hourly.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Atronar/yt-dlp-web-api/logger"
)

const (
	fetchTimeout    = 30 * time.Second
	refreshInterval = time.Hour
	// Used instead of refreshInterval while the pool is empty.
	retryInterval = 5 * time.Minute
)

// ErrEmpty is returned by Pick when no proxy is loaded.
var ErrEmpty = errors.New("proxy pool is empty")

// Pool holds proxy entries of the form user:pass@host:port. Readers always
// observe either the previous or the next complete list.
type Pool struct {
	mu        sync.RWMutex
	entries   []string
	cachePath string
	source    string
	client    *http.Client

	refreshEvery time.Duration
	retryEvery   time.Duration

	// OnSwap, when set, observes the size of every newly installed list.
	OnSwap func(entries int)
}

// NewPool creates an empty pool backed by the cache file at cachePath.
// source is the list URL used by Refresh and Run.
func NewPool(cachePath, source string) *Pool {
	return &Pool{
		cachePath: cachePath,
		source:    source,
		client:    &http.Client{Timeout: fetchTimeout},

		refreshEvery: refreshInterval,
		retryEvery:   retryInterval,
	}
}

// Pick returns one entry chosen uniformly at random.
func (p *Pool) Pick() (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.entries) == 0 {
		return "", ErrEmpty
	}
	return p.entries[rand.IntN(len(p.entries))], nil
}

// Len reports how many entries are loaded.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

// Load replaces the in-memory list with the contents of the cache file.
func (p *Pool) Load() error {
	data, err := os.ReadFile(p.cachePath)
	if err != nil {
		return fmt.Errorf("failed to read proxy cache: %w", err)
	}
	p.swap(splitLines(string(data)))
	return nil
}

// Refresh downloads the list, rewrites it into user:pass@host:port form,
// writes the cache file and swaps the in-memory list.
func (p *Pool) Refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.source, nil)
	if err != nil {
		return fmt.Errorf("failed to build proxy list request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch proxy list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("proxy list returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read proxy list: %w", err)
	}

	entries, err := ParseList(string(body))
	if err != nil {
		return err
	}

	tmp := p.cachePath + ".tmp"
	if err := os.WriteFile(tmp, []byte(strings.Join(entries, "\n")), 0644); err != nil {
		return fmt.Errorf("failed to write proxy cache: %w", err)
	}
	if err := os.Rename(tmp, p.cachePath); err != nil {
		return fmt.Errorf("failed to replace proxy cache: %w", err)
	}

	p.swap(entries)
	logger.Infof("Proxy list refreshed: %d entries", len(entries))
	return nil
}

// Init fills the pool before any job is served: from the cache file when
// it holds entries, otherwise by downloading the list.
func (p *Pool) Init(ctx context.Context) error {
	if _, err := os.Stat(p.cachePath); err == nil {
		if err := p.Load(); err != nil {
			logger.Warnf("Failed to load proxy cache, downloading instead: %v", err)
		} else if p.Len() > 0 {
			logger.Infof("Loaded %d proxies from %s", p.Len(), p.cachePath)
			return nil
		}
	}
	if err := p.Refresh(ctx); err != nil {
		return fmt.Errorf("initial proxy refresh failed: %w", err)
	}
	return nil
}

// Run refreshes the list every hour until ctx is done. Refresh failures
// keep the previous list; while the pool is empty it retries every few
// minutes instead.
func (p *Pool) Run(ctx context.Context) error {
	timer := time.NewTimer(p.nextWait())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			if err := p.Refresh(ctx); err != nil {
				logger.Errorf("Proxy refresh failed, keeping %d cached entries: %v", p.Len(), err)
			}
			timer.Reset(p.nextWait())
		}
	}
}

func (p *Pool) nextWait() time.Duration {
	if p.Len() == 0 {
		return p.retryEvery
	}
	return p.refreshEvery
}

func (p *Pool) swap(entries []string) {
	p.mu.Lock()
	p.entries = entries
	p.mu.Unlock()
	if p.OnSwap != nil {
		p.OnSwap(len(entries))
	}
}

// ParseList turns host:port:user:pass lines into user:pass@host:port
// entries. A trailing blank line is dropped; any other malformed line is
// an error.
func ParseList(body string) ([]string, error) {
	lines := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}

	entries := make([]string, 0, len(lines))
	for i, line := range lines {
		parts := strings.Split(strings.TrimSpace(line), ":")
		if len(parts) != 4 {
			return nil, fmt.Errorf("malformed proxy line %d: %q", i+1, line)
		}
		host, port, user, pass := parts[0], parts[1], parts[2], parts[3]
		entries = append(entries, user+":"+pass+"@"+host+":"+port)
	}
	return entries, nil
}

func splitLines(data string) []string {
	var out []string
	for _, line := range strings.Split(data, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
