package proxy

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestParseList(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    []string
		wantErr bool
	}{
		{"single with trailing newline", "1.2.3.4:8080:user:pass\n", []string{"user:pass@1.2.3.4:8080"}, false},
		{"two without trailing newline", "1.1.1.1:1:a:b\n2.2.2.2:2:c:d", []string{"a:b@1.1.1.1:1", "c:d@2.2.2.2:2"}, false},
		{"crlf", "1.1.1.1:1:a:b\r\n", []string{"a:b@1.1.1.1:1"}, false},
		{"malformed", "1.1.1.1:1:a\n", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseList(tt.body)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseList error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Entry %d: expected %s, got %s", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestPickEmpty(t *testing.T) {
	p := NewPool(filepath.Join(t.TempDir(), "proxies.txt"), "")
	if _, err := p.Pick(); !errors.Is(err, ErrEmpty) {
		t.Errorf("Expected ErrEmpty, got %v", err)
	}
}

func TestRefreshWritesCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("1.2.3.4:8080:user:pass\n"))
	}))
	defer srv.Close()

	cache := filepath.Join(t.TempDir(), "proxies.txt")
	p := NewPool(cache, srv.URL)
	swapped := -1
	p.OnSwap = func(n int) { swapped = n }
	if err := p.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if swapped != 1 {
		t.Errorf("Expected swap hook to see 1 entry, got %d", swapped)
	}

	got, err := p.Pick()
	if err != nil {
		t.Fatalf("Pick failed: %v", err)
	}
	if got != "user:pass@1.2.3.4:8080" {
		t.Errorf("Unexpected entry %s", got)
	}

	data, err := os.ReadFile(cache)
	if err != nil {
		t.Fatalf("Cache not written: %v", err)
	}
	if string(data) != "user:pass@1.2.3.4:8080" {
		t.Errorf("Unexpected cache contents %q", data)
	}

	// A fresh pool picks the same list up from the cache.
	q := NewPool(cache, srv.URL)
	if err := q.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if q.Len() != 1 {
		t.Errorf("Expected 1 cached entry, got %d", q.Len())
	}
}

func TestRefreshFailureKeepsList(t *testing.T) {
	var down atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if down.Load() {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		w.Write([]byte("1.1.1.1:1:a:b\n"))
	}))
	defer srv.Close()

	p := NewPool(filepath.Join(t.TempDir(), "proxies.txt"), srv.URL)
	if err := p.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	down.Store(true)
	if err := p.Refresh(context.Background()); err == nil {
		t.Fatal("Expected refresh error on bad status")
	}
	if p.Len() != 1 {
		t.Errorf("Expected previous list to survive, got %d entries", p.Len())
	}
}

func TestInitDownloadsWithoutCache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("1.2.3.4:8080:user:pass\n"))
	}))
	defer srv.Close()

	cache := filepath.Join(t.TempDir(), "proxies.txt")
	p := NewPool(cache, srv.URL)
	if err := p.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("Expected one download, got %d", hits.Load())
	}
	if got, err := p.Pick(); err != nil || got != "user:pass@1.2.3.4:8080" {
		t.Errorf("Pool not ready after Init: %q, %v", got, err)
	}
	if _, err := os.Stat(cache); err != nil {
		t.Errorf("Expected cache file: %v", err)
	}
}

func TestInitPrefersCache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("9.9.9.9:1:x:y\n"))
	}))
	defer srv.Close()

	cache := filepath.Join(t.TempDir(), "proxies.txt")
	if err := os.WriteFile(cache, []byte("a:b@1.1.1.1:1\nc:d@2.2.2.2:2\n"), 0644); err != nil {
		t.Fatalf("Failed to write cache: %v", err)
	}

	p := NewPool(cache, srv.URL)
	if err := p.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if hits.Load() != 0 {
		t.Errorf("Cache present, expected no download, got %d", hits.Load())
	}
	if p.Len() != 2 {
		t.Errorf("Expected 2 cached entries, got %d", p.Len())
	}
}

func TestInitEmptyCacheDownloads(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("9.9.9.9:1:x:y\n"))
	}))
	defer srv.Close()

	cache := filepath.Join(t.TempDir(), "proxies.txt")
	os.WriteFile(cache, nil, 0644)

	p := NewPool(cache, srv.URL)
	if err := p.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if p.Len() != 1 {
		t.Errorf("Expected downloaded entry, got %d", p.Len())
	}
}

func TestInitFailsWhenSourceDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewPool(filepath.Join(t.TempDir(), "proxies.txt"), srv.URL)
	if err := p.Init(context.Background()); err == nil {
		t.Error("Expected Init to report the failed download")
	}
}

func TestRunRetriesWhileEmpty(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		w.Write([]byte("1.2.3.4:8080:user:pass\n"))
	}))
	defer srv.Close()

	p := NewPool(filepath.Join(t.TempDir(), "proxies.txt"), srv.URL)
	p.retryEvery = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for p.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	if err := <-done; err != nil {
		t.Errorf("Run returned %v", err)
	}
	if p.Len() != 1 {
		t.Fatalf("Expected Run to recover after a failed refresh, got %d entries", p.Len())
	}
	if hits.Load() < 2 {
		t.Errorf("Expected at least two refresh attempts, got %d", hits.Load())
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	p := NewPool(filepath.Join(t.TempDir(), "proxies.txt"), "http://127.0.0.1:0")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Run(ctx); err != nil {
		t.Errorf("Run returned %v", err)
	}
}
