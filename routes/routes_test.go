package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Atronar/yt-dlp-web-api/auth"
	"github.com/Atronar/yt-dlp-web-api/failures"
	"github.com/Atronar/yt-dlp-web-api/fetcher"
	"github.com/Atronar/yt-dlp-web-api/metrics"
	"github.com/Atronar/yt-dlp-web-api/models"
	"github.com/Atronar/yt-dlp-web-api/success"
)

type fakeRunner struct {
	req models.Request
	ctx context.Context
}

func (f *fakeRunner) Execute(ctx context.Context, req models.Request) models.Response {
	f.req, f.ctx = req, ctx
	if req.Method == models.MethodLimits {
		return models.Init(req.Method, req.SpinnerID).Succeed(models.LimitsResult{})
	}
	return models.Init(req.Method, req.SpinnerID).Fail("Method is for singular videos")
}

type fakeFetcher struct {
	downloads []fetcher.DownloadOptions
}

func (f *fakeFetcher) Info(ctx context.Context, url string, opts fetcher.InfoOptions) (*fetcher.MediaInfo, error) {
	if strings.Contains(url, "broken") {
		return nil, errors.New("unsupported url")
	}
	return &fetcher.MediaInfo{Title: "Clip: One", Ext: "webm", Raw: map[string]any{"id": "one"}}, nil
}

func (f *fakeFetcher) Download(ctx context.Context, url string, opts fetcher.DownloadOptions) error {
	f.downloads = append(f.downloads, opts)
	out := opts.Output
	if opts.AudioFormat != "" {
		out += "." + opts.AudioFormat
	}
	return os.WriteFile(out, []byte("payload"), 0644)
}

type testServer struct {
	handler   http.Handler
	dir       string
	runner    *fakeRunner
	fetcher   *fakeFetcher
	successes *success.Store
	failures  *failures.Store
}

func newTestServer(t *testing.T, mutate func(*Options)) *testServer {
	t.Helper()
	s := &testServer{dir: t.TempDir(), runner: &fakeRunner{}, fetcher: &fakeFetcher{}}

	var err error
	s.successes, err = success.Open(filepath.Join(t.TempDir(), "success.db"))
	if err != nil {
		t.Fatalf("Failed to open success store: %v", err)
	}
	t.Cleanup(func() { s.successes.Close() })
	s.failures, err = failures.Open(filepath.Join(t.TempDir(), "failures.db"))
	if err != nil {
		t.Fatalf("Failed to open failures store: %v", err)
	}
	t.Cleanup(func() { s.failures.Close() })

	o := Options{
		DownloadsDir: s.dir,
		Jobs:         s.runner,
		Fetcher:      s.fetcher,
		Successes:    s.successes,
		Failures:     s.failures,
		Metrics:      metrics.New(),
	}
	if mutate != nil {
		mutate(&o)
	}
	s.handler = NewRouter(o)
	return s
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func postJob(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return out
}

func TestJobEnvelopeRoundTrip(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(postJob(`{"method":"toMP3","spinnerid":"s-1","url":"https://youtube.com/playlist?list=1"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	body := decode(t, rec)
	if body["method"] != "toMP3" || body["spinnerid"] != "s-1" || body["error"] != true {
		t.Errorf("Unexpected envelope %v", body)
	}
	if _, ok := body["link"]; ok {
		t.Error("Failure envelope must not carry a link")
	}
	if s.runner.req.URL != "https://youtube.com/playlist?list=1" {
		t.Errorf("Runner got %+v", s.runner.req)
	}
}

func TestJobSurvivesClientDisconnect(t *testing.T) {
	s := newTestServer(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.do(postJob(`{"method":"limits"}`).WithContext(ctx))

	if s.runner.ctx == nil || s.runner.ctx.Err() != nil {
		t.Error("Job context must not inherit client cancellation")
	}
}

func TestMalformedEnvelope(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(postJob(`{"method":`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
	if body := decode(t, rec); body["error"] != true || body["details"] == "" {
		t.Errorf("Expected error envelope, got %v", body)
	}
}

func TestJobMethodNotAllowed(t *testing.T) {
	s := newTestServer(t, nil)
	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/jobs", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", rec.Code)
	}
}

func TestJobAuth(t *testing.T) {
	secret := []byte("test-secret")
	s := newTestServer(t, func(o *Options) {
		o.Auth = &auth.VerifyConfig{SecretKey: secret, ExpectedIssuer: "frontend"}
	})

	if rec := s.do(postJob(`{"method":"limits"}`)); rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", rec.Code)
	}

	token, err := auth.Sign(&models.APIClaims{
		Issuer:    "frontend",
		IssuedAt:  time.Now().Unix(),
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	}, secret)
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	req := postJob(`{"method":"limits"}`)
	req.Header.Set("Authorization", "Bearer "+token)
	if rec := s.do(req); rec.Code != http.StatusOK {
		t.Errorf("Expected 200 with token, got %d", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, func(o *Options) {
		o.RequestsPerSecond = 0.001
		o.RequestBurst = 1
	})

	if rec := s.do(postJob(`{"method":"limits"}`)); rec.Code != http.StatusOK {
		t.Fatalf("First request should pass, got %d", rec.Code)
	}
	if rec := s.do(postJob(`{"method":"limits"}`)); rec.Code != http.StatusTooManyRequests {
		t.Errorf("Expected 429, got %d", rec.Code)
	}
	// Operational endpoints are not limited.
	if rec := s.do(httptest.NewRequest(http.MethodGet, "/version", nil)); rec.Code != http.StatusOK {
		t.Errorf("Expected version to bypass the limiter, got %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, func(o *Options) {
		o.AllowedOrigins = []string{"https://app.example.com"}
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/jobs", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := s.do(req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Expected allowed origin header, got %q", got)
	}
}

func TestDownloadsServed(t *testing.T) {
	s := newTestServer(t, nil)
	if err := os.WriteFile(filepath.Join(s.dir, "My Song.abc.mp3"), []byte("audio"), 0644); err != nil {
		t.Fatalf("Failed to write artifact: %v", err)
	}

	rec := s.do(httptest.NewRequest(http.MethodGet, "/downloads/My%20Song.abc.mp3", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "audio" {
		t.Errorf("Expected artifact body, got %d %q", rec.Code, rec.Body.String())
	}

	if rec := s.do(httptest.NewRequest(http.MethodGet, "/downloads/", nil)); rec.Code != http.StatusNotFound {
		t.Errorf("Directory listing should be hidden, got %d", rec.Code)
	}
	if rec := s.do(httptest.NewRequest(http.MethodGet, "/downloads/missing.mp3", nil)); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for missing artifact, got %d", rec.Code)
	}
}

func TestYtDlpInfo(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/yt-dlp?url=https://example.com/v", nil))
	body := decode(t, rec)
	if body["error"] != false || body["title"] != "Clip： One" || body["ext"] != "webm" {
		t.Errorf("Unexpected info body %v", body)
	}

	rec = s.do(httptest.NewRequest(http.MethodGet, "/yt-dlp?url=https://example.com/broken", nil))
	body = decode(t, rec)
	if body["error"] != true || !strings.Contains(body["details"].(string), "unsupported") {
		t.Errorf("Expected error body, got %v", body)
	}

	if rec := s.do(httptest.NewRequest(http.MethodGet, "/yt-dlp", nil)); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 without parameters, got %d", rec.Code)
	}
}

func TestYtDlpAttachment(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/yt-dlp?download=https://example.com/v&audioonly=1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	want := "attachment; filename*=UTF-8''Clip%EF%BC%9A%20One.mp3"
	if got := rec.Header().Get("Content-Disposition"); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
	if rec.Body.String() != "payload" {
		t.Errorf("Unexpected body %q", rec.Body.String())
	}
	if s.fetcher.downloads[0].AudioFormat != "mp3" {
		t.Errorf("Expected audio download, got %+v", s.fetcher.downloads[0])
	}
}

func TestYtDlpBackgroundDownload(t *testing.T) {
	s := newTestServer(t, nil)

	body := `{"data":{"url":"https://example.com/v","title":"../escape"}}`
	rec := s.do(httptest.NewRequest(http.MethodPost, "/yt-dlp", bytes.NewBufferString(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	out := s.fetcher.downloads[0].Output
	if filepath.Dir(out) != s.dir {
		t.Errorf("Download escaped the downloads directory: %s", out)
	}

	rec = s.do(httptest.NewRequest(http.MethodPost, "/yt-dlp", strings.NewReader(`{"data":{}}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without url, got %d", rec.Code)
	}
}

func TestHistoryQueries(t *testing.T) {
	s := newTestServer(t, nil)
	if err := s.successes.Put(success.Record{JobID: "job-1", Method: "toMP3", Link: "https://dl/x.mp3", Attempts: 1}); err != nil {
		t.Fatalf("Failed to store record: %v", err)
	}
	if err := s.failures.Put(failures.Record{JobID: "job-2", Method: "clip", Class: "validation", Error: "Range is too large for gif"}); err != nil {
		t.Fatalf("Failed to store record: %v", err)
	}

	rec := s.do(httptest.NewRequest(http.MethodGet, "/success?id=job-1", nil))
	if body := decode(t, rec); rec.Code != http.StatusOK || body["link"] != "https://dl/x.mp3" {
		t.Errorf("Unexpected success lookup %d %v", rec.Code, body)
	}
	if rec := s.do(httptest.NewRequest(http.MethodGet, "/success?id=nope", nil)); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown job, got %d", rec.Code)
	}
	if rec := s.do(httptest.NewRequest(http.MethodGet, "/success", nil)); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without id, got %d", rec.Code)
	}

	rec = s.do(httptest.NewRequest(http.MethodGet, "/failures?id=job-2", nil))
	if body := decode(t, rec); body["class"] != "validation" {
		t.Errorf("Unexpected failure lookup %v", body)
	}

	rec = s.do(httptest.NewRequest(http.MethodGet, "/failures/list", nil))
	if body := decode(t, rec); body["count"] != float64(1) {
		t.Errorf("Expected 1 failure, got %v", body["count"])
	}
}

func TestOperationalEndpoints(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	if body := decode(t, rec); rec.Code != http.StatusOK || body["status"] != "healthy" {
		t.Errorf("Unexpected health %d %v", rec.Code, body)
	}

	rec = s.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	raw, _ := io.ReadAll(rec.Body)
	if rec.Code != http.StatusOK || !strings.Contains(string(raw), "go_goroutines") {
		t.Errorf("Expected prometheus output, got %d", rec.Code)
	}
}

type brokenFailures struct{}

func (brokenFailures) Get(string) (*failures.Record, error) { return nil, errors.New("disk gone") }
func (brokenFailures) List() ([]failures.Record, error)     { return nil, errors.New("disk gone") }
func (brokenFailures) CheckHealth() error                   { return errors.New("disk gone") }

func TestHealthReportsBrokenStore(t *testing.T) {
	s := newTestServer(t, func(o *Options) { o.Failures = brokenFailures{} })

	rec := s.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 with a broken store, got %d", rec.Code)
	}
	if rec := s.do(httptest.NewRequest(http.MethodGet, "/failures/list", nil)); rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500 from a broken store, got %d", rec.Code)
	}
}
