package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/Atronar/yt-dlp-web-api/fetcher"
	"github.com/Atronar/yt-dlp-web-api/logger"
	"github.com/Atronar/yt-dlp-web-api/retry"
	"github.com/Atronar/yt-dlp-web-api/sanitize"

	"github.com/google/uuid"
)

// InfoResponse is the body of GET /yt-dlp?url=.
type InfoResponse struct {
	Error   bool           `json:"error"`
	Details string         `json:"details"`
	Title   string         `json:"title,omitempty"`
	Ext     string         `json:"ext,omitempty"`
	Info    map[string]any `json:"info,omitempty"`
}

type backgroundRequest struct {
	Data struct {
		URL   string `json:"url"`
		Title string `json:"title"`
	} `json:"data"`
}

// YtDlpHandler is the raw extractor endpoint:
//
//	GET  ?url=<u>                      metadata
//	GET  ?download=<u>[&audioonly=1]   file as an attachment
//	POST {"data":{"url":..,"title":..}} download into the downloads directory
func (a *API) YtDlpHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		a.backgroundDownload(w, r)
		return
	}

	q := r.URL.Query()
	switch {
	case q.Get("url") != "":
		writeJSON(w, http.StatusOK, a.infoEvent(r.Context(), q.Get("url")))
	case q.Get("download") != "":
		a.attachment(w, r, q.Get("download"), q.Get("audioonly") == "1")
	default:
		http.NotFound(w, r)
	}
}

func (a *API) infoEvent(ctx context.Context, src string) InfoResponse {
	info, err := retry.Do(ctx, retry.NewPolicy(nil), func(ctx context.Context) (*fetcher.MediaInfo, error) {
		return a.opts.Fetcher.Info(ctx, src, fetcher.InfoOptions{})
	})
	if err != nil {
		logger.Warnf("Info lookup for %s failed: %v", src, err)
		return InfoResponse{Error: true, Details: err.Error()}
	}
	return InfoResponse{
		Title: sanitize.Sanitize(info.Title),
		Ext:   info.Ext,
		Info:  info.Raw,
	}
}

func (a *API) attachment(w http.ResponseWriter, r *http.Request, src string, audioOnly bool) {
	ctx := context.WithoutCancel(r.Context())
	info := a.infoEvent(ctx, src)
	if info.Error {
		http.Error(w, info.Details, http.StatusBadRequest)
		return
	}

	ext := info.Ext
	if ext == "" {
		ext = "mp4"
	}
	base := filepath.Join(a.opts.DownloadsDir, info.Title+"."+uuid.NewString())
	opts := fetcher.DownloadOptions{Output: base + "." + ext}
	if audioOnly {
		ext = "mp3"
		opts = fetcher.DownloadOptions{Output: base, Format: "bestaudio/best", AudioFormat: ext}
	}

	err := retry.Run(ctx, retry.NewPolicy(nil), func(ctx context.Context) error {
		return a.opts.Fetcher.Download(ctx, src, opts)
	})
	if err != nil {
		logger.Errorf("Download of %s failed: %v", src, err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	local := base + "." + ext
	f, err := os.Open(local)
	if err != nil {
		logger.Errorf("Downloaded file %s missing: %v", local, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	defer f.Close()
	stat, err := f.Stat()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	visible := info.Title + "." + ext
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(visible))
	http.ServeContent(w, r, visible, stat.ModTime(), f)
}

func (a *API) backgroundDownload(w http.ResponseWriter, r *http.Request) {
	var body backgroundRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEnvelopeBytes)).Decode(&body); err != nil {
		http.Error(w, "Malformed request", http.StatusBadRequest)
		return
	}
	src := strings.TrimSpace(body.Data.URL)
	if src == "" {
		http.Error(w, "Missing url", http.StatusBadRequest)
		return
	}

	name := sanitize.Sanitize(body.Data.Title) + "." + uuid.NewString()
	opts := fetcher.DownloadOptions{Output: filepath.Join(a.opts.DownloadsDir, name)}
	err := retry.Run(context.WithoutCancel(r.Context()), retry.NewPolicy(nil), func(ctx context.Context) error {
		return a.opts.Fetcher.Download(ctx, src, opts)
	})
	if err != nil {
		logger.Errorf("Background download of %s failed: %v", src, err)
		http.Error(w, "Download failed", http.StatusBadRequest)
		return
	}
	logger.Infof("Background download of %s stored as %s", src, name)
	w.WriteHeader(http.StatusOK)
}
