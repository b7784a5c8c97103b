// Package routes exposes the job executor and the artifact directory over HTTP.
package routes

import (
	"context"
	"net/http"

	"github.com/Atronar/yt-dlp-web-api/auth"
	"github.com/Atronar/yt-dlp-web-api/failures"
	"github.com/Atronar/yt-dlp-web-api/job"
	"github.com/Atronar/yt-dlp-web-api/logger"
	"github.com/Atronar/yt-dlp-web-api/metrics"
	"github.com/Atronar/yt-dlp-web-api/models"
	"github.com/Atronar/yt-dlp-web-api/success"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

// JobRunner processes one job envelope to a response.
type JobRunner interface {
	Execute(ctx context.Context, req models.Request) models.Response
}

type SuccessHistory interface {
	Get(jobID string) (*success.Record, error)
	List() ([]success.Record, error)
	CheckHealth() error
}

type FailureHistory interface {
	Get(jobID string) (*failures.Record, error)
	List() ([]failures.Record, error)
	CheckHealth() error
}

// Options wires the HTTP surface. Auth, Metrics and the histories are
// optional; a nil Auth leaves the job endpoint open.
type Options struct {
	DownloadsDir   string
	AllowedOrigins []string

	Jobs    JobRunner
	Fetcher job.Fetcher

	Successes SuccessHistory
	Failures  FailureHistory
	Metrics   *metrics.Recorder

	Auth *auth.VerifyConfig

	RequestsPerSecond float64
	RequestBurst      int
}

// API holds the handler dependencies.
type API struct {
	opts Options
}

// NewRouter builds the full handler tree.
func NewRouter(o Options) http.Handler {
	a := &API{opts: o}
	limit := rateLimit(o.RequestsPerSecond, o.RequestBurst)

	r := mux.NewRouter()
	r.Use(logRequests)

	r.Handle("/api/jobs", limit(http.HandlerFunc(a.JobsHandler))).Methods(http.MethodPost)
	r.Handle("/yt-dlp", limit(http.HandlerFunc(a.YtDlpHandler))).Methods(http.MethodGet, http.MethodPost)

	r.HandleFunc("/health", a.HealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/version", VersionHandler).Methods(http.MethodGet)
	r.HandleFunc("/success", a.SuccessQueryHandler).Methods(http.MethodGet)
	r.HandleFunc("/success/list", a.SuccessListHandler).Methods(http.MethodGet)
	r.HandleFunc("/failures", a.FailureQueryHandler).Methods(http.MethodGet)
	r.HandleFunc("/failures/list", a.FailureListHandler).Methods(http.MethodGet)
	if o.Metrics != nil {
		r.Handle("/metrics", o.Metrics.Handler()).Methods(http.MethodGet)
	}

	files := http.StripPrefix("/downloads/", http.FileServer(http.Dir(o.DownloadsDir)))
	r.PathPrefix("/downloads/").Handler(noListing(files)).Methods(http.MethodGet, http.MethodHead)

	var h http.Handler = r
	if len(o.AllowedOrigins) > 0 {
		h = handlers.CORS(
			handlers.AllowedOrigins(o.AllowedOrigins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodOptions}),
			handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		)(h)
	}
	return handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLog{}))(h)
}

type recoveryLog struct{}

func (recoveryLog) Println(v ...interface{}) {
	logger.Error(v...)
}
