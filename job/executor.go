package job

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/Atronar/yt-dlp-web-api/failures"
	"github.com/Atronar/yt-dlp-web-api/faults"
	"github.com/Atronar/yt-dlp-web-api/fetcher"
	"github.com/Atronar/yt-dlp-web-api/limits"
	"github.com/Atronar/yt-dlp-web-api/logger"
	"github.com/Atronar/yt-dlp-web-api/metrics"
	"github.com/Atronar/yt-dlp-web-api/models"
	"github.com/Atronar/yt-dlp-web-api/retry"
	"github.com/Atronar/yt-dlp-web-api/success"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// Fetcher resolves URLs to metadata and downloads media.
type Fetcher interface {
	Info(ctx context.Context, url string, opts fetcher.InfoOptions) (*fetcher.MediaInfo, error)
	Download(ctx context.Context, url string, opts fetcher.DownloadOptions) error
}

// DirectFetcher pulls bytes straight from a URL.
type DirectFetcher interface {
	Fetch(ctx context.Context, src, dest, proxy string) error
}

// Transcoder slices media.
type Transcoder interface {
	Clip(ctx context.Context, input, output string, from, to int) error
	Gif(ctx context.Context, input, output string, from, to, maxHeight int) error
}

// Tagger writes audio metadata. Validate rejects unknown tag names
// without touching any file.
type Tagger interface {
	Validate(tags map[string]*string) error
	Apply(path string, tags map[string]*string) error
}

// ProxyPicker hands out one proxy entry per call.
type ProxyPicker interface {
	Pick() (string, error)
}

// Mirror copies a finished artifact elsewhere.
type Mirror interface {
	Copy(ctx context.Context, path string) error
}

type SuccessStore interface {
	Put(success.Record) error
}

type FailureStore interface {
	Put(failures.Record) error
}

// Deps are the collaborators of an Executor. Proxies, Mirror, stores,
// Metrics and Report are optional.
type Deps struct {
	DownloadsDir string
	BaseURL      string
	Limits       *limits.Registry

	Fetcher    Fetcher
	Direct     DirectFetcher
	Transcoder Transcoder
	Tagger     Tagger

	Proxies   ProxyPicker
	Mirror    Mirror
	Successes SuccessStore
	Failures  FailureStore
	Metrics   *metrics.Recorder
	// Report receives failures that are not caller mistakes.
	Report func(error)
}

// Executor runs one handler per operation kind. It is safe for
// concurrent use; all per-job state lives in a run.
type Executor struct {
	Deps
	newToken func() string
}

func NewExecutor(d Deps) *Executor {
	return &Executor{Deps: d, newToken: uuid.NewString}
}

// run is the state of one job invocation.
type run struct {
	*Executor
	id        string
	req       models.Request
	kind      models.Kind
	log       logger.Job
	policy    *retry.Policy
	artifacts []string
}

// Execute processes req to a response. It never returns a Go error and
// never panics: every failure ends up in the response details.
func (e *Executor) Execute(ctx context.Context, req models.Request) models.Response {
	start := time.Now()
	r := &run{
		Executor: e,
		id:       e.newToken(),
		req:      req,
		kind:     models.KindOf(req.Method),
	}
	r.log = logger.ForJob(r.id)
	r.policy = retry.NewPolicy(func(err error) {
		r.log.Warnf("%s step failed transiently, retrying: %v", r.kind, err)
		e.Metrics.Retried(r.kind.String())
	})

	r.log.Infof("Starting %s (method %q) for %s", r.kind, req.Method, req.URL)
	res := models.Init(req.Method, req.SpinnerID)

	payload, err := r.dispatch(ctx)
	switch {
	case err != nil:
		res = res.Fail(faults.Details(err))
		r.recordFailure(err, time.Since(start))
	case payload == nil:
		// Nothing to report; the initialized response goes back unchanged.
		r.log.Infof("%s returned the initial response", r.kind)
		e.Metrics.JobFinished(r.kind.String(), "noop", time.Since(start))
	default:
		res = res.Succeed(payload)
		r.recordSuccess(ctx, res, time.Since(start))
	}
	return res
}

func (r *run) dispatch(ctx context.Context) (p models.Payload, err error) {
	defer func() {
		if v := recover(); v != nil {
			err = errors.Newf("internal error: %v", v)
		}
	}()

	switch r.kind {
	case models.KindToAudio:
		return r.toAudio(ctx)
	case models.KindPlaylist:
		return r.playlist(ctx)
	case models.KindSubtitles:
		return r.subtitles(ctx)
	case models.KindClip:
		return r.clip(ctx)
	case models.KindCombine:
		return r.combine(ctx)
	case models.KindInfo:
		return r.info(ctx)
	case models.KindLimits:
		return r.limits()
	}
	return nil, faults.Validationf("Unknown method %q", r.req.Method)
}

func (r *run) attempts() int {
	if r.policy.Spent() {
		return 2
	}
	return 1
}

func (r *run) recordFailure(err error, elapsed time.Duration) {
	class := faults.Classify(err)
	if class == faults.Validation {
		r.log.Infof("%s rejected: %v", r.kind, err)
	} else {
		r.log.Errorf("%s failed (%s): %v", r.kind, class, err)
		if r.Report != nil {
			r.Report(errors.Wrapf(err, "job %s (%s)", r.id, r.req.Method))
		}
	}
	r.Metrics.JobFinished(r.kind.String(), class.String(), elapsed)

	if r.Failures == nil {
		return
	}
	rec := failures.Record{
		JobID:    r.id,
		Method:   r.req.Method,
		URL:      r.req.URL,
		Class:    class.String(),
		Error:    faults.Details(err),
		Attempts: r.attempts(),
	}
	if err := r.Failures.Put(rec); err != nil {
		r.log.Errorf("Failed to store failure record: %v", err)
	}
}

func (r *run) recordSuccess(ctx context.Context, res models.Response, elapsed time.Duration) {
	r.log.Infof("%s finished in %v", r.kind, elapsed.Round(time.Millisecond))
	r.Metrics.JobFinished(r.kind.String(), "success", elapsed)

	for _, path := range r.artifacts {
		if r.Mirror == nil {
			break
		}
		// Mirror failures never fail the job.
		if err := r.Mirror.Copy(ctx, path); err != nil {
			r.log.Warnf("Mirroring %s failed: %v", filepath.Base(path), err)
		}
	}

	if r.Successes == nil {
		return
	}
	rec := success.Record{
		JobID:    r.id,
		Method:   r.req.Method,
		URL:      r.req.URL,
		Link:     res.Link(),
		Attempts: r.attempts(),
	}
	if t, ok := titleOf(res.Payload); ok {
		rec.Title = t
	}
	if err := r.Successes.Put(rec); err != nil {
		r.log.Errorf("Failed to store success record: %v", err)
	}
}

func titleOf(p models.Payload) (string, bool) {
	switch v := p.(type) {
	case models.AudioResult:
		return v.Title, true
	case models.PlaylistResult:
		return v.Title, true
	case models.SubtitleChoices:
		return v.Title, true
	case models.SubtitleResult:
		return v.Title, true
	case models.ClipResult:
		return v.Title, true
	case models.CombineResult:
		return v.Title, true
	case models.InfoResult:
		return v.Title, true
	}
	return "", false
}

// proxy picks a fresh entry for every outbound call, or "" when proxies
// are disabled.
func (r *run) proxy() (string, error) {
	if r.Proxies == nil {
		return "", nil
	}
	p, err := r.Proxies.Pick()
	if err != nil {
		return "", fmt.Errorf("no proxy available: %w", err)
	}
	return p, nil
}

func (r *run) path(name string) string {
	return filepath.Join(r.DownloadsDir, name)
}
