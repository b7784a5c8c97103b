// Package metrics exposes Prometheus instruments for job processing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds the instruments. A nil *Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry
	jobs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	retries  *prometheus.CounterVec
	swept    prometheus.Counter
	proxies  prometheus.Gauge
}

// New registers every instrument on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ytdlp_web_jobs_total",
			Help: "Finished jobs by operation and outcome.",
		}, []string{"kind", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ytdlp_web_job_duration_seconds",
			Help:    "Job wall time by operation.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}, []string{"kind"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ytdlp_web_job_retries_total",
			Help: "Transient failures that triggered the single retry.",
		}, []string{"kind"}),
		swept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ytdlp_web_artifacts_swept_total",
			Help: "Artifacts deleted by the janitor.",
		}),
		proxies: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ytdlp_web_proxies",
			Help: "Proxy entries currently loaded.",
		}),
	}
	r.registry.MustRegister(r.jobs, r.duration, r.retries, r.swept, r.proxies)
	r.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return r
}

// JobFinished records one job outcome ("success", "validation",
// "transient", "unexpected").
func (r *Recorder) JobFinished(kind, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.jobs.WithLabelValues(kind, outcome).Inc()
	r.duration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func (r *Recorder) Retried(kind string) {
	if r == nil {
		return
	}
	r.retries.WithLabelValues(kind).Inc()
}

func (r *Recorder) Swept(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.swept.Add(float64(n))
}

func (r *Recorder) Proxies(n int) {
	if r == nil {
		return
	}
	r.proxies.Set(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
