package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/cuongbtq/review-queue/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder implements queue.Metrics using Prometheus.
// Each Recorder owns its registry so several can coexist in tests.
type Recorder struct {
	registry *prometheus.Registry

	jobsEnqueued  *prometheus.CounterVec
	jobsFinished  *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec
	storeErrors   *prometheus.CounterVec
	pendingJobs   prometheus.Gauge
	cycleDuration prometheus.Histogram

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder. namespace prefixes every metric name.
func New(namespace string) *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		jobsEnqueued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_enqueued_total",
				Help:      "Total number of jobs enqueued",
			},
			[]string{"job_type"},
		),
		jobsFinished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_finished_total",
				Help:      "Total number of jobs that reached a terminal status",
			},
			[]string{"job_type", "status"},
		),
		jobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "job_duration_seconds",
				Help:      "Time from dispatch to terminal status in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"job_type", "status"},
		),
		storeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "job_store_errors_total",
				Help:      "Total number of job store errors seen by the engine",
			},
			[]string{"operation"},
		),
		pendingJobs: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "poll_pending_jobs",
				Help:      "Number of pending jobs found by the last poll cycle",
			},
		),
		cycleDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "poll_cycle_duration_seconds",
				Help:      "Duration of poll cycles in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"route", "method", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"route", "method", "class"},
		),
	}
}

// JobEnqueued records a job enqueue
func (r *Recorder) JobEnqueued(jobType string) {
	r.jobsEnqueued.WithLabelValues(jobType).Inc()
}

// JobFinished records a job reaching a terminal status
func (r *Recorder) JobFinished(jobType string, status domain.JobStatus, duration time.Duration) {
	r.jobsFinished.WithLabelValues(jobType, string(status)).Inc()
	r.jobDuration.WithLabelValues(jobType, string(status)).Observe(duration.Seconds())
}

// StoreError records a failed store operation
func (r *Recorder) StoreError(op string) {
	r.storeErrors.WithLabelValues(op).Inc()
}

// PollCycle records the size and duration of a poll cycle
func (r *Recorder) PollCycle(pending int, duration time.Duration) {
	r.pendingJobs.Set(float64(pending))
	r.cycleDuration.Observe(duration.Seconds())
}

// Handler exposes the recorder's registry in the Prometheus text format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// GinMiddleware records request count and latency per route template
func (r *Recorder) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		r.httpRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(status)).Inc()
		r.httpDuration.WithLabelValues(route, c.Request.Method, statusClass(status)).Observe(time.Since(start).Seconds())
	}
}

func statusClass(code int) string {
	switch {
	case code >= 100 && code < 200:
		return "1xx"
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
