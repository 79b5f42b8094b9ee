// Package metrics provides Prometheus metrics for the bot: dispatched actions,
// executor jobs, history purges, card renders and ops HTTP traffic.
//
// All observation methods are safe to call on a nil *Metrics, which lets
// components run without metrics wired in.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "milordbot"

// Job metric counter indices.
const (
	JobMetricTotal = iota
	JobMetricTotalSuccess
	JobMetricTotalFailed
)

// Metrics holds the bot's Prometheus collectors and their registry.
type Metrics struct {
	reg *prometheus.Registry

	ActionsCounter        *prometheus.CounterVec
	RejectionsCounter     prometheus.Counter
	JobMetricCounters     map[int]prometheus.Counter
	PurgedMessagesCounter prometheus.Counter
	PurgeFailuresCounter  prometheus.Counter
	RenderDuration        prometheus.Histogram

	HTTPRequestsCounter   *prometheus.CounterVec
	HTTPDurationHistogram prometheus.Histogram
}

// NewMetrics creates a Metrics instance backed by its own registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		ActionsCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_dispatched_total",
			Help:      "Actions produced by the command dispatcher, by kind",
		}, []string{"action"}),
		RejectionsCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unauthorized_commands_total",
			Help:      "Commands rejected because the sender is not authorized",
		}),
		JobMetricCounters: getJobMetricCounters(),
		PurgedMessagesCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purged_messages_total",
			Help:      "Messages deleted by history purges",
		}),
		PurgeFailuresCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purge_failures_total",
			Help:      "Messages a history purge failed to delete",
		}),
		RenderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "card_render_duration_seconds",
			Help:      "Time spent rasterizing meme cards",
			Buckets:   []float64{0.1, 0.3, 0.5, 1.0, 3.0, 5.0, 10.0, 30.0},
		}),
		HTTPRequestsCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_responses_total",
			Help:      "Ops HTTP responses, by status code",
		}, []string{"code"}),
		HTTPDurationHistogram: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Ops HTTP request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.3, 0.5, 1.0, 3.0, 10.0},
		}),
	}

	m.reg.MustRegister(
		m.ActionsCounter,
		m.RejectionsCounter,
		m.PurgedMessagesCounter,
		m.PurgeFailuresCounter,
		m.RenderDuration,
		m.HTTPRequestsCounter,
		m.HTTPDurationHistogram,
	)
	for _, c := range m.JobMetricCounters {
		m.reg.MustRegister(c)
	}
	return m
}

func getJobMetricCounters() map[int]prometheus.Counter {
	return map[int]prometheus.Counter{
		JobMetricTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "total_jobs_handled",
			Help:      "Total actions executed",
		}),
		JobMetricTotalSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "total_jobs_successful",
			Help:      "Total actions executed successfully",
		}),
		JobMetricTotalFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "total_jobs_failed",
			Help:      "Total actions that failed against a collaborator",
		}),
	}
}

// Registry exposes the underlying registry, e.g. for custom collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// ObserveAction counts one dispatched action of the given kind.
func (m *Metrics) ObserveAction(kind string) {
	if m == nil {
		return
	}
	m.ActionsCounter.WithLabelValues(kind).Inc()
}

// ObserveRejection counts one unauthorized command.
func (m *Metrics) ObserveRejection() {
	if m == nil {
		return
	}
	m.RejectionsCounter.Inc()
}

// ObserveJob counts one executed action and whether it failed.
func (m *Metrics) ObserveJob(err error) {
	if m == nil {
		return
	}
	m.JobMetricCounters[JobMetricTotal].Inc()
	if err != nil {
		m.JobMetricCounters[JobMetricTotalFailed].Inc()
		return
	}
	m.JobMetricCounters[JobMetricTotalSuccess].Inc()
}

// ObservePurge records the outcome of one history purge.
func (m *Metrics) ObservePurge(deleted, failed int) {
	if m == nil {
		return
	}
	m.PurgedMessagesCounter.Add(float64(deleted))
	m.PurgeFailuresCounter.Add(float64(failed))
}

// ObserveRender records how long a card render took.
func (m *Metrics) ObserveRender(d time.Duration) {
	if m == nil {
		return
	}
	m.RenderDuration.Observe(d.Seconds())
}

// HTTPMiddleware returns a chi-compatible middleware that tracks HTTP metrics
func (m *Metrics) HTTPMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			m.HTTPDurationHistogram.Observe(time.Since(start).Seconds())
			m.HTTPRequestsCounter.WithLabelValues(strconv.Itoa(rw.statusCode)).Inc()
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
