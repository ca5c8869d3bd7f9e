// Package metrics exposes Prometheus collectors for the approval engine and its HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the service's Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "multisig",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "multisig",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "multisig",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "path"},
	)

	requestTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "multisig",
			Subsystem: "approvals",
			Name:      "transitions_total",
			Help:      "Approval request status transitions.",
		},
		[]string{"status"},
	)

	signatureSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "multisig",
			Subsystem: "approvals",
			Name:      "signature_submissions_total",
			Help:      "Signature submissions by outcome code.",
		},
		[]string{"result"},
	)

	broadcasts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "multisig",
			Subsystem: "broadcast",
			Name:      "attempts_total",
			Help:      "Transaction broadcast attempts.",
		},
		[]string{"chain", "success"},
	)

	broadcastDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "multisig",
			Subsystem: "broadcast",
			Name:      "duration_seconds",
			Help:      "Duration of broadcaster calls.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"chain"},
	)

	sweepExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "multisig",
			Subsystem: "sweeper",
			Name:      "expired_total",
			Help:      "Pending requests flipped to expired by the sweeper.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		requestTransitions,
		signatureSubmissions,
		broadcasts,
		broadcastDuration,
		sweepExpired,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	})
}

// RecordTransition counts an approval request entering status.
func RecordTransition(status string) {
	requestTransitions.WithLabelValues(status).Inc()
}

// RecordSignature counts a signature submission; result is "accepted" or an error code.
func RecordSignature(result string) {
	signatureSubmissions.WithLabelValues(result).Inc()
}

// RecordBroadcast records a broadcaster call.
func RecordBroadcast(chain string, duration time.Duration, success bool) {
	broadcasts.WithLabelValues(chain, strconv.FormatBool(success)).Inc()
	broadcastDuration.WithLabelValues(chain).Observe(duration.Seconds())
}

// RecordExpired counts requests expired by a sweep.
func RecordExpired(n int) {
	if n > 0 {
		sweepExpired.Add(float64(n))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// canonicalPath collapses IDs so label cardinality stays bounded:
// /v1/approvals/<id>/signatures becomes /v1/approvals/:id/signatures.
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}

	parts := strings.Split(trimmed, "/")
	for i, p := range parts {
		if i >= 2 && looksLikeID(p) {
			parts[i] = ":id"
		}
	}
	return "/" + strings.Join(parts, "/")
}

func looksLikeID(segment string) bool {
	return len(segment) == 36 && strings.Count(segment, "-") == 4
}
