package main

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	versionGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tdformat_build_info",
		Help: "A gauge with version and git commit information",
	}, []string{"version", "git_commit"})

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tdformat",
			Name:      "http_request_duration_seconds",
			Help:      "Histogram of response latency (seconds) for HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route", "method", "code"},
	)

	previewLength = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tdformat",
			Name:      "preview_input_runes",
			Help:      "Histogram of the length of texts submitted for preview.",
			Buckets:   prometheus.ExponentialBuckets(16, 4, 6),
		},
	)

	previewRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tdformat",
			Name:      "preview_rejected_total",
			Help:      "Preview requests refused before rendering, by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(previewLength)
	prometheus.MustRegister(previewRejected)
	prometheus.MustRegister(versionGauge)
}

// HistogramHttpHandler observes latency per mux route. It must wrap the
// ServeMux directly so the matched pattern is visible after the call.
func HistogramHttpHandler(next http.Handler) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		httpRequestDuration.WithLabelValues(routeLabel(r), r.Method, strconv.Itoa(rw.statusCode)).Observe(duration)
	})
}

// routeLabel keeps label cardinality bounded: raw paths are client controlled.
func routeLabel(r *http.Request) string {
	if r.Pattern == "" {
		return "unmatched"
	}
	if _, path, ok := strings.Cut(r.Pattern, " "); ok {
		return path
	}
	return r.Pattern
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.statusCode = code
	rec.ResponseWriter.WriteHeader(code)
}
