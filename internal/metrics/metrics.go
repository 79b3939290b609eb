// Package metrics exposes Prometheus instrumentation for the rating pipeline
// and the YouTube client.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/elonfeng/tuberate/pkg/analyzer"
)

const namespace = "tuberate"

// NewRegistry creates a Prometheus registry with Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler returns an http.Handler that serves Prometheus metrics.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Metrics holds every collector the service exports.
type Metrics struct {
	AnalysesTotal    *prometheus.CounterVec
	AnalysisDuration prometheus.Histogram
	Ratings          prometheus.Histogram
	CommentsFetched  prometheus.Counter
	YouTubeRequests  *prometheus.CounterVec
	YouTubeLatency   *prometheus.HistogramVec
}

// New creates and registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AnalysesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Rating runs by outcome.",
		}, []string{"outcome"}),
		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Wall time of one rating run.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		Ratings: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rating",
			Help:      "Distribution of computed ratings.",
			Buckets:   prometheus.LinearBuckets(0.5, 0.5, 10),
		}),
		CommentsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "comments_fetched_total",
			Help:      "Top-level comments scored across all successful runs.",
		}),
		YouTubeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "youtube",
			Name:      "requests_total",
			Help:      "YouTube Data API calls by endpoint and HTTP status (0 = no response).",
		}, []string{"endpoint", "status"}),
		YouTubeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "youtube",
			Name:      "request_duration_seconds",
			Help:      "Latency of YouTube Data API calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}

	reg.MustRegister(
		m.AnalysesTotal,
		m.AnalysisDuration,
		m.Ratings,
		m.CommentsFetched,
		m.YouTubeRequests,
		m.YouTubeLatency,
	)
	return m
}

// ObserveAnalysis implements analyzer.Observer.
func (m *Metrics) ObserveAnalysis(kind analyzer.Kind, elapsed time.Duration, res *analyzer.Result) {
	outcome := string(kind)
	if kind == analyzer.KindNone {
		outcome = "success"
	}
	m.AnalysesTotal.WithLabelValues(outcome).Inc()
	m.AnalysisDuration.Observe(elapsed.Seconds())

	if res != nil {
		m.Ratings.Observe(res.Rating)
		m.CommentsFetched.Add(float64(len(res.Comments)))
	}
}

// ObserveRequest implements youtube.RequestObserver.
func (m *Metrics) ObserveRequest(endpoint string, status int, elapsed time.Duration) {
	m.YouTubeRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	m.YouTubeLatency.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}
