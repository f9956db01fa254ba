package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	GenerationAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_generation_attempts_total",
			Help: "Provider attempts by provider and outcome",
		}, []string{"provider", "outcome"},
	)
	FallbackImages = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_fallback_images_total",
		Help: "Work items resolved from fallback assets",
	})
	ItemsCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_items_total",
			Help: "Work items by terminal state",
		}, []string{"state"},
	)
	ComplianceScores = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pipeline_compliance_score",
		Help:    "Overall compliance score per scored asset",
		Buckets: prometheus.LinearBuckets(0, 10, 11),
	})
	RunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pipeline_run_duration_seconds",
		Help:    "Campaign run duration seconds",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_http_requests_total",
			Help: "Total HTTP requests",
		}, []string{"code"},
	)
	Latency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pipeline_http_request_duration_seconds",
		Help:    "Request latency seconds",
		Buckets: prometheus.DefBuckets,
	})
	InFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pipeline_http_in_flight",
		Help: "In-flight HTTP requests",
	})
)

func init() {
	prometheus.MustRegister(
		GenerationAttempts, FallbackImages, ItemsCompleted,
		ComplianceScores, RunDuration,
		RequestsTotal, Latency, InFlight,
	)
}

func MetricsHandler() http.Handler { return promhttp.Handler() }

type rec struct {
	http.ResponseWriter
	code int
}

func (r *rec) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func Measure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		InFlight.Inc()
		defer InFlight.Dec()

		rr := &rec{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rr, r)

		Latency.Observe(time.Since(start).Seconds())
		RequestsTotal.WithLabelValues(strconv.Itoa(rr.code)).Inc()
	})
}
