// Package metrics exposes Prometheus collectors for the ingestion pipeline.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	siteRunsTotal        *prometheus.CounterVec
	coursesExtracted     *prometheus.CounterVec
	upsertsTotal         *prometheus.CounterVec
	upsertRetriesTotal   prometheus.Counter
	aiRequestsTotal      *prometheus.CounterVec
	aiRequestDuration    *prometheus.HistogramVec
	govPagesTotal        *prometheus.CounterVec
	siteDurationSeconds  *prometheus.HistogramVec
	lastRunSuccessSecond prometheus.Gauge
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		siteRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_site_runs_total",
				Help: "Site driver invocations, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		coursesExtracted = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_courses_extracted_total",
				Help: "Courses extracted, labeled by site and winning extraction stage.",
			},
			[]string{"site", "stage"},
		)

		upsertsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_upserts_total",
				Help: "Course rows written to the store, labeled by status.",
			},
			[]string{"status"},
		)

		upsertRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ingest_upsert_retries_total",
				Help: "Upsert attempts retried after a storage failure.",
			},
		)

		aiRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_ai_requests_total",
				Help: "AI extraction requests, labeled by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		)

		aiRequestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ingest_ai_request_duration_seconds",
				Help:    "Histogram of AI extraction latencies, labeled by kind.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
			},
			[]string{"kind"},
		)

		govPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_gov_pages_total",
				Help: "Government API pages fetched, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		siteDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ingest_site_duration_seconds",
				Help:    "Wall time spent per site driver invocation.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"site"},
		)

		lastRunSuccessSecond = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "ingest_last_run_completed_timestamp_seconds",
				Help: "Unix time of the last completed ingestion run.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_http_requests_total",
				Help: "Requests served by the metrics and health endpoint, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ingest_http_request_duration_seconds",
				Help:    "Histogram of request latencies on the metrics and health endpoint.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveSiteRun records one site driver invocation.
func ObserveSiteRun(siteURL, outcome string, duration time.Duration) {
	Init()
	site := SanitizeSite(siteURL)
	siteRunsTotal.WithLabelValues(site, outcome).Inc()
	siteDurationSeconds.WithLabelValues(site).Observe(duration.Seconds())
}

// ObserveExtracted counts courses produced by an extraction stage.
func ObserveExtracted(siteURL, stage string, n int) {
	Init()
	if n <= 0 {
		return
	}
	coursesExtracted.WithLabelValues(SanitizeSite(siteURL), stage).Add(float64(n))
}

// ObserveUpsert counts rows written or lost.
func ObserveUpsert(status string, n int) {
	Init()
	if n <= 0 {
		return
	}
	upsertsTotal.WithLabelValues(status).Add(float64(n))
}

// ObserveUpsertRetry counts one retried upsert attempt.
func ObserveUpsertRetry() {
	Init()
	upsertRetriesTotal.Inc()
}

// ObserveAIRequest records an AI extraction call.
func ObserveAIRequest(kind, outcome string, duration time.Duration) {
	Init()
	aiRequestsTotal.WithLabelValues(kind, outcome).Inc()
	aiRequestDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// ObserveHTTPRequest records one served request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveGovPage counts one government API page.
func ObserveGovPage(outcome string) {
	Init()
	govPagesTotal.WithLabelValues(outcome).Inc()
}

// MarkRunCompleted stamps the completion time of a run.
func MarkRunCompleted(t time.Time) {
	Init()
	lastRunSuccessSecond.Set(float64(t.Unix()))
}

// Push sends the default registry to a Prometheus Pushgateway. Batch runs
// finish before a scrape would reach them, so the final state is pushed.
func Push(ctx context.Context, gatewayURL, job string) error {
	if gatewayURL == "" {
		return errors.New("pushgateway url is required")
	}
	Init()
	pusher := push.New(gatewayURL, job).Gatherer(prometheus.DefaultGatherer)
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
