package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by API and worker flows.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal     *prometheus.CounterVec
	httpRequestDuration   *prometheus.HistogramVec
	batchesSubmittedTotal *prometheus.CounterVec
	batchesCompletedTotal *prometheus.CounterVec
	unitTasksTotal        *prometheus.CounterVec
	taskAttemptsTotal     *prometheus.CounterVec
	taskDuration          *prometheus.HistogramVec
	workerInflight        *prometheus.GaugeVec
	deliveriesTotal       *prometheus.CounterVec
	unitsRepublishedTotal prometheus.Counter
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "docbatch",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "docbatch",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		batchesSubmittedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "docbatch",
				Name:      "batches_submitted_total",
				Help:      "Total number of batches accepted, grouped by intent.",
			},
			[]string{"intent"},
		),
		batchesCompletedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "docbatch",
				Name:      "batches_completed_total",
				Help:      "Total number of batches that reached the completed state, grouped by intent.",
			},
			[]string{"intent"},
		),
		unitTasksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "docbatch",
				Name:      "unit_tasks_total",
				Help:      "Total number of unit task outcomes recorded, grouped by intent and outcome.",
			},
			[]string{"intent", "outcome"},
		),
		taskAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "docbatch",
				Name:      "task_attempts_total",
				Help:      "Total number of unit task attempts, including retries.",
			},
			[]string{"intent"},
		),
		taskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "docbatch",
				Name:      "task_duration_seconds",
				Help:      "Unit task duration in seconds across all attempts, grouped by intent.",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
			},
			[]string{"intent"},
		),
		workerInflight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "docbatch",
				Name:      "worker_inflight",
				Help:      "Current number of in-flight unit tasks grouped by intent.",
			},
			[]string{"intent"},
		),
		deliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "docbatch",
				Name:      "deliveries_total",
				Help:      "Total number of email delivery attempts grouped by status.",
			},
			[]string{"status"},
		),
		unitsRepublishedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "docbatch",
				Name:      "units_republished_total",
				Help:      "Total number of pending unit tasks republished by the reconciler.",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.batchesSubmittedTotal,
		m.batchesCompletedTotal,
		m.unitTasksTotal,
		m.taskAttemptsTotal,
		m.taskDuration,
		m.workerInflight,
		m.deliveriesTotal,
		m.unitsRepublishedTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncBatchSubmitted(intent string) {
	if m == nil {
		return
	}
	m.batchesSubmittedTotal.WithLabelValues(normalizeLabel(intent)).Inc()
}

func (m *Metrics) IncBatchCompleted(intent string) {
	if m == nil {
		return
	}
	m.batchesCompletedTotal.WithLabelValues(normalizeLabel(intent)).Inc()
}

func (m *Metrics) IncUnitTask(intent string, outcome string) {
	if m == nil {
		return
	}
	m.unitTasksTotal.WithLabelValues(normalizeLabel(intent), normalizeLabel(outcome)).Inc()
}

func (m *Metrics) AddTaskAttempts(intent string, attempts int) {
	if m == nil || attempts <= 0 {
		return
	}
	m.taskAttemptsTotal.WithLabelValues(normalizeLabel(intent)).Add(float64(attempts))
}

func (m *Metrics) ObserveTaskDuration(intent string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.taskDuration.WithLabelValues(normalizeLabel(intent)).Observe(seconds)
}

func (m *Metrics) IncWorkerInFlight(intent string) {
	if m == nil {
		return
	}
	m.workerInflight.WithLabelValues(normalizeLabel(intent)).Inc()
}

func (m *Metrics) DecWorkerInFlight(intent string) {
	if m == nil {
		return
	}
	m.workerInflight.WithLabelValues(normalizeLabel(intent)).Dec()
}

func (m *Metrics) IncDelivery(status string) {
	if m == nil {
		return
	}
	m.deliveriesTotal.WithLabelValues(normalizeLabel(status)).Inc()
}

func (m *Metrics) AddUnitsRepublished(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.unitsRepublishedTotal.Add(float64(n))
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeLabel(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
