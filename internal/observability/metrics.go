package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the counters and histograms exported by the gateway.
type Metrics struct {
	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	httpRequests      *prometheus.CounterVec
	rateLimitRejects  prometheus.Counter
	panicRecoveries   prometheus.Counter
}

func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recipebox_operations_total",
		Help: "Total recipe store operations by operation and result.",
	}, []string{"operation", "result"})
	operationDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "recipebox_operation_duration_seconds",
		Help:    "Recipe store operation latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recipebox_http_requests_total",
		Help: "Total HTTP requests by method, path and status.",
	}, []string{"method", "path", "status"})
	rateLimitRejects := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recipebox_rate_limit_rejects_total",
		Help: "Total requests rejected by the rate limiter.",
	})
	panicRecoveries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recipebox_panic_recoveries_total",
		Help: "Total panics recovered in HTTP handlers.",
	})

	return &Metrics{
		operations:        register(registerer, operations),
		operationDuration: register(registerer, operationDuration),
		httpRequests:      register(registerer, httpRequests),
		rateLimitRejects:  register(registerer, rateLimitRejects),
		panicRecoveries:   register(registerer, panicRecoveries),
	}
}

// MetricsHandler serves the default registry.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor serves the given gatherer, used when a private registry is in play.
func HandlerFor(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		return MetricsHandler()
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveOperation(operation, result string, elapsed time.Duration) {
	if m == nil || m.operations == nil {
		return
	}
	m.operations.WithLabelValues(operation, result).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (m *Metrics) IncHTTPRequest(method, path, status string) {
	if m == nil || m.httpRequests == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, path, status).Inc()
}

func (m *Metrics) IncRateLimitReject() {
	if m == nil || m.rateLimitRejects == nil {
		return
	}
	m.rateLimitRejects.Inc()
}

func (m *Metrics) IncPanicRecovery() {
	if m == nil || m.panicRecoveries == nil {
		return
	}
	m.panicRecoveries.Inc()
}

func register[C prometheus.Collector](registerer prometheus.Registerer, collector C) C {
	if err := registerer.Register(collector); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return collector
}
