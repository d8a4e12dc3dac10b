package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mu1bokjoa/FloodResponseSystem/internal/traffic"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (rain event traffic).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 close to the weather API timeout.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight.
	HTTPRequestsInFlight prometheus.Gauge

	// KMA observation API call rate by outcome.
	WeatherAPICallsTotal *prometheus.CounterVec

	// KMA API latency. Watch for: p99 near 10s (timeout risk).
	WeatherAPIDuration *prometheus.HistogramVec

	// Weather failures absorbed as rainfall=0.0, by error category.
	ProviderDegradedTotal *prometheus.CounterVec

	// Risk assessments served by label and method (model or rule).
	RiskAssessmentsTotal *prometheus.CounterVec

	// Model-mode predictions that fell back to the rule for a single request.
	ModelFallbackTotal *prometheus.CounterVec

	// Observation cache hits. Misses show up as weatherApiCallsTotal.
	CacheHitsTotal *prometheus.CounterVec

	// Observation cache errors by operation (get, set).
	CacheErrorsTotal *prometheus.CounterVec

	// Concurrent misses for one slot that shared a single upstream call.
	CoalescedRequestsTotal prometheus.Counter

	// Circuit breaker state per component (0=closed, 1=open, 2=half_open).
	CircuitBreakerState *prometheus.GaugeVec

	// Circuit breaker transitions per component.
	CircuitBreakerTransitionsTotal *prometheus.CounterVec

	// Incident reports created, by whether media was attached.
	ReportsCreatedTotal *prometheus.CounterVec

	// Account events (signup, login, login_failed, logout).
	AuthEventsTotal *prometheus.CounterVec

	// Rate limit denials on /api.
	RateLimitDeniedTotal prometheus.Counter

	// In-flight requests still running when shutdown began.
	ShutdownInFlight prometheus.Gauge

	rateLimitGaugesOnce sync.Once
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	WeatherAPICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherApiCallsTotal",
			Help: "Total number of KMA observation API calls",
		},
		[]string{"status"},
	)
	WeatherAPIDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weatherApiDurationSeconds",
			Help:    "KMA observation API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"status"},
	)
	ProviderDegradedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "providerDegradedTotal",
			Help: "Weather fetch failures absorbed as rainfall 0.0",
		},
		[]string{"reason"},
	)
	RiskAssessmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskAssessmentsTotal",
			Help: "Risk assessments served by level and method",
		},
		[]string{"level", "method"},
	)
	ModelFallbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelFallbackTotal",
			Help: "Model predictions replaced by the rule fallback",
		},
		[]string{"reason"},
	)
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheHitsTotal",
			Help: "Total number of observation cache hits",
		},
		[]string{"cacheType"},
	)
	CacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheErrorsTotal",
			Help: "Observation cache errors by operation",
		},
		[]string{"operation"},
	)
	CoalescedRequestsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coalescedRequestsTotal",
			Help: "Observation fetches served by another in-flight call for the same slot",
		},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half_open)",
		},
		[]string{"component"},
	)
	CircuitBreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuitBreakerTransitionsTotal",
			Help: "Circuit breaker state transitions",
		},
		[]string{"component", "from", "to"},
	)
	ReportsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reportsCreatedTotal",
			Help: "Incident reports created",
		},
		[]string{"media"},
	)
	AuthEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authEventsTotal",
			Help: "Account events",
		},
		[]string{"event"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)
	ShutdownInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "shutdownInFlightRequests",
			Help: "In-flight requests when graceful shutdown started",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		WeatherAPICallsTotal, WeatherAPIDuration, ProviderDegradedTotal,
		RiskAssessmentsTotal, ModelFallbackTotal,
		CacheHitsTotal, CacheErrorsTotal, CoalescedRequestsTotal,
		CircuitBreakerState, CircuitBreakerTransitionsTotal,
		ReportsCreatedTotal, AuthEventsTotal,
		RateLimitDeniedTotal, ShutdownInFlight,
	)
}

// RegisterRateLimitGauges registers load and rejects gauges for the rate-limited path.
// Call from main after config load with cfg.OverloadWindow.
func RegisterRateLimitGauges(window time.Duration) {
	rateLimitGaugesOnce.Do(func() {
		registry.MustRegister(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimitRequestsInWindow",
					Help: "Requests hitting rate-limited path in sliding window",
				},
				func() float64 { return float64(traffic.RequestCount(window)) },
			),
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimitRejectsInWindow",
					Help: "429 responses in sliding window",
				},
				func() float64 { return float64(traffic.DenialCount(window)) },
			),
		)
	})
}

// RecordCircuitBreakerTransition counts a state change and updates the state gauge.
func RecordCircuitBreakerTransition(component, from, to string, toValue int) {
	CircuitBreakerTransitionsTotal.WithLabelValues(component, from, to).Inc()
	CircuitBreakerState.WithLabelValues(component).Set(float64(toValue))
}

// RecordShutdownInFlight records how many requests were in flight at shutdown.
func RecordShutdownInFlight(n int64) {
	ShutdownInFlight.Set(float64(n))
}

// RecordAssessment records a served risk assessment.
func RecordAssessment(level, method string) {
	RiskAssessmentsTotal.WithLabelValues(level, method).Inc()
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
