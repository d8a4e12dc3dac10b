package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// TestMetrics_Usable verifies that all Prometheus metrics can be used without
// panic, ensuring label dimensions match usage across client, http, service, and cache packages.
func TestMetrics_Usable(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "/api/risk-info", "2xx").Inc()
	HTTPRequestDuration.WithLabelValues("GET", "/api/risk-info").Observe(0.01)
	WeatherAPICallsTotal.WithLabelValues("success").Inc()
	WeatherAPICallsTotal.WithLabelValues("error").Inc()
	WeatherAPIDuration.WithLabelValues("success").Observe(0.1)
	ProviderDegradedTotal.WithLabelValues("timeout").Inc()
	ModelFallbackTotal.WithLabelValues("prediction").Inc()
	CacheHitsTotal.WithLabelValues("observation").Inc()
	CacheErrorsTotal.WithLabelValues("get").Inc()
	CoalescedRequestsTotal.Inc()
	ReportsCreatedTotal.WithLabelValues("none").Inc()
	AuthEventsTotal.WithLabelValues("login").Inc()
	RecordAssessment("주의", "rule")
	RecordCircuitBreakerTransition("weather_api", "closed", "open", 1)
	RecordShutdownInFlight(0)
}

// TestMetricsHandler_ServesPrometheusFormat verifies that MetricsHandler serves
// Prometheus text exposition format with correct HTTP status and metric output.
func TestMetricsHandler_ServesPrometheusFormat(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "/health", "2xx").Inc()

	handler := MetricsHandler()
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("MetricsHandler status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "httpRequestsTotal") {
		t.Error("MetricsHandler response should contain metric output")
	}
}
