package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mu1bokjoa/FloodResponseSystem/internal/auth"
	"github.com/mu1bokjoa/FloodResponseSystem/internal/lifecycle"
	"github.com/mu1bokjoa/FloodResponseSystem/internal/service"
	"github.com/mu1bokjoa/FloodResponseSystem/internal/traffic"
	"github.com/mu1bokjoa/FloodResponseSystem/internal/upload"
)

const serviceName = "flood-risk"

// HealthConfig holds lifecycle thresholds and dependency probes for the health handler.
type HealthConfig struct {
	OverloadWindow       time.Duration
	OverloadThresholdPct int
	RateLimitRPS         int
	RateLimitBurst       int // 0 when rate limiter disabled
	DegradedWindow       time.Duration
	DegradedErrorPct     int
	Version              string
	// DatabasePing is called on every /health request.
	DatabasePing func(ctx context.Context) error
	// CachePing, when set, checks a remote cache backend.
	CachePing func(ctx context.Context) error
}

// Deps bundles what the handlers serve.
type Deps struct {
	Risk     *service.RiskService
	Accounts *service.AccountService
	Reports  *service.ReportService
	Sessions *auth.SessionManager
	Media    *upload.Store
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	risk     *service.RiskService
	accounts *service.AccountService
	reports  *service.ReportService
	sessions *auth.SessionManager
	media    *upload.Store

	healthConfig     *HealthConfig
	logger           *zap.Logger
	rateLimiter      *rate.Limiter
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler.
func NewHandler(deps Deps, healthConfig *HealthConfig, logger *zap.Logger, rateLimiter *rate.Limiter) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		risk:         deps.Risk,
		accounts:     deps.Accounts,
		reports:      deps.Reports,
		sessions:     deps.Sessions,
		media:        deps.Media,
		healthConfig: healthConfig,
		logger:       logger,
		rateLimiter:  rateLimiter,
	}
}

const (
	msgMissingRegion   = "지역 정보가 누락되었습니다."
	msgUnmonitoredZone = "모니터링 대상 지역이 아닙니다."
)

// riskInfoResponse is the wire shape of GET /api/risk-info. Every field is a string.
type riskInfoResponse struct {
	Rainfall   string `json:"rainfall"`
	RiverLevel string `json:"river_level"`
	RiskLevel  string `json:"risk_level"`
	AreaName   string `json:"area_name"`
	DataSource string `json:"data_source"`
}

// GetRiskInfo handles GET /api/risk-info?sido=&sigungu=&dong=.
func (h *Handler) GetRiskInfo(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	// Zone names must match exactly; padded values are not normalized.
	sido, sigungu, dong := q.Get("sido"), q.Get("sigungu"), q.Get("dong")

	a, err := h.risk.Assess(r.Context(), sido, sigungu, dong)
	switch {
	case errors.Is(err, service.ErrMissingParameter):
		requestLogger(r, h.logger).Debug("risk-info missing parameter",
			zap.String("sido", sido), zap.String("sigungu", sigungu), zap.String("dong", dong))
		writeError(w, r, http.StatusBadRequest, "MISSING_PARAMETER", msgMissingRegion)
		return
	case errors.Is(err, service.ErrUnmonitoredZone):
		requestLogger(r, h.logger).Debug("risk-info unmonitored zone", zap.Error(err))
		writeError(w, r, http.StatusNotFound, "UNMONITORED_ZONE", msgUnmonitoredZone)
		return
	case err != nil:
		writeInternalError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, riskInfoResponse{
		Rainfall:   fmt.Sprintf("%.1f", a.Rainfall),
		RiverLevel: fmt.Sprintf("%.2f", a.RiverLevel),
		RiskLevel:  a.RiskLevel,
		AreaName:   a.AreaName,
		DataSource: a.DataSource,
	})
}

// GetLocations handles GET /api/locations.
func (h *Handler) GetLocations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.risk.Zones().Tree())
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := map[string]string{"weatherApi": "healthy"}
	if result.status == "degraded" {
		checks["weatherApi"] = "unhealthy"
	}
	version := "dev"
	if h.healthConfig != nil {
		if h.healthConfig.DatabasePing != nil {
			checks["database"] = probe(r.Context(), h.healthConfig.DatabasePing)
		}
		if h.healthConfig.CachePing != nil {
			checks["cache"] = probe(r.Context(), h.healthConfig.CachePing)
		}
		if h.healthConfig.Version != "" {
			version = h.healthConfig.Version
		}
	}
	checks["model"] = "rule_fallback"
	if h.risk != nil && h.risk.HasModel() {
		checks["model"] = "loaded"
	}

	writeJSON(w, result.statusCode, map[string]interface{}{
		"status":    result.status,
		"service":   serviceName,
		"version":   version,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func probe(ctx context.Context, ping func(context.Context) error) string {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if ping(ctx) != nil {
		return "unhealthy"
	}
	return "healthy"
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > overloaded > degraded > healthy.
func (h *Handler) computeHealthStatus() healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if h.healthConfig == nil {
		return healthResult{"healthy", http.StatusOK, ""}
	}
	if h.healthConfig.RateLimitRPS > 0 && h.healthConfig.OverloadWindow > 0 {
		threshold := float64(h.healthConfig.RateLimitRPS) * h.healthConfig.OverloadWindow.Seconds() * float64(h.healthConfig.OverloadThresholdPct) / 100
		if float64(traffic.RequestCount(h.healthConfig.OverloadWindow)) > threshold {
			return healthResult{"overloaded", http.StatusServiceUnavailable, "overload_threshold"}
		}
	}
	if h.healthConfig.DegradedWindow > 0 && h.healthConfig.DegradedErrorPct > 0 {
		errs, total := traffic.ErrorRate(h.healthConfig.DegradedWindow)
		if total > 0 {
			pct := float64(errs) * 100 / float64(total)
			if pct >= float64(h.healthConfig.DegradedErrorPct) {
				return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
			}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// writeJSON writes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes {"error", "code", "requestId"}. requestId is the correlation ID.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"error":     message,
		"code":      code,
		"requestId": correlationID(r),
	})
}

// writeInternalError logs err and writes a 500 without exposing it.
func writeInternalError(w http.ResponseWriter, r *http.Request, fallback *zap.Logger, err error) {
	requestLogger(r, fallback).Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	writeError(w, r, http.StatusInternalServerError, "INTERNAL", "서버 오류가 발생했습니다.")
}

func correlationID(r *http.Request) string {
	if v, ok := r.Context().Value("correlation_id").(string); ok {
		return v
	}
	return ""
}

func requestLogger(r *http.Request, fallback *zap.Logger) *zap.Logger {
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		return logger
	}
	return fallback
}
