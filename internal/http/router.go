package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mu1bokjoa/FloodResponseSystem/internal/observability"
)

// NewRouter mounts every route on h. /api is rate limited and bounded by
// requestTimeout; /health, /metrics and /uploads are not.
func NewRouter(h *Handler, logger *zap.Logger, requestTimeout time.Duration, limiter *rate.Limiter) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)
	router.HandleFunc("/uploads/{filename}", h.ServeUpload).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(RateLimitMiddleware(limiter))
	if requestTimeout > 0 {
		api.Use(TimeoutMiddleware(requestTimeout))
	}
	api.HandleFunc("/risk-info", h.GetRiskInfo).Methods(http.MethodGet)
	api.HandleFunc("/locations", h.GetLocations).Methods(http.MethodGet)

	api.HandleFunc("/check-username", h.CheckUsername).Methods(http.MethodPost)
	api.HandleFunc("/check-email", h.CheckEmail).Methods(http.MethodPost)
	api.HandleFunc("/signup", h.Signup).Methods(http.MethodPost)
	api.HandleFunc("/login", h.Login).Methods(http.MethodPost)
	api.HandleFunc("/logout", h.Logout).Methods(http.MethodGet)
	api.HandleFunc("/check-session", h.CheckSession).Methods(http.MethodGet)

	api.HandleFunc("/reports", h.ListReports).Methods(http.MethodGet)
	api.HandleFunc("/reports", h.CreateReport).Methods(http.MethodPost)
	api.HandleFunc("/reports/{id:[0-9]+}", h.UpdateReport).Methods(http.MethodPut)
	api.HandleFunc("/reports/{id:[0-9]+}", h.DeleteReport).Methods(http.MethodDelete)
	return router
}
