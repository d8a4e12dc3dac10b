package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mu1bokjoa/FloodResponseSystem/internal/auth"
	"github.com/mu1bokjoa/FloodResponseSystem/internal/cache"
	"github.com/mu1bokjoa/FloodResponseSystem/internal/circuitbreaker"
	"github.com/mu1bokjoa/FloodResponseSystem/internal/client"
	"github.com/mu1bokjoa/FloodResponseSystem/internal/config"
	httphandler "github.com/mu1bokjoa/FloodResponseSystem/internal/http"
	"github.com/mu1bokjoa/FloodResponseSystem/internal/lifecycle"
	"github.com/mu1bokjoa/FloodResponseSystem/internal/observability"
	"github.com/mu1bokjoa/FloodResponseSystem/internal/river"
	"github.com/mu1bokjoa/FloodResponseSystem/internal/risk"
	"github.com/mu1bokjoa/FloodResponseSystem/internal/service"
	"github.com/mu1bokjoa/FloodResponseSystem/internal/store"
	"github.com/mu1bokjoa/FloodResponseSystem/internal/upload"
	"github.com/mu1bokjoa/FloodResponseSystem/internal/validation"
	"github.com/mu1bokjoa/FloodResponseSystem/internal/zone"
)

var version = "dev"

const (
	inFlightTimeout       = 10 * time.Second
	inFlightCheckInterval = 100 * time.Millisecond
)

func main() {
	logger, err := observability.NewLogger(os.Getenv("ENV_NAME"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = observability.Flush(logger) }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}
	clock := clockwork.NewRealClock()
	lifecycle.MarkStarted(clock.Now())

	classifier, err := loadClassifier(cfg.ModelPath, logger)
	if err != nil {
		logger.Fatal("model artifact", zap.Error(err), zap.String("path", cfg.ModelPath))
	}

	loc := time.FixedZone("KST", cfg.WeatherUTCOffsetHours*3600)
	aligner := client.NewBaseTimeAligner(clock, loc)

	var clientOpts []client.Option
	if cfg.CircuitBreakerEnabled {
		cb := circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold: cfg.CircuitBreakerFailureThreshold,
			SuccessThreshold: cfg.CircuitBreakerSuccessThreshold,
			Timeout:          cfg.CircuitBreakerTimeout,
			Clock:            clock,
			OnStateChange: func(from, to circuitbreaker.State) {
				observability.RecordCircuitBreakerTransition("weather_api", from.String(), to.String(), int(to))
				logger.Warn("circuit breaker state change", zap.String("from", from.String()), zap.String("to", to.String()))
			},
		})
		clientOpts = append(clientOpts, client.WithCircuitBreaker(cb))
		observability.CircuitBreakerState.WithLabelValues("weather_api").Set(0)
		logger.Info("circuit breaker enabled",
			zap.Int("failure_threshold", cfg.CircuitBreakerFailureThreshold),
			zap.Duration("timeout", cfg.CircuitBreakerTimeout))
	}
	weatherClient, err := client.NewKMAClient(cfg.WeatherAPIKey, cfg.WeatherAPIURL, cfg.WeatherAPITimeout, clock, clientOpts...)
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}

	var (
		obsCache  cache.Cache
		cachePing func(context.Context) error
		closers   []func() error
	)
	switch cfg.CacheBackend {
	case "memcached":
		mc := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		obsCache, cachePing = mc, mc.Ping
		closers = append(closers, mc.Close)
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	case "redis":
		connectCtx, connectCancel := context.WithTimeout(context.Background(), 5*time.Second)
		rc, err := cache.NewRedisCache(connectCtx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		connectCancel()
		if err != nil {
			logger.Fatal("redis cache", zap.Error(err))
		}
		obsCache, cachePing = rc, rc.Ping
		closers = append(closers, rc.Close)
		logger.Info("cache backend: redis", zap.String("addr", cfg.RedisAddr))
	default:
		obsCache = cache.NewInMemoryCache(clock)
		logger.Info("cache backend: in_memory")
	}

	zones := zone.Default()
	riskService := service.NewRiskService(
		zones,
		weatherClient,
		aligner,
		obsCache,
		cfg.CacheTTL,
		river.NewFixed(cfg.RiverDefaultLevel),
		classifier,
		logger,
	)

	if cfg.CacheWarm {
		warmCtx, warmCancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := cache.NewWarmer(riskService, logger).Warm(warmCtx, zones.Zones()); err != nil {
			logger.Warn("cache warming failed", zap.Error(err))
		}
		warmCancel()
	}

	openCtx, openCancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := store.Open(openCtx, cfg.DatabasePath)
	openCancel()
	if err != nil {
		logger.Fatal("database", zap.Error(err), zap.String("path", cfg.DatabasePath))
	}
	closers = append(closers, db.Close)

	media, err := upload.NewStore(cfg.UploadsDir, cfg.UploadsMaxSize)
	if err != nil {
		logger.Fatal("uploads", zap.Error(err))
	}

	secret := cfg.SessionSecret
	if secret == "" {
		secret = randomSecret()
		logger.Warn("SESSION_SECRET not set; generated an ephemeral secret, sessions will not survive restart")
	}
	sessions, err := auth.NewSessionManager(secret, cfg.SessionCookieName, cfg.SessionTTL, cfg.SessionSecure, clock)
	if err != nil {
		logger.Fatal("session manager", zap.Error(err))
	}

	v := validation.New()
	deps := httphandler.Deps{
		Risk:     riskService,
		Accounts: service.NewAccountService(db, v, logger),
		Reports:  service.NewReportService(db, media, v, logger),
		Sessions: sessions,
		Media:    media,
	}

	healthConfig := &httphandler.HealthConfig{
		OverloadWindow:       cfg.OverloadWindow,
		OverloadThresholdPct: cfg.OverloadThresholdPct,
		RateLimitRPS:         cfg.RateLimitRPS,
		RateLimitBurst:       cfg.RateLimitBurst,
		DegradedWindow:       cfg.DegradedWindow,
		DegradedErrorPct:     cfg.DegradedErrorPct,
		Version:              version,
		DatabasePing:         db.Ping,
		CachePing:            cachePing,
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	observability.RegisterRateLimitGauges(cfg.OverloadWindow)

	handler := httphandler.NewHandler(deps, healthConfig, logger, limiter)
	router := httphandler.NewRouter(handler, logger, cfg.RequestTimeout, limiter)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting",
			zap.String("addr", ":"+cfg.ServerPort),
			zap.Bool("model_loaded", classifier.HasModel()),
			zap.Int("zones", len(zones.Zones())))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	observability.RecordShutdownInFlight(inFlight)
	waitCtx, waitCancel := context.WithTimeout(context.Background(), inFlightTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, inFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Error("close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete", zap.Duration("uptime", lifecycle.Uptime(clock.Now())))
}

// loadClassifier returns a model-backed classifier, or rule mode when the
// artifact is absent. A present but unreadable artifact is an error.
func loadClassifier(path string, logger *zap.Logger) (*risk.Classifier, error) {
	forest, err := risk.LoadForest(path)
	switch {
	case errors.Is(err, risk.ErrModelUnavailable):
		logger.Warn("model artifact not found; using rule fallback", zap.String("path", path))
		return risk.NewClassifier(nil), nil
	case err != nil:
		return nil, err
	}
	logger.Info("model loaded", zap.String("path", path), zap.Int("trees", len(forest.Trees)))
	return risk.NewClassifier(forest), nil
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
