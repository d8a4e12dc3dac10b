package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/mu1bokjoa/FloodResponseSystem/internal/cache"
	"github.com/mu1bokjoa/FloodResponseSystem/internal/client"
	"github.com/mu1bokjoa/FloodResponseSystem/internal/models"
	"github.com/mu1bokjoa/FloodResponseSystem/internal/observability"
	"github.com/mu1bokjoa/FloodResponseSystem/internal/river"
	"github.com/mu1bokjoa/FloodResponseSystem/internal/risk"
	"github.com/mu1bokjoa/FloodResponseSystem/internal/traffic"
	"github.com/mu1bokjoa/FloodResponseSystem/internal/zone"
)

var (
	ErrMissingParameter = errors.New("missing parameter")
	ErrUnmonitoredZone  = errors.New("unmonitored zone")
)

// DataSourceLive labels assessments built from the live provider path.
const DataSourceLive = "실시간"

// RiskService turns (region, subregion, locality) into a risk assessment.
// Provider and model failures never surface to the caller; they degrade to
// rainfall 0.0 and rule mode respectively.
type RiskService struct {
	zones      *zone.Registry
	weather    client.WeatherClient
	aligner    *client.BaseTimeAligner
	cache      cache.Cache
	ttl        time.Duration
	river      river.Source
	classifier *risk.Classifier
	logger     *zap.Logger
	group      singleflight.Group
}

// NewRiskService wires the risk pipeline. obsCache may be nil to disable caching.
func NewRiskService(
	zones *zone.Registry,
	weather client.WeatherClient,
	aligner *client.BaseTimeAligner,
	obsCache cache.Cache,
	ttl time.Duration,
	riverSource river.Source,
	classifier *risk.Classifier,
	logger *zap.Logger,
) *RiskService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if riverSource == nil {
		riverSource = river.NewFixed(river.DefaultLevel)
	}
	if classifier == nil {
		classifier = risk.NewClassifier(nil)
	}
	return &RiskService{
		zones:      zones,
		weather:    weather,
		aligner:    aligner,
		cache:      obsCache,
		ttl:        ttl,
		river:      riverSource,
		classifier: classifier,
		logger:     logger,
	}
}

// Assess runs the risk pipeline for one monitored zone.
func (s *RiskService) Assess(ctx context.Context, region, subregion, locality string) (models.RiskAssessment, error) {
	if region == "" || subregion == "" || locality == "" {
		return models.RiskAssessment{}, ErrMissingParameter
	}
	z, ok := s.zones.Lookup(region, subregion, locality)
	if !ok {
		return models.RiskAssessment{}, fmt.Errorf("%w: %s %s %s", ErrUnmonitoredZone, region, subregion, locality)
	}
	logger := loggerFromContext(ctx, s.logger)

	assessment := models.RiskAssessment{
		AreaName:   fmt.Sprintf("%s (%s %s %s)", z.Name, region, subregion, locality),
		DataSource: DataSourceLive,
	}

	obs, err := s.Observe(ctx, z)
	if err != nil {
		category := string(client.CategorizeError(err))
		observability.ProviderDegradedTotal.WithLabelValues(category).Inc()
		logger.Warn("weather unavailable, using rainfall 0.0",
			zap.String("zone", z.Name),
			zap.String("reason", category),
			zap.Error(err))
		assessment.Degraded = true
	} else {
		assessment.Rainfall = obs.Rainfall
	}

	level, err := s.river.Level(ctx, z)
	if err != nil {
		logger.Warn("river level unavailable, using default",
			zap.String("zone", z.Name),
			zap.Float64("default_level", river.DefaultLevel),
			zap.Error(err))
		level = river.DefaultLevel
	}
	assessment.RiverLevel = level

	result := s.classifier.Classify(assessment.Rainfall, assessment.RiverLevel)
	if result.Err != nil {
		reason := "prediction"
		if errors.Is(result.Err, risk.ErrUnknownOrdinal) {
			reason = "unknown_ordinal"
		}
		observability.ModelFallbackTotal.WithLabelValues(reason).Inc()
		logger.Warn("model prediction failed, using rule fallback",
			zap.String("zone", z.Name),
			zap.String("reason", reason),
			zap.Error(result.Err))
	}
	assessment.RiskLevel = result.Level.String()
	assessment.Method = string(result.Method)

	observability.RecordAssessment(assessment.RiskLevel, assessment.Method)
	logger.Debug("risk assessed",
		zap.String("zone", z.Name),
		zap.Float64("rainfall", assessment.Rainfall),
		zap.Float64("river_level", assessment.RiverLevel),
		zap.String("risk_level", assessment.RiskLevel),
		zap.String("method", assessment.Method),
		zap.Bool("degraded", assessment.Degraded))
	return assessment, nil
}

// Observe returns the current observation for the zone's grid cell using
// cache-aside. The base slot is aligned once, so the fetched observation is
// stored under the key it was looked up by. Concurrent misses for the same slot share one upstream call,
// bounded by the client timeout; each caller stops waiting at its own deadline.
// Only successful fetches are cached.
func (s *RiskService) Observe(ctx context.Context, z models.Zone) (models.Observation, error) {
	logger := loggerFromContext(ctx, s.logger)
	baseDate, baseTime := s.aligner.Align()
	key := cache.ObservationKey(z.NX, z.NY, baseDate, baseTime)

	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			observability.CacheErrorsTotal.WithLabelValues("get").Inc()
			logger.Warn("cache get failed, treating as miss", zap.String("key", key), zap.Error(err))
		case ok:
			observability.CacheHitsTotal.WithLabelValues("observation").Inc()
			traffic.RecordSuccess()
			return cached, nil
		}
	}

	ch := s.group.DoChan(key, func() (interface{}, error) {
		// Other callers may be waiting on this fetch; one caller's cancellation must not fail theirs.
		fetchCtx := context.WithoutCancel(ctx)
		obs, err := s.weather.GetObservation(fetchCtx, z.NX, z.NY, baseDate, baseTime)
		if err != nil {
			return models.Observation{}, err
		}
		if s.cache != nil {
			if setErr := s.cache.Set(fetchCtx, key, obs, s.ttl); setErr != nil {
				observability.CacheErrorsTotal.WithLabelValues("set").Inc()
				logger.Warn("cache set failed", zap.String("key", key), zap.Error(setErr))
			}
		}
		return obs, nil
	})

	var (
		v   interface{}
		err error
	)
	select {
	case res := <-ch:
		v, err = res.Val, res.Err
		if res.Shared {
			observability.CoalescedRequestsTotal.Inc()
		}
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		traffic.RecordError()
		return models.Observation{}, fmt.Errorf("observe %d,%d: %w", z.NX, z.NY, err)
	}
	traffic.RecordSuccess()
	return v.(models.Observation), nil
}

// HasModel reports whether assessments use the loaded model.
func (s *RiskService) HasModel() bool {
	return s.classifier.HasModel()
}

// Zones exposes the registry for /api/locations and cache warming.
func (s *RiskService) Zones() *zone.Registry {
	return s.zones
}
