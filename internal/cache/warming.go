package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mu1bokjoa/FloodResponseSystem/internal/models"
)

// ObservationFetcher is implemented by the service layer. Used by Warmer to
// avoid a circular dependency on the service package.
type ObservationFetcher interface {
	Observe(ctx context.Context, z models.Zone) (models.Observation, error)
}

// Warmer prefetches the current slot for every monitored zone once, so the
// first risk requests after a deploy do not all wait on the provider.
type Warmer struct {
	fetcher ObservationFetcher
	logger  *zap.Logger
}

func NewWarmer(fetcher ObservationFetcher, logger *zap.Logger) *Warmer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Warmer{fetcher: fetcher, logger: logger}
}

// Warm fetches every zone concurrently. Zones sharing a grid cell collapse
// into one upstream call in the fetcher. The returned error joins per-zone failures.
func (w *Warmer) Warm(ctx context.Context, zones []models.Zone) error {
	start := time.Now()
	w.logger.Info("warming observation cache", zap.Int("zones", len(zones)))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, z := range zones {
		wg.Add(1)
		go func(z models.Zone) {
			defer wg.Done()
			if _, err := w.fetcher.Observe(ctx, z); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("warm %s: %w", z.Name, err))
				mu.Unlock()
			}
		}(z)
	}
	wg.Wait()

	w.logger.Info("observation cache warming complete",
		zap.Int("zones", len(zones)),
		zap.Int("errors", len(errs)),
		zap.Duration("duration", time.Since(start)))
	return errors.Join(errs...)
}
