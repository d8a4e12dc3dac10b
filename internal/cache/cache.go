package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mu1bokjoa/FloodResponseSystem/internal/models"
)

// Cache stores successful weather observations keyed by grid cell and slot.
// Get returns (zero, false, nil) on a miss; an error means the backend failed
// and callers should treat it as a miss.
type Cache interface {
	Get(ctx context.Context, key string) (models.Observation, bool, error)
	Set(ctx context.Context, key string, value models.Observation, ttl time.Duration) error
}

// ObservationKey identifies one provider slot for one grid cell.
func ObservationKey(nx, ny int, baseDate, baseTime string) string {
	return fmt.Sprintf("%d:%d:%s%s", nx, ny, baseDate, baseTime)
}

// InMemoryCache implements Cache using a mutex-guarded map with TTL-based expiration.
// Expired entries are removed on access.
type InMemoryCache struct {
	clock clockwork.Clock

	mu   sync.Mutex
	data map[string]cacheEntry
}

type cacheEntry struct {
	value     models.Observation
	expiresAt time.Time
}

// NewInMemoryCache creates a new in-memory cache. A nil clock means the real clock.
func NewInMemoryCache(clock clockwork.Clock) *InMemoryCache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &InMemoryCache{
		clock: clock,
		data:  make(map[string]cacheEntry),
	}
}

// Get returns (data, true, nil) on hit, (zero, false, nil) on miss or expiration.
func (c *InMemoryCache) Get(ctx context.Context, key string) (models.Observation, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.data[key]
	if !ok {
		return models.Observation{}, false, nil
	}
	if !c.clock.Now().Before(entry.expiresAt) {
		delete(c.data, key)
		return models.Observation{}, false, nil
	}
	return entry.value, true, nil
}

func (c *InMemoryCache) Set(ctx context.Context, key string, value models.Observation, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = cacheEntry{
		value:     value,
		expiresAt: c.clock.Now().Add(ttl),
	}
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (c *InMemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}
