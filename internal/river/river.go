// Package river provides river water levels for a monitored zone.
package river

import (
	"context"

	"github.com/mu1bokjoa/FloodResponseSystem/internal/models"
)

// DefaultLevel is the placeholder river level in meters used until sensor data is wired.
const DefaultLevel = 2.0

// Source returns the current river level in meters for a zone.
type Source interface {
	Level(ctx context.Context, z models.Zone) (float64, error)
}

// Fixed returns the same level for every zone. Zone.RiverSensorID is ignored.
type Fixed struct {
	Meters float64
}

// NewFixed returns a Fixed source; a negative level is replaced by DefaultLevel.
func NewFixed(meters float64) Fixed {
	if meters < 0 {
		meters = DefaultLevel
	}
	return Fixed{Meters: meters}
}

// Level implements Source.
func (f Fixed) Level(ctx context.Context, z models.Zone) (float64, error) {
	return f.Meters, nil
}
