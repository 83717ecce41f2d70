// Package location supplies the device position used for geofence context.
package location

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"alertbot/internal/alerts"
)

// ErrDisabled is returned when location access is turned off in config.
var ErrDisabled = errors.New("location disabled")

// Static reports a fixed, configured position.
type Static struct {
	mu      sync.RWMutex
	enabled bool
	pos     alerts.Position
}

var _ alerts.Locator = (*Static)(nil)

func NewStatic(enabled bool, lat, lon float64) *Static {
	s := &Static{}
	s.Set(enabled, lat, lon)
	return s
}

// Set updates the position. Used on config reload.
func (s *Static) Set(enabled bool, lat, lon float64) {
	s.mu.Lock()
	s.enabled = enabled
	s.pos = alerts.Position{Lat: lat, Lon: lon, At: time.Now()}
	s.mu.Unlock()
}

func (s *Static) RequestPermission(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.enabled {
		return fmt.Errorf("%w: %w", alerts.ErrPermissionDenied, ErrDisabled)
	}
	return nil
}

func (s *Static) CurrentPosition(ctx context.Context) (alerts.Position, error) {
	if err := ctx.Err(); err != nil {
		return alerts.Position{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.enabled {
		return alerts.Position{}, ErrDisabled
	}
	return s.pos, nil
}
