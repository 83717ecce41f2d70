package alerts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceKM(t *testing.T) {
	// Delhi to Mumbai is roughly 1150 km.
	d := DistanceKM(28.6139, 77.2090, 19.0760, 72.8777)
	assert.InDelta(t, 1150, d, 20)
	assert.Zero(t, DistanceKM(10, 10, 10, 10))
}

func TestGeofenceLocate(t *testing.T) {
	g := Geofence{Lat: 0, Lon: 0, RadiusKM: 100}
	assert.True(t, g.Locate(Position{Lat: 0.5, Lon: 0}).Inside)
	assert.False(t, g.Locate(Position{Lat: 2, Lon: 0}).Inside)
}

func TestNotificationText(t *testing.T) {
	n := Notification{
		Category:  CategoryFlood,
		Severity:  SeverityHigh,
		Title:     "Flood alerts",
		Body:      "River rising",
		Area:      "East district",
		Proximity: &Proximity{DistanceKM: 3.24, Inside: true},
		Extra:     map[string]string{"level": "205.3m"},
	}
	txt := n.Text()
	assert.True(t, strings.HasPrefix(txt, "🌊 FLOOD · HIGH\n"))
	assert.Contains(t, txt, "Area: East district")
	assert.Contains(t, txt, "3.2 km away, inside the alert zone")
	assert.Contains(t, txt, "level: 205.3m")
}

func TestErrorFormatting(t *testing.T) {
	err := newErr(KindNotFound, "cancel", "n9", nil)
	assert.Equal(t, "alerts: cancel n9: not found", err.Error())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrPlatform)
}
