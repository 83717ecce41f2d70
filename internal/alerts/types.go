package alerts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"alertbot/internal/scheduler"
)

type Category string

const (
	CategoryLocal   Category = "local"
	CategoryWeather Category = "weather"
	CategorySeismic Category = "seismic"
	CategoryFlood   Category = "flood"
	CategoryNDMA    Category = "ndma"
)

// Categories lists every category in display order.
var Categories = []Category{CategoryLocal, CategoryWeather, CategorySeismic, CategoryFlood, CategoryNDMA}

// ParseCategory accepts canonical names and a few aliases.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "local", "generic", "reminder":
		return CategoryLocal, nil
	case "weather":
		return CategoryWeather, nil
	case "seismic", "quake", "earthquake":
		return CategorySeismic, nil
	case "flood":
		return CategoryFlood, nil
	case "ndma", "agency":
		return CategoryNDMA, nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ParseSeverity maps an empty string to moderate.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "moderate", "medium":
		return SeverityModerate, nil
	case "low", "minor":
		return SeverityLow, nil
	case "high", "severe":
		return SeverityHigh, nil
	case "critical", "extreme":
		return SeverityCritical, nil
	}
	return "", fmt.Errorf("unknown severity %q", s)
}

type Sound string

const (
	SoundDefault Sound = "default"
	SoundAlarm   Sound = "alarm"
	SoundSiren   Sound = "siren"
	SoundNone    Sound = "none"
)

type State string

const (
	StateScheduled State = "scheduled"
	StateDelivered State = "delivered"
)

type Geofence struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	RadiusKM float64 `json:"radius_km"`
}

// Proximity is the device position relative to a Geofence at delivery time.
type Proximity struct {
	DistanceKM float64 `json:"distance_km"`
	Inside     bool    `json:"inside"`
}

type Notification struct {
	ID       string            `json:"id"`
	Category Category          `json:"category"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Severity Severity          `json:"severity,omitempty"`
	Area     string            `json:"area,omitempty"`
	Source   string            `json:"source,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
	Geofence *Geofence         `json:"geofence,omitempty"`

	Priority int   `json:"priority"`
	Sound    Sound `json:"sound"`

	State       State      `json:"state"`
	Read        bool       `json:"read"`
	CreatedAt   time.Time  `json:"created_at"`
	FireAt      time.Time  `json:"fire_at"`
	Repeat      string     `json:"repeat,omitempty"`
	DeliveredAt time.Time  `json:"delivered_at,omitzero"`
	ReadAt      time.Time  `json:"read_at,omitzero"`
	Deliveries  int        `json:"deliveries"`
	LastError   string     `json:"last_error,omitempty"`
	Attempts    int        `json:"attempts,omitempty"` // failed posts since the last delivery
	Proximity   *Proximity `json:"proximity,omitempty"`
}

// Trigger says when a notification fires. The zero Trigger fires immediately.
type Trigger struct {
	At     time.Time     `json:"at,omitzero"`
	After  time.Duration `json:"after,omitempty"`
	Repeat string        `json:"repeat,omitempty"`
}

type LocalRequest struct {
	Title   string            `json:"title"`
	Body    string            `json:"body"`
	Trigger Trigger           `json:"trigger"`
	Extra   map[string]string `json:"extra,omitempty"`
}

// AlertRequest is the payload of every hazard category.
type AlertRequest struct {
	Title    string            `json:"title,omitempty"`
	Message  string            `json:"message"`
	Severity string            `json:"severity,omitempty"`
	Area     string            `json:"area,omitempty"`
	Source   string            `json:"source,omitempty"`
	Geofence *Geofence         `json:"geofence,omitempty"`
	Trigger  Trigger           `json:"trigger"`
	Extra    map[string]string `json:"extra,omitempty"`
}

// Channel is the platform-side delivery lane of one category.
type Channel struct {
	Category Category
	Name     string
	Priority int
	Sound    Sound
	ThreadID int
}

type Position struct {
	Lat float64
	Lon float64
	At  time.Time
}

// Platform is the notification facility deliveries go through.
type Platform interface {
	RequestPermission(ctx context.Context) error
	RegisterChannels(ctx context.Context, channels []Channel) error
	Post(ctx context.Context, n Notification) error
	Withdraw(ctx context.Context, id string) error
	// Close releases listeners. A later RequestPermission may reopen it.
	Close() error
}

// Locator supplies the device position for geofencing context.
type Locator interface {
	RequestPermission(ctx context.Context) error
	CurrentPosition(ctx context.Context) (Position, error)
}

// Scheduler arms triggers. *scheduler.Service implements it.
type Scheduler interface {
	AddOnce(name string, at time.Time, timeout time.Duration, job scheduler.Job) error
	AddSchedule(name, schedule string, timeout time.Duration, job scheduler.Job) error
	Remove(name string) bool
	RemovePrefix(prefix string) int
}

// EventData is the Data of alerts.* bus events.
type EventData struct {
	ID       string   `json:"id,omitempty"`
	Category Category `json:"category,omitempty"`
	Severity Severity `json:"severity,omitempty"`
	Count    int      `json:"count,omitempty"`
	Error    string   `json:"error,omitempty"`
}
