// Package publisher fans refreshed regional readings out to MQTT displays.
package publisher

import (
	"context"
	"time"

	"github.com/atmosguard/atmosguard/internal/regional"
)

// Publisher sends a regional reading to subscribers.
type Publisher interface {
	Publish(ctx context.Context, r regional.Reading) error
	Close()
}

// Message is the JSON payload published for a regional reading.
type Message struct {
	Region      string    `json:"region"`
	Slug        string    `json:"slug"`
	Lat         float64   `json:"lat"`
	Lon         float64   `json:"lon"`
	Temperature *int      `json:"temperature_c,omitempty"`
	Humidity    *int      `json:"humidity_pct,omitempty"`
	PM25        *float64  `json:"pm2_5,omitempty"`
	AQI         *int      `json:"aqi,omitempty"`
	Status      string    `json:"status"`
	StatusLabel string    `json:"status_label"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

// NewMessage builds the payload for r.
func NewMessage(r regional.Reading) Message {
	return Message{
		Region:      r.Region,
		Slug:        regional.Slug(r.Region),
		Lat:         r.Coordinate.Lat,
		Lon:         r.Coordinate.Lon,
		Temperature: r.Reading.Temperature,
		Humidity:    r.Reading.Humidity,
		PM25:        r.Reading.PM25,
		AQI:         r.Reading.AQI,
		Status:      string(r.Reading.Status),
		StatusLabel: r.Reading.Status.Label(),
		RefreshedAt: r.RefreshedAt,
	}
}

// NoopPublisher discards every reading. It is used when no broker is configured.
type NoopPublisher struct{}

// Publish does nothing.
func (NoopPublisher) Publish(context.Context, regional.Reading) error { return nil }

// Close does nothing.
func (NoopPublisher) Close() {}
