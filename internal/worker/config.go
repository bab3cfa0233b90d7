// Package worker refreshes the regional readings board in the background.
package worker

import (
	"sort"
	"time"

	"github.com/atmosguard/atmosguard/internal/geo"
)

// RefreshTarget is a named region whose overview reading is kept fresh.
type RefreshTarget struct {
	Name       string
	Coordinate geo.Coordinate

	// Priority determines refresh order (lower = higher priority).
	Priority int
}

// RefreshConfig holds configuration for the regional refresh job.
type RefreshConfig struct {
	// Targets are the regions to refresh.
	// If empty, uses DefaultRefreshTargets.
	Targets []RefreshTarget

	// Concurrency is the number of regions fetched at once.
	// Default: 3
	Concurrency int

	// Timeout bounds the fetch for a single region.
	// Default: 30 seconds
	Timeout time.Duration
}

// DefaultRefreshConfig returns the default refresh configuration.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Targets:     DefaultRefreshTargets(),
		Concurrency: 3,
		Timeout:     30 * time.Second,
	}
}

// DefaultRefreshTargets returns the regions on the board by default: the
// Patna metropolitan area and the larger towns of south and north Bihar.
func DefaultRefreshTargets() []RefreshTarget {
	return []RefreshTarget{
		{Name: "Patna", Coordinate: geo.Coordinate{Lat: 25.5941, Lon: 85.1376}, Priority: 1},
		{Name: "IIT Patna (Bihta)", Coordinate: geo.Coordinate{Lat: 25.5358, Lon: 84.8512}, Priority: 1},
		{Name: "Gaya", Coordinate: geo.Coordinate{Lat: 24.7914, Lon: 85.0002}, Priority: 2},
		{Name: "Muzaffarpur", Coordinate: geo.Coordinate{Lat: 26.1209, Lon: 85.3647}, Priority: 2},
		{Name: "Bhagalpur", Coordinate: geo.Coordinate{Lat: 25.2425, Lon: 86.9842}, Priority: 3},
	}
}

func (c RefreshConfig) withDefaults() RefreshConfig {
	def := DefaultRefreshConfig()
	if len(c.Targets) == 0 {
		c.Targets = def.Targets
	}
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	return c
}

// Ordered returns the targets sorted by priority, keeping the configured
// order within a priority.
func (c RefreshConfig) Ordered() []RefreshTarget {
	out := make([]RefreshTarget, len(c.Targets))
	copy(out, c.Targets)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}
