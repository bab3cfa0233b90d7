// Package dashboard holds the per-user view-model behind the dashboard UI:
// the active tab, the forecast and predictive sliders, auto-play, and the
// last good snapshot for each panel.
package dashboard

import (
	"errors"
	"fmt"
)

// Tab is one of the dashboard's top-level views.
type Tab string

const (
	TabOverview  Tab = "Overview"
	TabAQIMap    Tab = "AQI Map"
	TabHeatMap   Tab = "Heat Map"
	TabAboutUs   Tab = "About Us"
	TabEcoImpact Tab = "Eco Impact"
)

// Tabs lists every tab in navigation order.
var Tabs = []Tab{TabOverview, TabAQIMap, TabHeatMap, TabAboutUs, TabEcoImpact}

// ErrUnknownTab is returned for a tab name that is not in Tabs.
var ErrUnknownTab = errors.New("unknown tab")

// ParseTab returns the Tab named s.
func ParseTab(s string) (Tab, error) {
	for _, t := range Tabs {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTab, s)
}
