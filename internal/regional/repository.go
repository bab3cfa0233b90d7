// Package regional stores the latest overview reading for each monitored region.
package regional

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/atmosguard/atmosguard/internal/environment"
	"github.com/atmosguard/atmosguard/internal/geo"
)

// Reading is the latest overview reading for a named region.
type Reading struct {
	Region      string
	Coordinate  geo.Coordinate
	Reading     environment.Reading
	RefreshedAt time.Time
}

// Repository persists regional readings. Save replaces any previous reading
// for the same region.
type Repository interface {
	Save(ctx context.Context, r Reading) error
	List(ctx context.Context) ([]Reading, error)
}

// Slug returns a lower-case, hyphen-separated identifier for a region name,
// e.g. "IIT Patna (Bihta)" becomes "iit-patna-bihta".
func Slug(region string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(region) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	return b.String()
}
