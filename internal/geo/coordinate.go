// Package geo holds the coordinate type shared by every fetcher, with
// great-circle distance and the encoded polyline format used for routes.
package geo

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
)

// Coordinate is a WGS84 point in (latitude, longitude) order.
//
// Values are not range-checked: out-of-range coordinates are forwarded to
// upstream services as-is and it is up to them to reject them.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// FromLonLat builds a Coordinate from a GeoJSON-ordered [lon, lat] pair.
// Returns false if the pair does not have at least two elements.
func FromLonLat(pair []float64) (Coordinate, bool) {
	if len(pair) < 2 {
		return Coordinate{}, false
	}
	return Coordinate{Lat: pair[1], Lon: pair[0]}, true
}

// IsFinite reports whether both components are finite numbers.
func (c Coordinate) IsFinite() bool {
	return !math.IsNaN(c.Lat) && !math.IsInf(c.Lat, 0) &&
		!math.IsNaN(c.Lon) && !math.IsInf(c.Lon, 0)
}

// Name returns the display name used for point selections,
// e.g. "Lat: 25.54, Lng: 84.85".
func (c Coordinate) Name() string {
	return fmt.Sprintf("Lat: %s, Lng: %s", fixed2(c.Lat), fixed2(c.Lon))
}

// fixed2 formats x with two decimals. Exact ties round away from zero
// (0.125 -> 0.13); everything else rounds to the nearest hundredth of the
// exact binary value, so 1.005 -> 1.00.
func fixed2(x float64) string {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return strconv.FormatFloat(x, 'f', 2, 64)
	}
	sign := ""
	if x < 0 {
		sign = "-"
	}
	abs := math.Abs(x)

	// abs is a tie exactly when abs*200 is an odd integer.
	doubled := new(big.Float).SetPrec(256).SetFloat64(abs)
	doubled.Mul(doubled, big.NewFloat(200))
	n, acc := doubled.Int(nil)
	if acc != big.Exact || n.Bit(0) == 0 {
		return sign + strconv.FormatFloat(abs, 'f', 2, 64)
	}

	cents := n.Add(n, big.NewInt(1)).Rsh(n, 1)
	whole, frac := new(big.Int).DivMod(cents, big.NewInt(100), new(big.Int))
	return fmt.Sprintf("%s%s.%02d", sign, whole.String(), frac.Int64())
}

// Pair returns the coordinate as a [lat, lon] pair.
func (c Coordinate) Pair() [2]float64 {
	return [2]float64{c.Lat, c.Lon}
}
