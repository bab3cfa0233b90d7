package geo

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// polylineScale is the precision-5 factor used by Google and OSRM.
const polylineScale = 1e5

// ErrMalformedPolyline is returned for truncated or out-of-alphabet input.
var ErrMalformedPolyline = errors.New("malformed polyline")

// EncodePolyline encodes path in the precision-5 encoded polyline format.
func EncodePolyline(path []Coordinate) string {
	var sb strings.Builder
	sb.Grow(len(path) * 8)

	var prevLat, prevLon int64
	for _, c := range path {
		lat := int64(math.Round(c.Lat * polylineScale))
		lon := int64(math.Round(c.Lon * polylineScale))
		writeVarint(&sb, lat-prevLat)
		writeVarint(&sb, lon-prevLon)
		prevLat, prevLon = lat, lon
	}
	return sb.String()
}

// zig-zag the delta, then emit 5-bit groups low first, each offset by 63.
func writeVarint(sb *strings.Builder, delta int64) {
	v := uint64(delta) << 1
	if delta < 0 {
		v = ^v
	}
	for v >= 0x20 {
		sb.WriteByte(byte(0x20|v&0x1f) + 63)
		v >>= 5
	}
	sb.WriteByte(byte(v) + 63)
}

// DecodePolyline is the inverse of EncodePolyline. An empty string decodes
// to an empty path.
func DecodePolyline(encoded string) ([]Coordinate, error) {
	var (
		path     []Coordinate
		lat, lon int64
	)
	for pos := 0; pos < len(encoded); {
		dLat, next, err := readVarint(encoded, pos)
		if err != nil {
			return nil, err
		}
		dLon, next, err := readVarint(encoded, next)
		if err != nil {
			return nil, err
		}
		pos = next

		lat += dLat
		lon += dLon
		path = append(path, Coordinate{Lat: float64(lat) / polylineScale, Lon: float64(lon) / polylineScale})
	}
	return path, nil
}

func readVarint(s string, pos int) (int64, int, error) {
	var v uint64
	for shift := uint(0); ; shift += 5 {
		if pos >= len(s) {
			return 0, pos, fmt.Errorf("%w: truncated at offset %d", ErrMalformedPolyline, pos)
		}
		if shift > 60 {
			return 0, pos, fmt.Errorf("%w: value overflows at offset %d", ErrMalformedPolyline, pos)
		}
		b := s[pos]
		if b < 63 || b > 126 {
			return 0, pos, fmt.Errorf("%w: byte %q at offset %d", ErrMalformedPolyline, b, pos)
		}
		pos++

		chunk := uint64(b - 63)
		v |= (chunk & 0x1f) << shift
		if chunk < 0x20 {
			break
		}
	}

	delta := int64(v >> 1)
	if v&1 != 0 {
		delta = ^delta
	}
	return delta, pos, nil
}
