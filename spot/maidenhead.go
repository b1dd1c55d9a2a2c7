package spot

import (
	"math"
	"strings"
)

const (
	fieldLonSize    = 20.0
	fieldLatSize    = 10.0
	squareLonSize   = 2.0
	squareLatSize   = 1.0
	subLonSize      = squareLonSize / 24.0
	subLatSize      = squareLatSize / 24.0
	squareCenterLon = squareLonSize / 2.0
	squareCenterLat = squareLatSize / 2.0
)

// LocatorFromLatLon returns the 6-character Maidenhead locator for a lat/lon
// pair, field and square upper-case and subsquare lower-case (e.g. "JO87kb").
// It returns false when coordinates are out of range or non-finite.
func LocatorFromLatLon(lat, lon float64) (string, bool) {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return "", false
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return "", false
	}
	if lat == 90 {
		lat = 89.999999
	}
	if lon == 180 {
		lon = 179.999999
	}
	adjLon := lon + 180
	adjLat := lat + 90

	fieldLon := int(adjLon / fieldLonSize)
	fieldLat := int(adjLat / fieldLatSize)
	adjLon -= float64(fieldLon) * fieldLonSize
	adjLat -= float64(fieldLat) * fieldLatSize

	squareLon := int(adjLon / squareLonSize)
	squareLat := int(adjLat / squareLatSize)
	adjLon -= float64(squareLon) * squareLonSize
	adjLat -= float64(squareLat) * squareLatSize

	subLon := clampIndex(int(adjLon/subLonSize), 24)
	subLat := clampIndex(int(adjLat/subLatSize), 24)

	return string([]byte{
		byte('A' + clampIndex(fieldLon, 18)),
		byte('A' + clampIndex(fieldLat, 18)),
		byte('0' + clampIndex(squareLon, 10)),
		byte('0' + clampIndex(squareLat, 10)),
		byte('a' + subLon),
		byte('a' + subLat),
	}), true
}

func clampIndex(v, n int) int {
	if v < 0 {
		return 0
	}
	if v >= n {
		return n - 1
	}
	return v
}

// LatLonFromLocator returns the centre of a 4 or 6 character locator.
// Case is ignored; any other length is rejected.
func LatLonFromLocator(locator string) (lat float64, lon float64, ok bool) {
	g := strings.ToUpper(strings.TrimSpace(locator))
	if len(g) != 4 && len(g) != 6 {
		return 0, 0, false
	}
	a, b := g[0], g[1]
	if a < 'A' || a > 'R' || b < 'A' || b > 'R' {
		return 0, 0, false
	}
	d0, d1 := g[2], g[3]
	if d0 < '0' || d0 > '9' || d1 < '0' || d1 > '9' {
		return 0, 0, false
	}
	lon = -180.0 + float64(a-'A')*fieldLonSize + float64(d0-'0')*squareLonSize
	lat = -90.0 + float64(b-'A')*fieldLatSize + float64(d1-'0')*squareLatSize
	if len(g) == 6 {
		s0, s1 := g[4], g[5]
		if s0 < 'A' || s0 > 'X' || s1 < 'A' || s1 > 'X' {
			return 0, 0, false
		}
		lon += float64(s0-'A')*subLonSize + subLonSize/2
		lat += float64(s1-'A')*subLatSize + subLatSize/2
		return lat, lon, true
	}
	return lat + squareCenterLat, lon + squareCenterLon, true
}
