// Package spot defines the normalized activity spot shared by every feed
// adapter, plus the pure helpers used to derive its display fields: band
// lookup, mode canonicalization, programme inference, Maidenhead conversion
// and great-circle distance.
package spot

import (
	"fmt"
	"strings"
	"time"
)

// Source identifies the feed a spot came from.
type Source string

const (
	SourcePOTA     Source = "POTA"     // Parks on the Air activations
	SourceSOTA     Source = "SOTA"     // Summits on the Air activations
	SourceDXSummit Source = "DXSummit" // DX Summit cluster
	SourceDXHeat   Source = "DXHeat"   // DXHeat cluster
)

var knownSources = []Source{SourcePOTA, SourceSOTA, SourceDXSummit, SourceDXHeat}

// Sources returns every known feed tag in a fixed order.
func Sources() []Source {
	out := make([]Source, len(knownSources))
	copy(out, knownSources)
	return out
}

// Key returns the lowercase identifier used in configuration files.
func (s Source) Key() string {
	return strings.ToLower(string(s))
}

// ParseSource maps a configuration key (case-insensitive) to its Source.
func ParseSource(key string) (Source, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, src := range knownSources {
		if src.Key() == key {
			return src, true
		}
	}
	return "", false
}

// Point is a latitude/longitude pair in degrees.
type Point struct {
	Lat float64 `yaml:"latitude" json:"latitude"`
	Lon float64 `yaml:"longitude" json:"longitude"`
}

// Spot is a normalized activity report. Values are treated as immutable once
// an adapter returns them; derived fields are computed on demand.
type Spot struct {
	Source       Source
	Frequency    float64 // kHz, meaningful only when HasFrequency
	HasFrequency bool    // distinguishes "feed omitted frequency" from a real value
	Mode         string  // canonicalized; empty means unknown
	Activator    string
	Reference    string // park/summit code; empty for cluster spots
	Comment      string
	Time         time.Time // always UTC

	Latitude       float64
	Longitude      float64
	HasCoordinates bool

	// Feed-supplied values. When empty the getters derive them instead.
	LocatorOverride   string
	ProgrammeOverride Programme
}

// Coordinates returns the spot position when known.
func (s Spot) Coordinates() (Point, bool) {
	if !s.HasCoordinates {
		return Point{}, false
	}
	return Point{Lat: s.Latitude, Lon: s.Longitude}, true
}

// Locator returns the feed-supplied locator or derives a 6-character one from
// the coordinates. Empty when neither is available.
func (s Spot) Locator() string {
	if s.LocatorOverride != "" {
		return s.LocatorOverride
	}
	if !s.HasCoordinates {
		return ""
	}
	loc, ok := LocatorFromLatLon(s.Latitude, s.Longitude)
	if !ok {
		return ""
	}
	return loc
}

// Programme returns the feed classification or infers one from the comment.
func (s Spot) Programme() Programme {
	if s.ProgrammeOverride != ProgrammeNone {
		return s.ProgrammeOverride
	}
	return InferProgramme(s.Comment)
}

// Distance returns the great-circle distance in km from home.
func (s Spot) Distance(home Point) (float64, bool) {
	pos, ok := s.Coordinates()
	if !ok {
		return 0, false
	}
	return GreatCircleKm(home, pos), true
}

// String returns a human-readable representation
func (s Spot) String() string {
	freq := "?"
	if s.HasFrequency {
		freq = fmt.Sprintf("%.1f", s.Frequency)
	}
	return fmt.Sprintf("[%s] %s %s on %s kHz (%s) %s - %s",
		s.Time.Format("15:04:05"),
		s.Source,
		s.Activator,
		freq,
		s.Mode,
		s.Reference,
		s.Comment)
}

// WithCoordinates returns a copy of s positioned at lat/lon.
func (s Spot) WithCoordinates(lat, lon float64) Spot {
	s.Latitude = lat
	s.Longitude = lon
	s.HasCoordinates = true
	return s
}
