package feeds

import (
	"context"
	"fmt"
	"strings"

	"spothunter/spot"
)

// POTA parses the Parks on the Air spot feed.
type POTA struct{}

type potaRecord struct {
	Activator    string    `json:"activator"`
	Frequency    optFloat  `json:"frequency"`
	Mode         string    `json:"mode"`
	Reference    string    `json:"reference"`
	SpotTime     string    `json:"spotTime"`
	Grid6        string    `json:"grid6"`
	Comments     optString `json:"comments"`
	Latitude     optFloat  `json:"latitude"`
	Longitude    optFloat  `json:"longitude"`
	Name         string    `json:"name"`
	LocationDesc string    `json:"locationDesc"`
}

func (POTA) Source() spot.Source { return spot.SourcePOTA }

func (p POTA) Parse(_ context.Context, payload []byte) (ParseReport, error) {
	return parseRecords(payload, p.decode)
}

func (POTA) decode(raw []byte) (spot.Spot, error) {
	var rec potaRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return spot.Spot{}, err
	}
	if err := requireField("activator", rec.Activator); err != nil {
		return spot.Spot{}, err
	}
	if err := positiveFrequency(rec.Frequency); err != nil {
		return spot.Spot{}, err
	}
	ts, err := spot.ParseTimestamp(rec.SpotTime)
	if err != nil {
		return spot.Spot{}, err
	}

	s := spot.Spot{
		Source:            spot.SourcePOTA,
		Mode:              spot.CanonicalMode(rec.Mode),
		Activator:         rec.Activator,
		Reference:         rec.Reference,
		Comment:           string(rec.Comments),
		Time:              ts,
		ProgrammeOverride: spot.ProgrammePOTA,
	}
	grid := strings.TrimSpace(rec.Grid6)
	if len(grid) >= 6 {
		s.LocatorOverride = grid
	}
	if rec.Frequency.Valid {
		s.Frequency = parkFrequencyKHz(rec.Frequency.Value)
		s.HasFrequency = true
	}

	switch {
	case rec.Latitude.Valid && rec.Longitude.Valid:
		s = s.WithCoordinates(rec.Latitude.Value, rec.Longitude.Value)
	case grid != "":
		// A 4-character grid only gives the square centre; the displayed
		// locator is then derived from that point.
		lat, lon, ok := spot.LatLonFromLocator(grid)
		if !ok {
			return spot.Spot{}, fmt.Errorf("invalid grid6 %q", grid)
		}
		s = s.WithCoordinates(lat, lon)
	default:
		return spot.Spot{}, fmt.Errorf("no coordinates or locator")
	}
	return s, nil
}

// parkFrequencyKHz scales MHz to kHz. The park feed has been seen reporting
// either unit; no tracked band is below 1000 kHz or above 1000 MHz, so the
// magnitude tells them apart.
func parkFrequencyKHz(v float64) float64 {
	if v < 1000 {
		return v * 1000
	}
	return v
}
