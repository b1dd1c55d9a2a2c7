package feeds

import (
	"context"
	"fmt"
	"strings"

	"spothunter/spot"
)

// DXHeat parses the DXHeat cluster feed, whose timestamp arrives as separate
// dd/mm/yy date and HH:MM time fields.
type DXHeat struct{}

type dxHeatRecord struct {
	Frequency optFloat  `json:"Frequency"`
	DXCall    string    `json:"DXCall"`
	Time      string    `json:"Time"`
	Date      string    `json:"Date"`
	Mode      optString `json:"Mode"`
	Locator   optString `json:"DXLocator"`
	Comment   optString `json:"Comment"`
}

func (DXHeat) Source() spot.Source { return spot.SourceDXHeat }

func (d DXHeat) Parse(_ context.Context, payload []byte) (ParseReport, error) {
	return parseRecords(payload, d.decode)
}

func (DXHeat) decode(raw []byte) (spot.Spot, error) {
	var rec dxHeatRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return spot.Spot{}, err
	}
	if err := requireField("DXCall", rec.DXCall); err != nil {
		return spot.Spot{}, err
	}
	if !rec.Frequency.Valid {
		return spot.Spot{}, fmt.Errorf("missing Frequency")
	}
	if err := positiveFrequency(rec.Frequency); err != nil {
		return spot.Spot{}, err
	}
	ts, err := spot.ParseDateTime(rec.Date, rec.Time)
	if err != nil {
		return spot.Spot{}, err
	}
	s := spot.Spot{
		Source:       spot.SourceDXHeat,
		Frequency:    rec.Frequency.Value,
		HasFrequency: true,
		Mode:         spot.CanonicalMode(string(rec.Mode)),
		Activator:    rec.DXCall,
		Comment:      string(rec.Comment),
		Time:         ts,
	}
	// An unparseable locator leaves the spot without a position rather than
	// rejecting an otherwise valid record.
	if loc := strings.TrimSpace(string(rec.Locator)); loc != "" {
		if lat, lon, ok := spot.LatLonFromLocator(loc); ok {
			s.LocatorOverride = loc
			s = s.WithCoordinates(lat, lon)
		}
	}
	return s, nil
}
