package feeds

import (
	"context"
	"fmt"

	"spothunter/spot"
)

// DXSummit parses the DX Summit cluster feed. It has no mode field.
type DXSummit struct{}

type dxSummitRecord struct {
	Frequency optFloat  `json:"frequency"`
	DXCall    string    `json:"dx_call"`
	Time      string    `json:"time"`
	Info      optString `json:"info"`
	Latitude  optFloat  `json:"dx_latitude"`
	Longitude optFloat  `json:"dx_longitude"`
}

func (DXSummit) Source() spot.Source { return spot.SourceDXSummit }

func (d DXSummit) Parse(_ context.Context, payload []byte) (ParseReport, error) {
	return parseRecords(payload, d.decode)
}

func (DXSummit) decode(raw []byte) (spot.Spot, error) {
	var rec dxSummitRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return spot.Spot{}, err
	}
	if err := requireField("dx_call", rec.DXCall); err != nil {
		return spot.Spot{}, err
	}
	if !rec.Frequency.Valid {
		return spot.Spot{}, fmt.Errorf("missing frequency")
	}
	if err := positiveFrequency(rec.Frequency); err != nil {
		return spot.Spot{}, err
	}
	ts, err := spot.ParseTimestamp(rec.Time)
	if err != nil {
		return spot.Spot{}, err
	}
	s := spot.Spot{
		Source:       spot.SourceDXSummit,
		Frequency:    rec.Frequency.Value,
		HasFrequency: true,
		Activator:    rec.DXCall,
		Comment:      string(rec.Info),
		Time:         ts,
	}
	if rec.Latitude.Valid && rec.Longitude.Valid {
		s = s.WithCoordinates(rec.Latitude.Value, rec.Longitude.Value)
	}
	return s, nil
}
