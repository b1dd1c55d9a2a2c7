package feeds

import (
	"context"

	"spothunter/spot"
)

// SOTA parses the Summits on the Air spot feed. Summit locations come from
// Resolver, which may issue a remote region lookup on a cache miss.
type SOTA struct {
	Resolver SummitResolver
}

type sotaRecord struct {
	Frequency optFloat  `json:"frequency"`
	Mode      string    `json:"mode"`
	TimeStamp string    `json:"timeStamp"`
	Activator string    `json:"activatorCallsign"`
	Summit    string    `json:"summitCode"`
	Comments  optString `json:"comments"`
}

func (SOTA) Source() spot.Source { return spot.SourceSOTA }

func (s SOTA) Parse(ctx context.Context, payload []byte) (ParseReport, error) {
	return parseRecords(payload, func(raw []byte) (spot.Spot, error) {
		return s.decode(ctx, raw)
	})
}

func (s SOTA) decode(ctx context.Context, raw []byte) (spot.Spot, error) {
	var rec sotaRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return spot.Spot{}, err
	}
	if err := requireField("activatorCallsign", rec.Activator); err != nil {
		return spot.Spot{}, err
	}
	if err := requireField("summitCode", rec.Summit); err != nil {
		return spot.Spot{}, err
	}
	if err := positiveFrequency(rec.Frequency); err != nil {
		return spot.Spot{}, err
	}
	ts, err := spot.ParseTimestamp(rec.TimeStamp)
	if err != nil {
		return spot.Spot{}, err
	}

	out := spot.Spot{
		Source:            spot.SourceSOTA,
		Mode:              spot.CanonicalMode(rec.Mode),
		Activator:         rec.Activator,
		Reference:         rec.Summit,
		Comment:           string(rec.Comments),
		Time:              ts,
		ProgrammeOverride: spot.ProgrammeSOTA,
	}
	if rec.Frequency.Valid {
		out.Frequency = rec.Frequency.Value * 1000
		out.HasFrequency = true
	}
	if s.Resolver != nil {
		if entry, ok := s.Resolver.Resolve(ctx, rec.Summit); ok {
			out.LocatorOverride = entry.Locator
			out = out.WithCoordinates(entry.Latitude, entry.Longitude)
		}
	}
	return out, nil
}
