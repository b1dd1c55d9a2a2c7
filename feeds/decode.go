package feeds

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"spothunter/spot"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// splitRecords decodes the top-level array without decoding its elements so
// that one bad record cannot spoil the rest.
func splitRecords(payload []byte) ([]jsoniter.RawMessage, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, ErrPayload
	}
	var records []jsoniter.RawMessage
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayload, err)
	}
	return records, nil
}

// optFloat accepts a JSON number, a numeric string, an empty string or null.
// Only the first two set Valid.
type optFloat struct {
	Value float64
	Valid bool
}

func (f *optFloat) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*f = optFloat{}
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
		if raw == "" {
			*f = optFloat{}
			return nil
		}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("not a number: %q", raw)
	}
	*f = optFloat{Value: v, Valid: true}
	return nil
}

// optString maps null to "".
type optString string

func (s *optString) UnmarshalJSON(data []byte) error {
	if strings.TrimSpace(string(data)) == "null" {
		*s = ""
		return nil
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = optString(v)
	return nil
}

func requireField(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing %s", name)
	}
	return nil
}

// positiveFrequency rejects zero and negative frequencies; absent is fine.
func positiveFrequency(f optFloat) error {
	if f.Valid && f.Value <= 0 {
		return fmt.Errorf("non-positive frequency %v", f.Value)
	}
	return nil
}

// parseRecords applies decode to each array element, collecting failures
// per record instead of aborting the batch.
func parseRecords(payload []byte, decode func(raw []byte) (spot.Spot, error)) (ParseReport, error) {
	records, err := splitRecords(payload)
	if err != nil {
		return ParseReport{}, err
	}
	report := ParseReport{Spots: make([]spot.Spot, 0, len(records))}
	for i, raw := range records {
		s, err := decode(raw)
		if err != nil {
			report.reject(i, err)
			continue
		}
		report.Spots = append(report.Spots, s)
	}
	return report, nil
}
