package spot

import (
	"fmt"
	"strings"
	"time"
)

// Layouts carrying an explicit zone (Z or numeric offset).
var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z0700",
}

// Layouts without a zone; interpreted as UTC.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// ParseTimestamp accepts an ISO-8601 instant with or without a zone marker.
// Naive values are taken as UTC; zoned values are converted to UTC.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

// ParseDateTime combines a dd/mm/yy date and HH:MM time, both UTC.
func ParseDateTime(date, clock string) (time.Time, error) {
	joined := strings.TrimSpace(date) + " " + strings.TrimSpace(clock)
	t, err := time.ParseInLocation("02/01/06 15:04", joined, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized date/time %q: %w", joined, err)
	}
	return t, nil
}
