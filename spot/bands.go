package spot

import "strings"

// BandInfo describes an amateur radio band by name and frequency range in kHz.
type BandInfo struct {
	Name string  // canonical band name (e.g., "20m", "70cm")
	Min  float64 // lower edge in kHz (exclusive)
	Max  float64 // upper edge in kHz (exclusive)
}

// Contains reports whether freq lies strictly inside the band. Spots sitting
// exactly on an edge are outside the usable segment.
func (b BandInfo) Contains(freq float64) bool {
	return freq > b.Min && freq < b.Max
}

var bandTable = []BandInfo{
	{Name: "160m", Min: 1800, Max: 2000},
	{Name: "80m", Min: 3500, Max: 3800},
	{Name: "60m", Min: 5330, Max: 5405},
	{Name: "40m", Min: 7000, Max: 7200},
	{Name: "30m", Min: 10100, Max: 10150},
	{Name: "20m", Min: 14000, Max: 14350},
	{Name: "17m", Min: 18068, Max: 18168},
	{Name: "15m", Min: 21000, Max: 21450},
	{Name: "12m", Min: 24890, Max: 24990},
	{Name: "10m", Min: 28000, Max: 29700},
	{Name: "6m", Min: 50000, Max: 52000},
	{Name: "2m", Min: 144000, Max: 146000},
	{Name: "70cm", Min: 430000, Max: 440000},
}

var bandLookup = func() map[string]BandInfo {
	m := make(map[string]BandInfo, len(bandTable))
	for _, entry := range bandTable {
		normalized := NormalizeBand(entry.Name)
		if normalized == "" {
			continue
		}
		m[normalized] = entry
	}
	return m
}()

// NormalizeBand returns the canonical lowercase band identifier for the given label.
// It removes whitespace, converts meter/centimeter words to units, and appends "m" when
// the value looks like a bare number. The result is suitable for map lookups.
func NormalizeBand(label string) string {
	cleaned := strings.ToLower(strings.TrimSpace(label))
	if cleaned == "" {
		return ""
	}

	replacementPairs := []struct{ old, new string }{
		{"centimeters", "cm"},
		{"centimeter", "cm"},
		{"centimetres", "cm"},
		{"centimetre", "cm"},
		{"meters", "m"},
		{"meter", "m"},
		{"metres", "m"},
		{"metre", "m"},
	}
	for _, pair := range replacementPairs {
		cleaned = strings.ReplaceAll(cleaned, pair.old, pair.new)
	}

	cleaned = strings.ReplaceAll(cleaned, " ", "")
	if cleaned == "" {
		return ""
	}

	last := cleaned[len(cleaned)-1]
	if last >= '0' && last <= '9' {
		cleaned += "m"
	}

	return cleaned
}

// LookupBand resolves a band label to its range.
func LookupBand(label string) (BandInfo, bool) {
	normalized := NormalizeBand(label)
	if normalized == "" {
		return BandInfo{}, false
	}
	info, ok := bandLookup[normalized]
	return info, ok
}

// IsValidBand returns true if the provided label corresponds to a known band.
func IsValidBand(label string) bool {
	_, ok := LookupBand(label)
	return ok
}

// SupportedBandNames returns the canonical names of all tracked bands.
func SupportedBandNames() []string {
	names := make([]string, len(bandTable))
	for i, entry := range bandTable {
		names[i] = entry.Name
	}
	return names
}

// FreqToBand converts a frequency in kHz to a band name, or "" when the
// frequency falls outside every tracked band.
func FreqToBand(freq float64) string {
	for _, band := range bandTable {
		if band.Contains(freq) {
			return band.Name
		}
	}
	return ""
}
