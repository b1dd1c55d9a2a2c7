// Package filter implements the band/mode allow-list applied to the aggregate.
//
// Filter Logic:
//   - A spot passes only when its mode is in the mode set (case-insensitive)
//     AND its frequency lies strictly inside at least one selected band
//   - Spots without a frequency never pass
//   - Band and mode keys are validated when the filter is built, so a typo in
//     configuration fails at apply time instead of silently hiding spots
//
// A Filter is immutable once built; replacing the active filter means building
// a new one and swapping it in.
package filter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"spothunter/spot"
)

var (
	// ErrUnknownBand is returned for a band key missing from the band table.
	ErrUnknownBand = errors.New("filter: unknown band")
	// ErrUnknownMode is returned for a mode key outside SupportedModes.
	ErrUnknownMode = errors.New("filter: unknown mode")
)

// SupportedModes lists the mode keys a filter may select. The empty key
// selects spots whose feed reports no mode.
var SupportedModes = []string{
	"SSB", "CW", "AM", "FM", "DIGI", "DATA", "PHONE",
	"FT8", "FT4", "JS8", "RTTY", "PSK31", "WSPR", "FST4W",
	"JT65", "Q65", "MSK144", "SSTV", "FREEDV", "VARAC", "HELL", "OLIVIA",
	"",
}

var supportedModeSet = func() map[string]bool {
	m := make(map[string]bool, len(SupportedModes))
	for _, s := range SupportedModes {
		m[strings.ToUpper(strings.TrimSpace(s))] = true
	}
	return m
}()

// IsSupportedMode returns true if the given mode is in the supported list.
func IsSupportedMode(mode string) bool {
	return supportedModeSet[strings.ToUpper(strings.TrimSpace(mode))]
}

// State is the serializable form of a Filter.
type State struct {
	Bands []string `yaml:"bands" json:"bands"`
	Modes []string `yaml:"modes" json:"modes"`
}

// Filter is a validated band/mode allow-list.
type Filter struct {
	bands []spot.BandInfo
	modes map[string]struct{}
	state State
}

// New validates bands and modes and builds a filter.
//
// Parameters:
//   - bands: band keys such as "20m", "15 meters" or "70cm"
//   - modes: mode keys such as "SSB" or "cw"; "" selects mode-less spots
//
// Duplicate keys collapse. The first unknown key aborts with ErrUnknownBand
// or ErrUnknownMode.
func New(bands, modes []string) (*Filter, error) {
	f := &Filter{modes: make(map[string]struct{}, len(modes))}
	seenBands := make(map[string]bool, len(bands))
	for _, b := range bands {
		info, ok := spot.LookupBand(b)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownBand, b)
		}
		if seenBands[info.Name] {
			continue
		}
		seenBands[info.Name] = true
		f.bands = append(f.bands, info)
		f.state.Bands = append(f.state.Bands, info.Name)
	}
	for _, m := range modes {
		key := strings.ToUpper(strings.TrimSpace(m))
		if !supportedModeSet[key] {
			return nil, fmt.Errorf("%w: %q", ErrUnknownMode, m)
		}
		if _, dup := f.modes[key]; dup {
			continue
		}
		f.modes[key] = struct{}{}
		f.state.Modes = append(f.state.Modes, key)
	}
	return f, nil
}

// FromState rebuilds a filter from its serialized form.
func FromState(s State) (*Filter, error) {
	return New(s.Bands, s.Modes)
}

// Match reports whether s passes the filter.
func (f *Filter) Match(s spot.Spot) bool {
	if f == nil || !s.HasFrequency {
		return false
	}
	if _, ok := f.modes[strings.ToUpper(s.Mode)]; !ok {
		return false
	}
	for _, band := range f.bands {
		if band.Contains(s.Frequency) {
			return true
		}
	}
	return false
}

// State returns a copy of the canonical band and mode keys.
func (f *Filter) State() State {
	return State{
		Bands: append([]string(nil), f.state.Bands...),
		Modes: append([]string(nil), f.state.Modes...),
	}
}

// Save writes the filter as YAML to path, creating parent directories.
func Save(path string, f *Filter) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("filter: empty state path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	bs, err := yaml.Marshal(f.State())
	if err != nil {
		return err
	}
	return os.WriteFile(path, bs, 0o644)
}

// Load reads a filter saved by Save. Returns os.ErrNotExist (wrapped) if no
// saved file is found.
func Load(path string) (*Filter, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s State
	if err := yaml.Unmarshal(bs, &s); err != nil {
		return nil, fmt.Errorf("filter: decode %s: %w", path, err)
	}
	return FromState(s)
}
