package spot

import (
	"math"
	"strings"
	"testing"
	"time"
)

func TestLocatorFromLatLonSixCharacters(t *testing.T) {
	got, ok := LocatorFromLatLon(57.0522, 16.8460)
	if !ok {
		t.Fatalf("LocatorFromLatLon returned !ok")
	}
	if got != "JO87kb" {
		t.Fatalf("LocatorFromLatLon = %q, want JO87kb", got)
	}
}

func TestLocatorFromLatLonRejectsOutOfRange(t *testing.T) {
	cases := [][2]float64{{91, 0}, {0, -181}, {math.NaN(), 0}, {0, math.Inf(1)}}
	for _, c := range cases {
		if loc, ok := LocatorFromLatLon(c[0], c[1]); ok {
			t.Fatalf("LocatorFromLatLon(%v,%v) = %q, want rejection", c[0], c[1], loc)
		}
	}
}

func TestLocatorFromLatLonClampsPoles(t *testing.T) {
	loc, ok := LocatorFromLatLon(90, 180)
	if !ok || loc != "RR99xx" {
		t.Fatalf("LocatorFromLatLon(90,180) = %q,%v, want RR99xx", loc, ok)
	}
}

func TestLatLonFromLocatorRoundTrip(t *testing.T) {
	lat, lon, ok := LatLonFromLocator("jo87KB")
	if !ok {
		t.Fatalf("LatLonFromLocator rejected a valid locator")
	}
	loc, _ := LocatorFromLatLon(lat, lon)
	if loc != "JO87kb" {
		t.Fatalf("centre of JO87kb maps back to %q", loc)
	}
	if math.Abs(lat-57.0625) > 1e-9 || math.Abs(lon-16.875) > 1e-9 {
		t.Fatalf("unexpected centre %.6f,%.6f", lat, lon)
	}
}

func TestLatLonFromLocatorFourCharacters(t *testing.T) {
	lat, lon, ok := LatLonFromLocator("FN31")
	if !ok {
		t.Fatalf("LatLonFromLocator(FN31) rejected")
	}
	if lat != 41.5 || lon != -73 {
		t.Fatalf("FN31 centre = %v,%v, want 41.5,-73", lat, lon)
	}
}

func TestLatLonFromLocatorRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "JO8", "JO87k", "ZZ99", "JO87zz", "J087"} {
		if _, _, ok := LatLonFromLocator(in); ok {
			t.Fatalf("LatLonFromLocator(%q) should fail", in)
		}
	}
}

func TestGreatCircleKmQuarterMeridian(t *testing.T) {
	d := GreatCircleKm(Point{0, 0}, Point{0, 90})
	if math.Abs(d-10007.557) > 0.01 {
		t.Fatalf("distance = %.3f, want ~10007.557", d)
	}
	if d := GreatCircleKm(Point{45, 10}, Point{45, 10}); d != 0 {
		t.Fatalf("distance to self = %v", d)
	}
}

func TestSpotDistanceRequiresCoordinates(t *testing.T) {
	s := Spot{Activator: "K1ABC"}
	if _, ok := s.Distance(Point{}); ok {
		t.Fatalf("distance should be unavailable without coordinates")
	}
	s = s.WithCoordinates(0, 90)
	d, ok := s.Distance(Point{})
	if !ok || math.Abs(d-10007.557) > 0.01 {
		t.Fatalf("distance = %v,%v", d, ok)
	}
}

func TestSpotLocatorPrefersOverride(t *testing.T) {
	s := Spot{LocatorOverride: "IO91wm"}.WithCoordinates(57.0522, 16.8460)
	if s.Locator() != "IO91wm" {
		t.Fatalf("Locator() = %q, want override", s.Locator())
	}
	s.LocatorOverride = ""
	if s.Locator() != "JO87kb" {
		t.Fatalf("Locator() = %q, want derived JO87kb", s.Locator())
	}
	if (Spot{}).Locator() != "" {
		t.Fatalf("Locator() without coordinates should be empty")
	}
}

func TestSpotProgrammeFallsBackToComment(t *testing.T) {
	s := Spot{Comment: "calling from pota park"}
	if s.Programme() != ProgrammePOTA {
		t.Fatalf("Programme() = %q, want POTA", s.Programme())
	}
	s.ProgrammeOverride = ProgrammeSOTA
	if s.Programme() != ProgrammeSOTA {
		t.Fatalf("override ignored: %q", s.Programme())
	}
}

func TestInferProgramme(t *testing.T) {
	cases := []struct {
		comment string
		want    Programme
	}{
		{"", ProgrammeNone},
		{"CQ WWFF SMFF-1234", ProgrammeWWFF},
		{"WWFF ref DL-01234", ProgrammeWWFF},
		{"ref ONFF-0123 up 2", ProgrammeWWFF},
		{"IOTA EU-001 and pota", ProgrammeIOTA},
		{"Pota K-1234", ProgrammePOTA},
		{"wwff and iota and pota", ProgrammeWWFF},
		{"potato salad", ProgrammeNone},
		{"iotas", ProgrammeNone},
		{"XWWFFX", ProgrammeNone},
	}
	for _, tc := range cases {
		if got := InferProgramme(tc.comment); got != tc.want {
			t.Fatalf("InferProgramme(%q) = %q, want %q", tc.comment, got, tc.want)
		}
	}
}

func TestProgrammeLabel(t *testing.T) {
	if ProgrammePOTA.Label() != "POTA 🏞" {
		t.Fatalf("POTA label = %q", ProgrammePOTA.Label())
	}
	if ProgrammeSOTA.Label() != "SOTA ⛰" {
		t.Fatalf("SOTA label = %q", ProgrammeSOTA.Label())
	}
	if ProgrammeNone.Label() != "" {
		t.Fatalf("none label = %q", ProgrammeNone.Label())
	}
}

func TestCanonicalMode(t *testing.T) {
	cases := map[string]string{
		"LSB": "SSB",
		"usb": "SSB",
		"CW":  "CW",
		"ft8": "ft8",
		"":    "",
	}
	for in, want := range cases {
		if got := CanonicalMode(in); got != want {
			t.Fatalf("CanonicalMode(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBandContainsIsExclusive(t *testing.T) {
	band, ok := LookupBand("20m")
	if !ok {
		t.Fatalf("20m missing from band table")
	}
	if band.Contains(14000) || band.Contains(14350) {
		t.Fatalf("band edges must be excluded")
	}
	if !band.Contains(14000.1) || !band.Contains(14349.9) {
		t.Fatalf("in-band frequencies rejected")
	}
}

func TestNormalizeBandAliases(t *testing.T) {
	for _, in := range []string{"20", "20 meters", " 20M "} {
		if !IsValidBand(in) {
			t.Fatalf("IsValidBand(%q) = false", in)
		}
	}
	if IsValidBand("11m") {
		t.Fatalf("11m should not be a tracked band")
	}
	if FreqToBand(7074) != "40m" {
		t.Fatalf("FreqToBand(7074) = %q", FreqToBand(7074))
	}
	if FreqToBand(27000) != "" {
		t.Fatalf("FreqToBand(27000) should be empty")
	}
	names := SupportedBandNames()
	if names[0] != "160m" || names[len(names)-1] != "70cm" {
		t.Fatalf("unexpected band order %v", names)
	}
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, 5, 1, 12, 34, 56, 0, time.UTC)
	for _, in := range []string{
		"2024-05-01T12:34:56",
		"2024-05-01T12:34:56Z",
		"2024-05-01T14:34:56+02:00",
		"2024-05-01T14:34:56+0200",
		"2024-05-01 12:34:56",
	} {
		got, err := ParseTimestamp(in)
		if err != nil {
			t.Fatalf("ParseTimestamp(%q) error: %v", in, err)
		}
		if !got.Equal(want) || got.Location() != time.UTC {
			t.Fatalf("ParseTimestamp(%q) = %v, want %v", in, got, want)
		}
	}
	frac, err := ParseTimestamp("2024-05-01T12:34:56.250")
	if err != nil || frac.Nanosecond() != 250000000 {
		t.Fatalf("fractional parse = %v, %v", frac, err)
	}
	if _, err := ParseTimestamp("yesterday"); err == nil {
		t.Fatalf("expected error for garbage timestamp")
	}
	if _, err := ParseTimestamp(""); err == nil {
		t.Fatalf("expected error for empty timestamp")
	}
}

func TestParseDateTime(t *testing.T) {
	got, err := ParseDateTime("03/02/24", "07:15")
	if err != nil {
		t.Fatalf("ParseDateTime error: %v", err)
	}
	want := time.Date(2024, 2, 3, 7, 15, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("ParseDateTime = %v, want %v", got, want)
	}
	if _, err := ParseDateTime("2024-02-03", "07:15"); err == nil {
		t.Fatalf("expected error for wrong date layout")
	}
}

func TestSourceKeys(t *testing.T) {
	src, ok := ParseSource("DXSUMMIT")
	if !ok || src != SourceDXSummit {
		t.Fatalf("ParseSource(DXSUMMIT) = %q,%v", src, ok)
	}
	if _, ok := ParseSource("rbn"); ok {
		t.Fatalf("rbn is not a known source")
	}
	if len(Sources()) != 4 {
		t.Fatalf("Sources() = %v", Sources())
	}
}

func TestSpotStringMentionsActivator(t *testing.T) {
	s := Spot{Source: SourcePOTA, Activator: "K1ABC", Frequency: 14074, HasFrequency: true, Mode: "FT8"}
	if !strings.Contains(s.String(), "K1ABC on 14074.0 kHz") {
		t.Fatalf("String() = %q", s.String())
	}
}
