package spot

import "regexp"

// Programme is the award programme an activation counts towards.
type Programme string

const (
	ProgrammeNone Programme = ""
	ProgrammeWWFF Programme = "WWFF"
	ProgrammeIOTA Programme = "IOTA"
	ProgrammePOTA Programme = "POTA"
	ProgrammeSOTA Programme = "SOTA"
)

var programmeGlyphs = map[Programme]string{
	ProgrammeWWFF: "☘",
	ProgrammeIOTA: "🏝",
	ProgrammePOTA: "🏞",
	ProgrammeSOTA: "⛰",
}

// Label returns the display tag, e.g. "POTA 🏞". Empty for ProgrammeNone.
func (p Programme) Label() string {
	glyph, ok := programmeGlyphs[p]
	if !ok {
		return string(p)
	}
	return string(p) + " " + glyph
}

var (
	wwffTokenRe = regexp.MustCompile(`(?i)\bwwff\b`)
	wwffRefRe   = regexp.MustCompile(`\b[A-Za-z0-9]{1,2}[Ff]{2}-[0-9]{4}\b`)
	iotaTokenRe = regexp.MustCompile(`(?i)\biota\b`)
	potaTokenRe = regexp.MustCompile(`(?i)\bpota\b`)
)

// InferProgramme scans a free-text comment for programme keywords. Matches are
// whole words only and the first hit in WWFF, IOTA, POTA order wins.
func InferProgramme(comment string) Programme {
	if comment == "" {
		return ProgrammeNone
	}
	switch {
	case wwffTokenRe.MatchString(comment), wwffRefRe.MatchString(comment):
		return ProgrammeWWFF
	case iotaTokenRe.MatchString(comment):
		return ProgrammeIOTA
	case potaTokenRe.MatchString(comment):
		return ProgrammePOTA
	}
	return ProgrammeNone
}
