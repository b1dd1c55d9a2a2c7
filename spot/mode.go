package spot

import "strings"

// CanonicalMode folds sideband variants into SSB. Every other value is
// returned untouched; filters compare modes case-insensitively.
func CanonicalMode(mode string) string {
	switch strings.ToUpper(strings.TrimSpace(mode)) {
	case "LSB", "USB":
		return "SSB"
	}
	return mode
}
