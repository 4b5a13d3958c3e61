package embedding

import (
	"math"
	"regexp"
	"strings"
)

// MaxTextRunes is the longest text sent to a provider; longer input is truncated.
const MaxTextRunes = 8000

var (
	controlChars = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// CleanText removes control characters, collapses whitespace and caps the
// length at MaxTextRunes.
func CleanText(text string) string {
	text = controlChars.ReplaceAllString(text, "")
	text = strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
	if r := []rune(text); len(r) > MaxTextRunes {
		text = string(r[:MaxTextRunes])
	}
	return text
}

// Normalize scales v to unit length in place. Zero vectors are left as is.
func Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}
