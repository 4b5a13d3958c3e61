package tui

import (
	"regexp"
	"strings"
	"unicode"
)

var sentenceEnd = regexp.MustCompile(`[.!?。！？]+\s*`)

// splitSentences cuts text after each run of terminators. Trailing text
// without a terminator is its own sentence.
func splitSentences(text string) []string {
	var out []string
	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[start:loc[1]]); s != "" {
			out = append(out, s)
		}
		start = loc[1]
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

func terms(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
	})
}

// bestSentence returns the index of the first sentence containing the most
// distinct query terms, or -1 when none contains any.
func bestSentence(sentences []string, query string) int {
	want := make(map[string]bool)
	for _, t := range terms(query) {
		want[t] = true
	}
	best, bestHits := -1, 0
	for i, s := range sentences {
		seen := make(map[string]bool)
		for _, t := range terms(s) {
			if want[t] {
				seen[t] = true
			}
		}
		if len(seen) > bestHits {
			best, bestHits = i, len(seen)
		}
	}
	return best
}

// highlightBestSentence renders text with the sentence that best matches
// query emphasised.
func highlightBestSentence(text, query string) string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return ""
	}
	if i := bestSentence(sentences, query); i >= 0 {
		sentences[i] = highlightStyle.Render(sentences[i])
	}
	return strings.Join(sentences, " ")
}
