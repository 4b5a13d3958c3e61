package summarizer

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"venuerag/internal/domain"
)

// Count is a label with the number of records carrying it.
type Count struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Overview describes a loaded corpus for display.
type Overview struct {
	Records      int     `json:"records"`
	Destinations []Count `json:"destinations"`
	Types        []Count `json:"types"`
	Highlights   string  `json:"highlights,omitempty"`
}

// Overview counts records per destination and type and summarizes their
// descriptions into at most maxSentences sentences.
func (s *FrequencySummarizer) Overview(records []domain.Record, maxSentences int) Overview {
	dest := map[string]int{}
	types := map[string]int{}
	var text strings.Builder
	for _, rec := range records {
		dest[rec.Destination]++
		types[rec.Type]++
		desc := strings.TrimSpace(rec.Description)
		if desc == "" {
			continue
		}
		text.WriteString(desc)
		if !strings.ContainsAny(desc[len(desc)-1:], ".!?") {
			text.WriteString(".")
		}
		text.WriteString("\n")
	}

	o := Overview{
		Records:      len(records),
		Destinations: counts(dest),
		Types:        counts(types),
	}
	if highlights, err := s.Summarize(text.String(), maxSentences); err == nil {
		o.Highlights = highlights
	}
	return o
}

// String renders a one-line description such as "12 records: Paris (8), Tokyo (4)".
func (o Overview) String() string {
	if o.Records == 0 {
		return "no records loaded"
	}
	parts := make([]string, len(o.Destinations))
	for i, c := range o.Destinations {
		parts[i] = fmt.Sprintf("%s (%d)", c.Label, c.Count)
	}
	return fmt.Sprintf("%d records: %s", o.Records, strings.Join(parts, ", "))
}

// counts orders labels by descending count, then alphabetically.
func counts(m map[string]int) []Count {
	out := make([]Count, 0, len(m))
	for label, n := range m {
		out = append(out, Count{Label: label, Count: n})
	}
	slices.SortFunc(out, func(a, b Count) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Label, b.Label)
	})
	return out
}
