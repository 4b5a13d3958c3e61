package retrieval

import (
	"strings"

	"venuerag/internal/domain"
)

// FilterRecords returns the records matching every set criterion of f, in
// their original order. Destination and budget match as case-insensitive
// substrings; interests match when any of them equals, ignoring case, any
// tag or suitable_for label of the record.
func FilterRecords(records []domain.Record, f domain.Filter) []domain.Record {
	dest := strings.ToLower(strings.TrimSpace(f.Destination))
	budget := strings.ToLower(strings.TrimSpace(f.Budget))
	interests := normalizeAll(f.Interests)

	out := make([]domain.Record, 0, len(records))
	for _, rec := range records {
		if dest != "" && !containsFold(rec.Destination, dest) {
			continue
		}
		if budget != "" && !containsFold(rec.Budget, budget) {
			continue
		}
		if len(interests) > 0 && !matchesAny(interests, rec.Tags) && !matchesAny(interests, rec.SuitableFor) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func containsFold(field, needle string) bool {
	return field != "" && strings.Contains(strings.ToLower(field), needle)
}

func matchesAny(interests map[string]struct{}, labels []string) bool {
	for _, l := range labels {
		if _, ok := interests[strings.ToLower(strings.TrimSpace(l))]; ok {
			return true
		}
	}
	return false
}

func normalizeAll(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out[v] = struct{}{}
		}
	}
	return out
}
