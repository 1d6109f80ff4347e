// Package dedupe collapses listings that different fetches or sources report twice.
package dedupe

import (
	"strconv"

	"homefinder/internal/domain"
)

// Key identifies a listing: its source and URL, or source, title, price and
// location when no URL is known.
func Key(l domain.Listing) string {
	if l.URL != "" {
		return l.Source + "-" + l.URL
	}
	return l.Source + "-" + l.Title + "-" + strconv.Itoa(l.Price) + "-" + l.Location
}

// Dedupe keeps one listing per Key in first-occurrence order. A later duplicate
// replaces the kept record when it is more complete.
func Dedupe(listings []domain.Listing) []domain.Listing {
	out := make([]domain.Listing, 0, len(listings))
	index := make(map[string]int, len(listings))

	for _, l := range listings {
		k := Key(l)
		i, seen := index[k]
		if !seen {
			index[k] = len(out)
			out = append(out, l)
			continue
		}
		if moreComplete(l, out[i]) {
			out[i] = l
		}
	}
	return out
}

func moreComplete(candidate, kept domain.Listing) bool {
	if kept.Description == "" && candidate.Description != "" {
		return true
	}
	return len(candidate.Images) > len(kept.Images) || len(candidate.Features) > len(kept.Features)
}
