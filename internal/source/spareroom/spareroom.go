// Package spareroom scrapes room shares from spareroom.co.uk. Rents are quoted
// weekly and the site is normally fetched through the rendering proxy.
package spareroom

import (
	"log/slog"
	"regexp"

	"homefinder/internal/fetcher"
	"homefinder/internal/source"
)

const (
	Name           = "SpareRoom"
	DefaultBaseURL = "https://www.spareroom.co.uk"
)

var propertyTypes = map[string]string{
	"room":      "room",
	"studio":    "studio",
	"flat":      "flat",
	"apartment": "flat",
	"house":     "house",
}

func Profile(baseURL string) source.Profile {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return source.Profile{
		Name:       Name,
		IDPrefix:   "spareroom",
		BaseURL:    baseURL,
		SearchPath: "/flatshare",
		Params: source.Params{
			Location:     "search",
			MinPrice:     "min_rent",
			MaxPrice:     "max_rent",
			PropertyType: "property_type",
			Bedrooms:     "bedrooms",
		},
		Fixed:         map[string]string{"sort_by": "date"},
		PropertyTypes: propertyTypes,
		Weekly:        true,
		IDPattern:     regexp.MustCompile(`/room/(\d+)`),
		DetailLink:    regexp.MustCompile(`^(?:https?://[^/]+)?/room/\d+`),
		LinkFallback:  regexp.MustCompile(`listing`),
		StateGlobals:  []string{"__INITIAL_STATE__", "__SPAREROOM__"},
		ListPaths:     [][]string{{"listings"}, {"results"}, {"rooms"}},
		CardSelector:  `li[class~="listing-result"], div[class~="listing"]`,
		DefaultTitle:  "Room Available",
		DefaultType:   "Room",
		CardType:      "Room",
	}
}

func New(f fetcher.Fetcher, baseURL string, logger *slog.Logger) *source.Scraper {
	return source.NewScraper(Profile(baseURL), f, logger)
}
