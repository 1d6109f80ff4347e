// Package openrent scrapes rentals from openrent.co.uk. Rents are quoted weekly.
package openrent

import (
	"log/slog"
	"regexp"

	"homefinder/internal/fetcher"
	"homefinder/internal/source"
)

const (
	Name           = "OpenRent"
	DefaultBaseURL = "https://www.openrent.co.uk"
)

var propertyTypes = map[string]string{
	"house":         "house",
	"flat":          "flat",
	"apartment":     "flat",
	"condo":         "flat",
	"detached":      "house",
	"semi-detached": "house",
	"terraced":      "house",
	"bungalow":      "house",
	"studio":        "studio",
}

func Profile(baseURL string) source.Profile {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return source.Profile{
		Name:       Name,
		IDPrefix:   "openrent",
		BaseURL:    baseURL,
		SearchPath: "/properties-to-rent",
		Params: source.Params{
			Location:     "term",
			MinPrice:     "rentMin",
			MaxPrice:     "rentMax",
			PropertyType: "propertyType",
			Bedrooms:     "bedrooms",
		},
		Fixed:         map[string]string{"sort": "newest"},
		PropertyTypes: propertyTypes,
		Weekly:        true,
		IDPattern:     regexp.MustCompile(`/properties/(\d+)`),
		DetailLink:    regexp.MustCompile(`^(?:https?://[^/]+)?/properties/\d+`),
		LinkFallback:  regexp.MustCompile(`property`),
		StateGlobals:  []string{"__INITIAL_STATE__", "__OPENRENT__"},
		ListPaths:     [][]string{{"properties"}, {"listings"}, {"results"}},
		CardSelector:  `div[class~="property"], div[class~="pli"]`,
		DefaultTitle:  "Property",
		DefaultType:   "Unknown",
	}
}

func New(f fetcher.Fetcher, baseURL string, logger *slog.Logger) *source.Scraper {
	return source.NewScraper(Profile(baseURL), f, logger)
}
