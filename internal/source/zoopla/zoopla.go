// Package zoopla scrapes for-sale listings from zoopla.co.uk.
package zoopla

import (
	"log/slog"
	"regexp"

	"homefinder/internal/fetcher"
	"homefinder/internal/source"
)

const (
	Name           = "Zoopla"
	DefaultBaseURL = "https://www.zoopla.co.uk"
)

var propertyTypes = map[string]string{
	"house":         "houses",
	"flat":          "flats",
	"apartment":     "flats",
	"condo":         "flats",
	"detached":      "detached",
	"semi-detached": "semi-detached",
	"terraced":      "terraced",
	"bungalow":      "bungalows",
	"land":          "land",
}

func Profile(baseURL string) source.Profile {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return source.Profile{
		Name:       Name,
		IDPrefix:   "zoopla",
		BaseURL:    baseURL,
		SearchPath: "/for-sale/property",
		Params: source.Params{
			Location:     "q",
			MinPrice:     "price_min",
			MaxPrice:     "price_max",
			PropertyType: "property_type",
			Bedrooms:     "beds_min",
		},
		Fixed:         map[string]string{"sort": "newest_listings"},
		PropertyTypes: propertyTypes,
		IDPattern:     regexp.MustCompile(`/details/(\d+)|/(\d+)\.html`),
		DetailLink:    regexp.MustCompile(`^(?:https?://[^/]+)?/for-sale/details/\d+`),
		LinkFallback:  regexp.MustCompile(`property`),
		StateGlobals:  []string{"__ZOOPLA__", "__INITIAL_STATE__"},
		ListPaths:     [][]string{{"listings"}, {"results"}},
		CardSelector:  `article[class*="listing"], div[data-testid^="search-result"]`,
		DefaultTitle:  "Property",
		DefaultType:   "Unknown",
	}
}

func New(f fetcher.Fetcher, baseURL string, logger *slog.Logger) *source.Scraper {
	return source.NewScraper(Profile(baseURL), f, logger)
}
