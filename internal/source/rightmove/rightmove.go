// Package rightmove scrapes for-sale listings from rightmove.co.uk.
package rightmove

import (
	"log/slog"
	"regexp"

	"homefinder/internal/fetcher"
	"homefinder/internal/source"
)

const (
	Name           = "Rightmove"
	DefaultBaseURL = "https://www.rightmove.co.uk"
)

var propertyTypes = map[string]string{
	"house":         "detached,semi-detached,terraced",
	"flat":          "flat",
	"apartment":     "flat",
	"condo":         "flat",
	"detached":      "detached",
	"semi-detached": "semi-detached",
	"terraced":      "terraced",
	"bungalow":      "bungalow",
	"land":          "land",
}

func Profile(baseURL string) source.Profile {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return source.Profile{
		Name:       Name,
		IDPrefix:   "rightmove",
		BaseURL:    baseURL,
		SearchPath: "/property-for-sale/find.html",
		Params: source.Params{
			Location:     "searchLocation",
			MinPrice:     "minPrice",
			MaxPrice:     "maxPrice",
			PropertyType: "propertyTypes",
			Bedrooms:     "propertyNumberOfBedrooms",
		},
		Fixed: map[string]string{
			"locationIdentifier": "",
			"sortType":           "6",
			"includeSSTC":        "false",
		},
		PropertyTypes: propertyTypes,
		IDPattern:     regexp.MustCompile(`/properties/(\d+)`),
		DetailLink:    regexp.MustCompile(`^(?:https?://[^/]+)?/properties/\d+`),
		LinkFallback:  regexp.MustCompile(`property`),
		StateGlobals:  []string{"__PRELOADED_STATE__"},
		ListPaths:     [][]string{{"properties", "results"}},
		CardSelector:  `div[class~="propertyCard"]`,
		DefaultTitle:  "Property",
		DefaultType:   "Unknown",
	}
}

func New(f fetcher.Fetcher, baseURL string, logger *slog.Logger) *source.Scraper {
	return source.NewScraper(Profile(baseURL), f, logger)
}
