package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"homefinder/internal/domain"
	"homefinder/internal/fetcher"
)

const (
	maxListings       = 100
	maxAnchorListings = 50
	maxImages         = 5
)

// Adapter scrapes one portal. Implementations never panic and report failure
// through the returned error.
type Adapter interface {
	Name() string
	Scrape(ctx context.Context, query domain.SearchQuery) ([]domain.Listing, error)
}

// Params names the portal's search query parameters. Empty names are not sent.
type Params struct {
	Location     string
	MinPrice     string
	MaxPrice     string
	PropertyType string
	Bedrooms     string
}

// Profile describes everything portal specific the shared engine needs.
type Profile struct {
	Name     string
	IDPrefix string
	BaseURL  string

	SearchPath string
	Params     Params
	// Fixed parameters sent on every search, such as the newest-first sort.
	Fixed         map[string]string
	PropertyTypes map[string]string
	// Weekly portals quote rent per week; bounds are converted on the way out
	// and prices on the way in.
	Weekly bool

	// IDPattern captures the numeric id from a detail URL.
	IDPattern *regexp.Regexp
	// DetailLink matches hrefs of detail pages.
	DetailLink *regexp.Regexp
	// LinkFallback matches looser hrefs inside a card when no detail link is present.
	LinkFallback *regexp.Regexp

	StateGlobals []string
	ListPaths    [][]string
	CardSelector string

	DefaultTitle string
	DefaultType  string
	// CardType overrides the property type of card-tier listings.
	CardType string

	// Fetch overrides the fetcher defaults for this portal; zero keeps them.
	Fetch fetcher.Options
}

// BuildURL renders the newest-first search URL for q.
func (p *Profile) BuildURL(q domain.SearchQuery) string {
	params := url.Values{}
	set := func(name, value string) {
		if name != "" && value != "" {
			params.Set(name, value)
		}
	}

	set(p.Params.Location, strings.TrimSpace(q.Location))

	minPrice, maxPrice := q.MinPrice, q.MaxPrice
	if p.Weekly {
		if minPrice > 0 {
			minPrice = MonthlyToWeeklyFloor(minPrice)
		}
		if maxPrice > 0 {
			maxPrice = MonthlyToWeeklyCeil(maxPrice)
		}
	}
	if q.MinPrice > 0 {
		set(p.Params.MinPrice, strconv.Itoa(minPrice))
	}
	if q.MaxPrice > 0 {
		set(p.Params.MaxPrice, strconv.Itoa(maxPrice))
	}

	set(p.Params.PropertyType, p.propertyType(q.PropertyType))

	if q.Bedrooms > 0 {
		set(p.Params.Bedrooms, strconv.Itoa(q.Bedrooms))
	}

	for k, v := range p.Fixed {
		params.Set(k, v)
	}

	return strings.TrimRight(p.BaseURL, "/") + p.SearchPath + "?" + params.Encode()
}

func (p *Profile) propertyType(requested string) string {
	requested = strings.ToLower(strings.TrimSpace(requested))
	if requested == "" || requested == "any" {
		return ""
	}
	return p.PropertyTypes[requested]
}

func (p *Profile) price(text string) int {
	v := ParsePrice(text)
	if p.Weekly {
		return WeeklyToMonthly(v)
	}
	return v
}

// Extractor is one strategy for turning a search page into listings.
type Extractor interface {
	Name() string
	Extract(html string, p *Profile) ([]domain.Listing, error)
}

// Scraper is the shared adapter engine: build URL, fetch, run extractors in rank
// order and return the first non-empty result.
type Scraper struct {
	profile    Profile
	fetcher    fetcher.Fetcher
	extractors []Extractor
	logger     *slog.Logger
}

func NewScraper(profile Profile, f fetcher.Fetcher, logger *slog.Logger) *Scraper {
	return &Scraper{
		profile:    profile,
		fetcher:    f,
		extractors: []Extractor{StructuredExtractor{}, PatternExtractor{}},
		logger:     logger.With("source", profile.Name),
	}
}

func (s *Scraper) Name() string {
	return s.profile.Name
}

func (s *Scraper) Profile() Profile {
	return s.profile
}

func (s *Scraper) Scrape(ctx context.Context, query domain.SearchQuery) (listings []domain.Listing, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scraper panicked", "panic", r)
			listings, err = nil, &AdapterError{Source: s.profile.Name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if !query.HasLocation() {
		s.logger.Warn("no location in query, skipping")
		return nil, nil
	}

	searchURL := s.profile.BuildURL(query)
	s.logger.Info("fetching search page", "url", searchURL)

	html, err := s.fetcher.Fetch(ctx, searchURL, s.profile.Fetch)
	if err != nil {
		s.logger.Error("fetch failed", "error", err)
		return nil, &AdapterError{Source: s.profile.Name, Err: err}
	}

	s.logger.Debug("fetched search page", "bytes", len(html))

	listings = s.Parse(html)
	if len(listings) == 0 {
		s.logger.Warn("no listings found, page layout may have changed")
		return []domain.Listing{}, nil
	}

	s.logger.Info("scraped listings",
		"count", len(listings),
		"sample_id", listings[0].ID,
		"sample_price", listings[0].Price,
	)
	return listings, nil
}

// Parse runs the extractors over an already fetched page.
func (s *Scraper) Parse(html string) []domain.Listing {
	for _, ex := range s.extractors {
		listings, err := ex.Extract(html, &s.profile)
		if err != nil {
			s.logger.Debug("extractor failed, trying next", "extractor", ex.Name(), "error", err)
			continue
		}
		if len(listings) > 0 {
			s.logger.Debug("extractor matched", "extractor", ex.Name(), "count", len(listings))
			return listings
		}
	}
	return nil
}
