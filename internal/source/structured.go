package source

import (
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"strings"

	"homefinder/internal/domain"
)

// StructuredExtractor reads the JSON state object a portal assigns to a window global.
type StructuredExtractor struct{}

func (StructuredExtractor) Name() string {
	return "structured"
}

func (StructuredExtractor) Extract(html string, p *Profile) ([]domain.Listing, error) {
	start := -1
	for _, name := range p.StateGlobals {
		re := regexp.MustCompile(`window\.` + regexp.QuoteMeta(name) + `\s*=\s*\{`)
		if loc := re.FindStringIndex(html); loc != nil {
			start = loc[1] - 1
			break
		}
	}
	if start < 0 {
		return nil, nil
	}

	dec := json.NewDecoder(strings.NewReader(html[start:]))
	dec.UseNumber()

	var state map[string]any
	if err := dec.Decode(&state); err != nil {
		return nil, &ParseError{Extractor: "structured", Err: err}
	}

	records, ok := listRecords(state, p.ListPaths)
	if !ok {
		return nil, &ParseError{Extractor: "structured", Err: errors.New("no listing array in state")}
	}

	listings := make([]domain.Listing, 0, min(len(records), maxListings))
	for _, r := range records {
		if len(listings) == maxListings {
			break
		}
		rec, ok := r.(map[string]any)
		if !ok {
			continue
		}
		listings = append(listings, fromRecord(rec, p))
	}
	return listings, nil
}

func listRecords(state map[string]any, paths [][]string) ([]any, bool) {
	for _, path := range paths {
		var cur any = state
		for _, key := range path {
			m, ok := cur.(map[string]any)
			if !ok {
				cur = nil
				break
			}
			cur = m[key]
		}
		if arr, ok := cur.([]any); ok {
			return arr, true
		}
	}
	return nil, false
}

func fromRecord(rec map[string]any, p *Profile) domain.Listing {
	link := str(rec, "url", "propertyUrl", "roomUrl", "listingUrl", "detailsUrl", "slug")
	fullURL := resolveURL(p.BaseURL, link)

	title := str(rec, "title", "heading", "name", "displayAddress")
	location := str(rec, "displayAddress", "address", "location")

	l := domain.Listing{
		ID:           ListingID(p.IDPrefix, p.IDPattern, fullURL, title),
		Title:        orDefault(title, p.DefaultTitle),
		Price:        recordPrice(rec, p),
		Location:     location,
		City:         str(rec, "city", "town"),
		State:        str(rec, "county", "region"),
		PropertyType: orDefault(str(rec, "propertyType", "propertySubType", "type"), p.DefaultType),
		Images:       recordImages(rec, p.BaseURL),
		Description:  str(rec, "summary", "description"),
		Features:     strList(rec["features"]),
		Source:       p.Name,
		ListingDate:  str(rec, "listingDate", "firstVisibleDate", "addedOn"),
		URL:          fullURL,
	}
	if l.City == "" {
		l.City = CityFromLocation(location)
	}

	if v, ok := number(rec, "bedrooms", "bedroomCount"); ok {
		l.Bedrooms = domain.IntPtr(int(v))
	} else {
		l.Bedrooms = ParseBedrooms(str(rec, "bedroomsText"))
	}
	if v, ok := number(rec, "bathrooms", "bathroomCount"); ok {
		l.Bathrooms = domain.IntPtr(int(v))
	}
	if v, ok := number(rec, "area", "floorArea"); ok {
		l.Area = &v
	}

	return l
}

// recordPrice prefers structured amounts, then numeric or textual prices.
func recordPrice(rec map[string]any, p *Profile) int {
	if m, ok := rec["price"].(map[string]any); ok {
		if v, ok := number(m, "amount"); ok {
			return p.scale(v)
		}
		if s := str(m, "displayPrice", "text"); s != "" {
			return p.price(s)
		}
	}
	for _, key := range []string{"price", "priceAmount", "rent", "priceText"} {
		switch v := rec[key].(type) {
		case json.Number:
			if f, err := v.Float64(); err == nil {
				return p.scale(f)
			}
		case string:
			if v != "" {
				return p.price(v)
			}
		}
	}
	return 0
}

func (p *Profile) scale(v float64) int {
	if p.Weekly {
		v *= WeeksPerMonth
	}
	if !quantity(v) {
		return 0
	}
	return int(math.Round(v))
}

// quantity reports whether v is usable as a price, room count or area.
func quantity(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= maxQuantity
}

func recordImages(rec map[string]any, base string) []string {
	var images []string
	add := func(v any) {
		switch img := v.(type) {
		case string:
			if img != "" {
				images = append(images, resolveURL(base, img))
			}
		case map[string]any:
			if u := str(img, "srcUrl", "url", "src"); u != "" {
				images = append(images, resolveURL(base, u))
			}
		}
	}

	for _, key := range []string{"images", "imageUrls"} {
		if arr, ok := rec[key].([]any); ok && len(arr) > 0 {
			for _, v := range arr {
				add(v)
			}
			return nonNil(images)
		}
	}
	add(rec["imageUrl"])
	return nonNil(images)
}

func str(rec map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := rec[k].(type) {
		case string:
			if s := normaliseText(v); s != "" {
				return s
			}
		case json.Number:
			return v.String()
		}
	}
	return ""
}

func number(rec map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		switch v := rec[k].(type) {
		case json.Number:
			if f, err := v.Float64(); err == nil && f != 0 && quantity(f) {
				return f, true
			}
		case string:
			if n := ParsePrice(v); n != 0 {
				return float64(n), true
			}
		}
	}
	return 0, false
}

func strList(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, normaliseText(s))
		}
	}
	return out
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
