package source

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"homefinder/internal/domain"
)

var (
	titleSelectors = []string{
		`h2[class*="title"]`,
		`h3[class*="title"]`,
		`[data-test="property-title"]`,
		`[data-testid="listing-title"]`,
	}
	priceSelectors = []string{
		`[class*="price"]`,
		`[data-test="property-price"]`,
		`[data-testid="listing-price"]`,
	}
	addressSelectors = []string{
		`address`,
		`[class*="address"]`,
		`p[class*="location"]`,
		`[data-test="property-address"]`,
		`[data-testid="listing-address"]`,
	}
	bedroomSelectors = []string{
		`[class*="bedrooms"]`,
		`[data-test="property-beds"]`,
	}
	typeSelectors = []string{
		`span[class*="propertyType"]`,
	}

	poundsRe = regexp.MustCompile(`£\s*([\d,]+)`)
)

// PatternExtractor reads listing cards out of the rendered markup, falling back
// to bare detail-page anchors when no card matches.
type PatternExtractor struct{}

func (PatternExtractor) Name() string {
	return "pattern"
}

func (PatternExtractor) Extract(html string, p *Profile) ([]domain.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &ParseError{Extractor: "pattern", Err: fmt.Errorf("parse html: %w", err)}
	}

	if listings := fromCards(doc, p); len(listings) > 0 {
		return listings, nil
	}
	return fromAnchors(doc, p), nil
}

func fromCards(doc *goquery.Document, p *Profile) []domain.Listing {
	if p.CardSelector == "" {
		return nil
	}

	var listings []domain.Listing
	doc.Find(p.CardSelector).
		FilterFunction(func(_ int, s *goquery.Selection) bool {
			return s.ParentsFiltered(p.CardSelector).Length() == 0
		}).
		EachWithBreak(func(_ int, card *goquery.Selection) bool {
			href, ok := cardLink(card, p)
			if !ok {
				return true
			}
			listings = append(listings, fromBlock(card, resolveURL(p.BaseURL, href), p))
			return len(listings) < maxListings
		})
	return listings
}

func fromAnchors(doc *goquery.Document, p *Profile) []domain.Listing {
	if p.DetailLink == nil {
		return nil
	}

	var listings []domain.Listing
	seen := make(map[string]struct{})
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if !p.DetailLink.MatchString(href) {
			return true
		}
		if _, dup := seen[href]; dup {
			return true
		}
		seen[href] = struct{}{}

		listings = append(listings, fromBlock(a, resolveURL(p.BaseURL, href), p))
		return len(listings) < maxAnchorListings
	})
	return listings
}

func cardLink(card *goquery.Selection, p *Profile) (string, bool) {
	for _, re := range []*regexp.Regexp{p.DetailLink, p.LinkFallback} {
		if re == nil {
			continue
		}
		var found string
		card.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			href, _ := a.Attr("href")
			if re.MatchString(href) {
				found = href
				return false
			}
			return true
		})
		if found != "" {
			return found, true
		}
	}
	return "", false
}

func fromBlock(block *goquery.Selection, fullURL string, p *Profile) domain.Listing {
	text := normaliseText(block.Text())

	title := firstText(block, titleSelectors)

	priceText := firstText(block, priceSelectors)
	if ParsePrice(priceText) == 0 {
		if m := poundsRe.FindStringSubmatch(text); m != nil {
			priceText = m[1]
		}
	}

	location := firstText(block, addressSelectors)

	bedrooms := ParseBedrooms(text)
	if bedrooms == nil {
		if n, err := strconv.Atoi(firstText(block, bedroomSelectors)); err == nil {
			bedrooms = &n
		}
	}

	propertyType := p.CardType
	if propertyType == "" {
		propertyType = orDefault(firstText(block, typeSelectors), p.DefaultType)
	}

	return domain.Listing{
		ID:           ListingID(p.IDPrefix, p.IDPattern, fullURL, title),
		Title:        orDefault(title, p.DefaultTitle),
		Price:        p.price(priceText),
		Location:     location,
		City:         CityFromLocation(location),
		Bedrooms:     bedrooms,
		PropertyType: propertyType,
		Images:       blockImages(block, p.BaseURL),
		Source:       p.Name,
		URL:          fullURL,
	}
}

func firstText(block *goquery.Selection, selectors []string) string {
	for _, sel := range selectors {
		if t := normaliseText(block.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	return ""
}

func blockImages(block *goquery.Selection, base string) []string {
	images := []string{}
	block.Find("img[src]").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		src, _ := img.Attr("src")
		if src == "" || strings.Contains(src, "placeholder") || strings.Contains(src, "logo") {
			return true
		}
		images = append(images, resolveURL(base, src))
		return len(images) < maxImages
	})
	return images
}
