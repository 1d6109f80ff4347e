package source

import (
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// WeeksPerMonth converts between the weekly prices some portals quote and monthly prices.
const WeeksPerMonth = 4.33

var (
	priceStrip    = strings.NewReplacer("£", "", ",", "", " ", "", "\t", "", "\n", "", "\u00a0", "")
	digitsRe      = regexp.MustCompile(`\d+`)
	bedroomsRe    = regexp.MustCompile(`(?i)(\d+)\s*bed`)
	nonAlnumRe    = regexp.MustCompile(`[^a-zA-Z0-9]`)
	whitespaceRun = regexp.MustCompile(`\s+`)
)

// maxQuantity bounds every numeric field taken from a page.
const maxQuantity = math.MaxInt32

// ParsePrice returns the first run of digits in text once currency symbols,
// separators and whitespace are removed. Unparseable or out of range text yields 0.
func ParsePrice(text string) int {
	m := digitsRe.FindString(priceStrip.Replace(text))
	if m == "" {
		return 0
	}
	v, err := strconv.Atoi(m)
	if err != nil || v > maxQuantity {
		return 0
	}
	return v
}

func WeeklyToMonthly(weekly int) int {
	return int(math.Round(float64(weekly) * WeeksPerMonth))
}

// MonthlyToWeeklyFloor converts a monthly lower bound so no qualifying listing is excluded.
func MonthlyToWeeklyFloor(monthly int) int {
	return int(math.Floor(float64(monthly) / WeeksPerMonth))
}

// MonthlyToWeeklyCeil converts a monthly upper bound so no qualifying listing is excluded.
func MonthlyToWeeklyCeil(monthly int) int {
	return int(math.Ceil(float64(monthly) / WeeksPerMonth))
}

// ParseBedrooms reads counts like "3 bed" or "2 bedrooms".
func ParseBedrooms(text string) *int {
	m := bedroomsRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	v, err := strconv.Atoi(m[1])
	if err != nil || v > maxQuantity {
		return nil
	}
	return &v
}

// ListingID derives a stable identifier: "<prefix>-<digits>" when idPattern captures
// a numeric id from the detail URL, else the sanitized last URL segment or title.
func ListingID(prefix string, idPattern *regexp.Regexp, detailURL, title string) string {
	if idPattern != nil {
		if m := idPattern.FindStringSubmatch(detailURL); m != nil {
			for _, g := range m[1:] {
				if g != "" {
					return prefix + "-" + g
				}
			}
		}
	}

	tail := detailURL
	if i := strings.LastIndex(tail, "/"); i >= 0 {
		tail = tail[i+1:]
	}
	if tail == "" {
		tail = title
	}
	return prefix + "-" + nonAlnumRe.ReplaceAllString(tail, "-")
}

// CityFromLocation takes the first comma-separated segment of an address.
func CityFromLocation(location string) string {
	city, _, _ := strings.Cut(location, ",")
	return strings.TrimSpace(city)
}

func normaliseText(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

// resolveURL makes ref absolute against base. Unparseable refs are returned as-is.
func resolveURL(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if !strings.HasPrefix(ref, "/") && r.Scheme == "" {
		r.Path = "/" + r.Path
	}
	return b.ResolveReference(r).String()
}
