package domain

import (
	"errors"
	"strings"
)

// Listing is the canonical record every source is normalized into.
type Listing struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Price        int      `json:"price"` // monthly for rentals
	Location     string   `json:"location"`
	City         string   `json:"city"`
	State        string   `json:"state,omitempty"`
	Bedrooms     *int     `json:"bedrooms,omitempty"`
	Bathrooms    *int     `json:"bathrooms,omitempty"`
	Area         *float64 `json:"area,omitempty"`
	PropertyType string   `json:"propertyType"`
	Images       []string `json:"images"`
	Description  string   `json:"description,omitempty"`
	Features     []string `json:"features,omitempty"`
	Source       string   `json:"source"`
	ListingDate  string   `json:"listingDate,omitempty"`
	URL          string   `json:"url"`
}

// SearchQuery is the subscriber or request intent. Zero values mean "no filter".
type SearchQuery struct {
	Location     string `json:"location,omitempty"`
	PropertyType string `json:"propertyType,omitempty"`
	MinPrice     int    `json:"minPrice,omitempty"`
	MaxPrice     int    `json:"maxPrice,omitempty"`
	Bedrooms     int    `json:"bedrooms,omitempty"`
	Bathrooms    int    `json:"bathrooms,omitempty"`
}

func (q SearchQuery) HasLocation() bool {
	return strings.TrimSpace(q.Location) != ""
}

// Validate rejects bounds no source could honour.
func (q SearchQuery) Validate() error {
	if q.MinPrice < 0 || q.MaxPrice < 0 {
		return errors.New("price bounds must not be negative")
	}
	if q.MinPrice > 0 && q.MaxPrice > 0 && q.MinPrice > q.MaxPrice {
		return errors.New("minPrice must not exceed maxPrice")
	}
	if q.Bedrooms < 0 || q.Bathrooms < 0 {
		return errors.New("room counts must not be negative")
	}
	return nil
}

// IntPtr returns a pointer to v; used for the optional room counts.
func IntPtr(v int) *int {
	return &v
}
