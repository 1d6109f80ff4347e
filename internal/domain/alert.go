package domain

import "time"

// Subscriber is a client record from the subscriber directory.
type Subscriber struct {
	ID             string      `json:"id" db:"id"`
	Name           string      `json:"name" db:"name"`
	Email          string      `json:"email" db:"email"`
	SearchCriteria SearchQuery `json:"searchCriteria" db:"-"`
}

// Alert reports the listings that are new for one subscriber since the last check.
type Alert struct {
	ClientID    string    `json:"clientId"`
	ClientName  string    `json:"clientName"`
	NewListings []Listing `json:"newListings"`
	Timestamp   time.Time `json:"timestamp"`
	TotalNew    int       `json:"totalNew"`
}

type AlertsResponse struct {
	TotalAlerts      int     `json:"totalAlerts"`
	TotalNewListings int     `json:"totalNewListings"`
	Alerts           []Alert `json:"alerts"`
}

// RoundStats holds statistics about one alert round.
type RoundStats struct {
	Subscribers   int
	Failed        int
	Alerts        int
	NewListings   int
	Published     int
	PublishErrors int
	Duration      time.Duration
}
