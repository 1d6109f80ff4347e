package domain

// SourceOutcome is the per-source result of one aggregation round.
type SourceOutcome struct {
	Source   string
	Success  bool
	Listings []Listing
	Error    string
}

func (o SourceOutcome) Count() int {
	return len(o.Listings)
}

// AggregationResult holds the merged, deduplicated listings of one round.
type AggregationResult struct {
	Listings   []Listing
	Outcomes   []SourceOutcome
	TotalFound int
}

type SourceSummary struct {
	Source  string `json:"source"`
	Success bool   `json:"success"`
	Count   int    `json:"count"`
	Error   string `json:"error,omitempty"`
}

type SearchResponse struct {
	Success    bool            `json:"success"`
	Listings   []Listing       `json:"listings"`
	TotalFound int             `json:"totalFound"`
	Sources    []SourceSummary `json:"sources"`
}

// Response converts the result into its outbound wire shape.
func (r *AggregationResult) Response() SearchResponse {
	resp := SearchResponse{
		Success:    true,
		Listings:   r.Listings,
		TotalFound: r.TotalFound,
		Sources:    make([]SourceSummary, 0, len(r.Outcomes)),
	}
	if resp.Listings == nil {
		resp.Listings = []Listing{}
	}
	for i := range resp.Listings {
		if resp.Listings[i].Images == nil {
			resp.Listings[i].Images = []string{}
		}
	}
	for _, o := range r.Outcomes {
		resp.Sources = append(resp.Sources, SourceSummary{
			Source:  o.Source,
			Success: o.Success,
			Count:   o.Count(),
			Error:   o.Error,
		})
	}
	return resp
}
