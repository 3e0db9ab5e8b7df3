package models

import "errors"

// Result is one ranked entry returned by a search backend.
type Result struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Rank    int    `json:"rank"`
}

// Filters narrows a query by locale or recency. Zero values mean no filter.
type Filters struct {
	Country   string
	Language  string
	DateRange string
}

// ErrUnavailable signals a total search provider outage. Fatal for the
// affected round only, never for the whole investigation.
var ErrUnavailable = errors.New("search unavailable")
