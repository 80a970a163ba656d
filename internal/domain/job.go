package domain

import "time"

// ItemStatus is the per-item outcome recorded in a job result.
type ItemStatus string

const (
	ItemStatusSuccess          ItemStatus = "success"
	ItemStatusInvalid          ItemStatus = "skipped_invalid_item"
	ItemStatusNoContent        ItemStatus = "skipped_no_content"
	ItemStatusGenerationFailed ItemStatus = "failed_generation"
	ItemStatusError            ItemStatus = "error"
)

// ScrapeStatus records what the scraper produced for an item.
type ScrapeStatus string

const (
	ScrapeStatusOK    ScrapeStatus = "ok"
	ScrapeStatusEmpty ScrapeStatus = "empty"
	ScrapeStatusNoURL ScrapeStatus = "no_url"
)

type ItemResult struct {
	ID      int64        `json:"id"`
	Status  ItemStatus   `json:"status"`
	Scrape  ScrapeStatus `json:"scrape,omitempty"`
	Details string       `json:"details,omitempty"`
}

// RefreshStats holds statistics about a metadata refresh run.
type RefreshStats struct {
	RunID     string        `json:"runId"`
	Success   bool          `json:"success"`
	Processed int           `json:"processed"`
	New       int           `json:"new"`
	Updated   int           `json:"updated"`
	Deleted   int           `json:"deleted"`
	Total     int           `json:"total"`
	Duration  time.Duration `json:"-"`
}

// ProcessResult is the manifest of an enrichment run.
type ProcessResult struct {
	RunID      string        `json:"runId"`
	Candidates int           `json:"candidates"`
	Processed  []ItemResult  `json:"processed"`
	Deleted    int           `json:"deleted"`
	Duration   time.Duration `json:"-"`
}

// RetryStats summarises a bounded retry run.
type RetryStats struct {
	RunID     string        `json:"runId"`
	Passes    int           `json:"passes"`
	Attempted int           `json:"attempted"`
	Recovered int           `json:"recovered"`
	Remaining int           `json:"remaining"`
	Duration  time.Duration `json:"-"`
}
