package entity

import "time"

// LinksCount holds per-type link counters of a generation run.
type LinksCount struct {
	Internal int64 `json:"internal"`
	External int64 `json:"external"`
	Custom   int64 `json:"custom"`
}

// Total is the sum over every type.
func (c LinksCount) Total() int64 {
	return c.Internal + c.External + c.Custom
}

// GenerationStats is written next to the data feed after every generation.
type GenerationStats struct {
	LastGenerated        time.Time  `json:"lastGenerated"`
	SearchPath           string     `json:"searchPath"`
	ExcludedPaths        []string   `json:"excludedPaths"`
	ExcludedProperties   []string   `json:"excludedProperties"`
	ExcludedLinkPatterns []string   `json:"excludedLinksPatterns"`
	ExcludedSites        []string   `json:"excludedSites"`
	ExcludeTags          bool       `json:"excludeTags"`
	LastModifiedBoundary string     `json:"lastModifiedBoundary,omitempty"`
	AllowedStatusCodes   []int      `json:"allowedStatusCodes"`
	TraversedNodes       int        `json:"traversedNodes"`
	CheckedLinks         LinksCount `json:"checkedLinks"`
	BrokenLinks          LinksCount `json:"brokenLinks"`
	ReportedRows         int        `json:"reportedRows"`
	DurationMS           int64      `json:"durationMs"`
}
