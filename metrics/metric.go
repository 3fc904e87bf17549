// Package metrics defines the normalized team-health metric model and the
// aggregation service that blends the two upstream sources into one result.
package metrics

import (
	"context"
	"math"
	"time"
)

// Source names as they appear in Metric.Source and AggregationError.Source.
const (
	SourceGitHub = "GitHub"
	SourceSheets = "Google Sheets"
)

// UnknownTotal is the sentinel passed as a progress total when the upstream
// source cannot report how many items exist up front. Never zero, never a
// guess; percentage math must guard for it explicitly.
var UnknownTotal = math.Inf(1)

// Metric is a normalized measurement derived from one source.
//
// A metric is immutable once constructed; an update is a new record with a
// new timestamp. IDs are stable per source+category+name but NOT globally
// unique across sources, so (Source, ID) is the identity used for merging.
type Metric struct {
	ID             string    `json:"id"`
	Category       string    `json:"category"`
	Name           string    `json:"name"`
	Value          float64   `json:"value"`
	Unit           string    `json:"unit"`
	AdditionalInfo string    `json:"additionalInfo"`
	Source         string    `json:"source"`
	Timestamp      time.Time `json:"timestamp"`
}

// AggregationError records one source's failure. Collected, not thrown, so
// the other source's results can still be returned.
type AggregationError struct {
	Source  string `json:"source"`
	Message string `json:"message"`
}

// SourceStats carries the pagination counters of the source that has a
// meaningful notion of total items, plus the requested window.
type SourceStats struct {
	TotalItems     int `json:"totalItems"`
	FetchedItems   int `json:"fetchedItems"`
	TimePeriodDays int `json:"timePeriodDays"`
}

// AggregationResult is produced once per aggregator invocation. Transient:
// returned to the caller and not retained.
type AggregationResult struct {
	Metrics     []Metric           `json:"metrics"`
	Errors      []AggregationError `json:"errors"`
	SourceStats SourceStats        `json:"sourceStats"`
}

// ProgressFunc reports pagination progress. total is UnknownTotal when the
// upstream cannot say how many items exist.
type ProgressFunc func(fetched int, total float64, message string)

// FetchResult is what a source repository returns: already-normalized
// metrics plus its pagination counters. Raw source records never cross this
// boundary; each repository feeds them through its calculator internally.
type FetchResult struct {
	Metrics        []Metric
	TotalAvailable float64 // UnknownTotal when the upstream doesn't report it
	FetchedCount   int
	TimePeriodDays int
}

// SourceRepository is the contract the aggregator consumes for each source.
type SourceRepository interface {
	// Name returns the source name used in metrics, errors, and progress
	// message prefixes.
	Name() string

	// Fetch retrieves and normalizes the source's data for the given
	// look-back window, invoking progress after each upstream page. progress
	// may be nil.
	Fetch(ctx context.Context, timePeriodDays int, progress ProgressFunc) (*FetchResult, error)
}

// Merge concatenates metric sets and deduplicates by (source, id), keeping
// the entry with the later timestamp. On equal timestamps the earlier
// argument's entry wins (first writer wins). Two sources emitting metrics
// with coincidentally equal ids represent different facts and are both
// preserved.
func Merge(sets ...[]Metric) []Metric {
	type key struct {
		source string
		id     string
	}

	merged := make([]Metric, 0)
	index := make(map[key]int)

	for _, set := range sets {
		for _, m := range set {
			k := key{source: m.Source, id: m.ID}
			at, seen := index[k]
			if !seen {
				index[k] = len(merged)
				merged = append(merged, m)
				continue
			}
			if m.Timestamp.After(merged[at].Timestamp) {
				merged[at] = m
			}
		}
	}

	return merged
}
