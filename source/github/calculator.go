package github

import (
	"fmt"
	"math"
	"time"

	"github.com/tempohq/teamtempo/metrics"
)

// CalculateMetrics derives the fixed GitHub metric set from raw pull
// requests. Pure and deterministic: no I/O, no shared state, safe to call
// concurrently. Empty input yields the same fixed-length set with zero
// values, never an error and never an empty slice.
func CalculateMetrics(prs []PullRequest, now time.Time) []metrics.Metric {
	basedOn := fmt.Sprintf("Based on %d pull requests", len(prs))

	return []metrics.Metric{
		{
			ID:             "github-code-pull-request-count",
			Category:       "Code",
			Name:           "Pull Request Count",
			Value:          float64(len(prs)),
			Unit:           "pull requests",
			AdditionalInfo: basedOn,
			Source:         metrics.SourceGitHub,
			Timestamp:      now,
		},
		{
			ID:             "github-code-average-cycle-time",
			Category:       "Code",
			Name:           "Average Cycle Time",
			Value:          averageCycleTimeHours(prs),
			Unit:           "hours",
			AdditionalInfo: fmt.Sprintf("Based on %d merged pull requests", mergedCount(prs)),
			Source:         metrics.SourceGitHub,
			Timestamp:      now,
		},
		{
			ID:             "github-code-average-pr-size",
			Category:       "Code",
			Name:           "Average PR Size",
			Value:          averageSize(prs),
			Unit:           "lines changed",
			AdditionalInfo: basedOn,
			Source:         metrics.SourceGitHub,
			Timestamp:      now,
		},
	}
}

// averageCycleTimeHours averages merged-at minus created-at over merged pull
// requests only, rounded to the nearest whole hour. Unmerged PRs are
// excluded from both numerator and denominator, not treated as zero.
func averageCycleTimeHours(prs []PullRequest) float64 {
	var totalHours float64
	merged := 0
	for _, pr := range prs {
		if !pr.Merged() {
			continue
		}
		totalHours += pr.MergedAt.Sub(pr.CreatedAt).Hours()
		merged++
	}
	if merged == 0 {
		return 0
	}
	return math.Round(totalHours / float64(merged))
}

// averageSize averages additions+deletions per pull request, rounded to the
// nearest integer.
func averageSize(prs []PullRequest) float64 {
	if len(prs) == 0 {
		return 0
	}
	total := 0
	for _, pr := range prs {
		total += pr.Additions + pr.Deletions
	}
	return math.Round(float64(total) / float64(len(prs)))
}

func mergedCount(prs []PullRequest) int {
	n := 0
	for _, pr := range prs {
		if pr.Merged() {
			n++
		}
	}
	return n
}
