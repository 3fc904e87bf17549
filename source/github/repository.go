package github

import (
	"context"

	"github.com/tempohq/teamtempo/metrics"
)

// Repository adapts the raw pull request client to the aggregator's source
// contract: fetch, normalize through the calculator, report counters.
type Repository struct {
	client *Client
}

// NewRepository creates a GitHub source repository around client
func NewRepository(client *Client) *Repository {
	return &Repository{client: client}
}

// Name implements metrics.SourceRepository
func (r *Repository) Name() string {
	return metrics.SourceGitHub
}

// Fetch implements metrics.SourceRepository
func (r *Repository) Fetch(ctx context.Context, timePeriodDays int, progress metrics.ProgressFunc) (*metrics.FetchResult, error) {
	prs, total, err := r.client.FetchPullRequests(ctx, timePeriodDays, progress)
	if err != nil {
		return nil, err
	}

	return &metrics.FetchResult{
		Metrics:        CalculateMetrics(prs, r.client.timeNow()),
		TotalAvailable: float64(total),
		FetchedCount:   len(prs),
		TimePeriodDays: timePeriodDays,
	}, nil
}
