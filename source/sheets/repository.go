package sheets

import (
	"context"

	"github.com/tempohq/teamtempo/metrics"
)

// Repository adapts the raw survey client to the aggregator's source
// contract.
type Repository struct {
	client *Client
}

// NewRepository creates a Sheets source repository around client
func NewRepository(client *Client) *Repository {
	return &Repository{client: client}
}

// Name implements metrics.SourceRepository
func (r *Repository) Name() string {
	return metrics.SourceSheets
}

// Fetch implements metrics.SourceRepository
func (r *Repository) Fetch(ctx context.Context, timePeriodDays int, progress metrics.ProgressFunc) (*metrics.FetchResult, error) {
	responses, err := r.client.FetchResponses(ctx, timePeriodDays, progress)
	if err != nil {
		return nil, err
	}

	return &metrics.FetchResult{
		Metrics:        CalculateMetrics(responses, r.client.timeNow()),
		TotalAvailable: metrics.UnknownTotal,
		FetchedCount:   len(responses),
		TimePeriodDays: timePeriodDays,
	}, nil
}
