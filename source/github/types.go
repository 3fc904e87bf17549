// Package github fetches pull requests from the GitHub GraphQL API and
// normalizes them into team-health metrics.
package github

import "time"

// PullRequest is the raw source record for one pull request. It never leaves
// this package except as input to the metric calculator.
type PullRequest struct {
	Number    int        `json:"number"`
	Title     string     `json:"title"`
	State     string     `json:"state"` // OPEN, CLOSED, MERGED
	CreatedAt time.Time  `json:"createdAt"`
	MergedAt  *time.Time `json:"mergedAt"`
	Additions int        `json:"additions"`
	Deletions int        `json:"deletions"`
}

// Merged reports whether the pull request reached its terminal completed
// state.
func (pr PullRequest) Merged() bool {
	return pr.MergedAt != nil
}

// graphQLRequest is the POST body for the GraphQL endpoint
type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// graphQLResponse mirrors the slice of the GraphQL schema we query
type graphQLResponse struct {
	Data struct {
		Repository struct {
			PullRequests struct {
				TotalCount int `json:"totalCount"`
				PageInfo   struct {
					HasNextPage bool   `json:"hasNextPage"`
					EndCursor   string `json:"endCursor"`
				} `json:"pageInfo"`
				Nodes []PullRequest `json:"nodes"`
			} `json:"pullRequests"`
		} `json:"repository"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// page is one pagination step's outcome
type page struct {
	PRs         []PullRequest
	TotalCount  int
	HasNextPage bool
	EndCursor   string
}
