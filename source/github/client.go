package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tempohq/teamtempo/errors"
	"github.com/tempohq/teamtempo/internal/httpclient"
	"github.com/tempohq/teamtempo/metrics"
)

const pullRequestQuery = `query($owner: String!, $name: String!, $first: Int!, $after: String) {
  repository(owner: $owner, name: $name) {
    pullRequests(first: $first, after: $after, orderBy: {field: CREATED_AT, direction: DESC}, states: [OPEN, CLOSED, MERGED]) {
      totalCount
      pageInfo { hasNextPage endCursor }
      nodes { number title state createdAt mergedAt additions deletions }
    }
  }
}`

// Client fetches pull requests from the GitHub GraphQL API with pagination,
// rate limiting, and a whole-call ceiling.
type Client struct {
	http         *httpclient.SaferClient
	apiURL       string
	token        string
	owner        string
	repo         string
	pageSize     int
	fetchTimeout time.Duration
	limiter      *rate.Limiter
	log          *zap.SugaredLogger
	timeNow      func() time.Time // injectable for testing
}

// ClientOptions configures a Client
type ClientOptions struct {
	APIURL            string
	Token             string
	Owner             string
	Repo              string
	PageSize          int
	FetchTimeout      time.Duration
	RequestsPerSecond int
	HTTPClient        *httpclient.SaferClient // override for tests
}

// NewClient creates a GitHub pull request client
func NewClient(opts ClientOptions, log *zap.SugaredLogger) *Client {
	if opts.PageSize <= 0 {
		opts.PageSize = 100
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 5 * time.Minute
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 5
	}
	httpc := opts.HTTPClient
	if httpc == nil {
		httpc = httpclient.New(30 * time.Second)
	}

	return &Client{
		http:         httpc,
		apiURL:       opts.APIURL,
		token:        opts.Token,
		owner:        opts.Owner,
		repo:         opts.Repo,
		pageSize:     opts.PageSize,
		fetchTimeout: opts.FetchTimeout,
		limiter:      rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.RequestsPerSecond),
		log:          log.With("source", metrics.SourceGitHub),
		timeNow:      time.Now,
	}
}

// FetchPullRequests pages through the repository's pull requests newest-first
// and returns those created within the look-back window.
//
// After each page, progress is invoked with the running fetched count and
// the upstream totalCount. Pagination stops when the upstream reports no
// more pages or when the oldest record of a page predates the window lower
// bound (records arrive newest-first, so nothing older can follow).
//
// Any upstream failure fails the whole call: record integrity across pages
// cannot be verified once an error occurs mid-pagination, so the caller
// degrades to a partial aggregation rather than trusting a partial page set.
func (c *Client) FetchPullRequests(ctx context.Context, timePeriodDays int, progress metrics.ProgressFunc) ([]PullRequest, int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	windowStart := c.timeNow().AddDate(0, 0, -timePeriodDays)

	var (
		all    []PullRequest
		cursor string
		total  int
	)

	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, 0, c.fetchFailed(err, timePeriodDays)
		}

		pg, err := c.fetchPage(ctx, cursor)
		if err != nil {
			return nil, 0, c.fetchFailed(err, timePeriodDays)
		}

		all = append(all, pg.PRs...)
		total = pg.TotalCount

		if progress != nil {
			progress(len(all), float64(total),
				fmt.Sprintf("Fetched %d of %d pull requests", len(all), total))
		}

		if !pg.HasNextPage || len(pg.PRs) == 0 {
			break
		}
		// Early exit: pages arrive newest-first, so once the oldest record
		// of a page predates the window there is nothing more to fetch
		oldest := pg.PRs[len(pg.PRs)-1]
		if oldest.CreatedAt.Before(windowStart) {
			break
		}
		cursor = pg.EndCursor
	}

	filtered := make([]PullRequest, 0, len(all))
	for _, pr := range all {
		if !pr.CreatedAt.Before(windowStart) {
			filtered = append(filtered, pr)
		}
	}

	c.log.Debugw("Pull request fetch complete",
		"owner", c.owner,
		"repo", c.repo,
		"time_period_days", timePeriodDays,
		"fetched", len(all),
		"in_window", len(filtered),
		"total_available", total,
	)

	return filtered, total, nil
}

// fetchFailed logs the failure with enough context to diagnose and wraps it
// as a source fetch error (or timeout, when the pagination ceiling fired).
func (c *Client) fetchFailed(err error, timePeriodDays int) error {
	c.log.Errorw("Pull request fetch failed",
		"owner", c.owner,
		"repo", c.repo,
		"time_period_days", timePeriodDays,
		"error", err,
	)
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrapf(errors.ErrTimeout, "GitHub pagination exceeded %s", c.fetchTimeout)
	}
	if errors.Is(err, context.Canceled) {
		return errors.Wrap(errors.ErrOperationCancelled, "GitHub fetch cancelled")
	}
	return errors.Wrapf(errors.ErrSourceFetch, "GitHub: %v", err)
}

// fetchPage executes one GraphQL query
func (c *Client) fetchPage(ctx context.Context, cursor string) (*page, error) {
	vars := map[string]any{
		"owner": c.owner,
		"name":  c.repo,
		"first": c.pageSize,
	}
	if cursor != "" {
		vars["after"] = cursor
	} else {
		vars["after"] = nil
	}

	body, err := json.Marshal(graphQLRequest{Query: pullRequestQuery, Variables: vars})
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal GraphQL request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Newf("GitHub API returned %d: %s", resp.StatusCode, payload)
	}

	var parsed graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.Wrap(err, "failed to decode GraphQL response")
	}
	if len(parsed.Errors) > 0 {
		return nil, errors.Newf("GraphQL error: %s", parsed.Errors[0].Message)
	}

	prs := parsed.Data.Repository.PullRequests
	return &page{
		PRs:         prs.Nodes,
		TotalCount:  prs.TotalCount,
		HasNextPage: prs.PageInfo.HasNextPage,
		EndCursor:   prs.PageInfo.EndCursor,
	}, nil
}
