package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tempohq/teamtempo/errors"
	"github.com/tempohq/teamtempo/internal/httpclient"
	"github.com/tempohq/teamtempo/metrics"
)

// Survey sheet column layout: submitted_at, team, morale, workload, comment.
// Row 1 is the header, data starts at row 2.
const (
	firstDataRow = 2
	lastColumn   = "E"
)

// Client fetches survey responses from the Google Sheets values API in fixed
// row-window chunks.
//
// Sheets cannot report how many data rows exist without a separate metadata
// round trip, so progress totals use the UnknownTotal sentinel and
// pagination continues while chunks come back full.
type Client struct {
	http          *httpclient.SaferClient
	apiURL        string
	apiKey        string
	spreadsheetID string
	sheetName     string
	chunkRows     int
	fetchTimeout  time.Duration
	limiter       *rate.Limiter
	log           *zap.SugaredLogger
	timeNow       func() time.Time // injectable for testing
}

// ClientOptions configures a Client
type ClientOptions struct {
	APIURL            string
	APIKey            string
	SpreadsheetID     string
	SheetName         string
	ChunkRows         int
	FetchTimeout      time.Duration
	RequestsPerSecond int
	HTTPClient        *httpclient.SaferClient // override for tests
}

// NewClient creates a Google Sheets survey client
func NewClient(opts ClientOptions, log *zap.SugaredLogger) *Client {
	if opts.ChunkRows <= 0 {
		opts.ChunkRows = 500
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 5 * time.Minute
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 5
	}
	if opts.SheetName == "" {
		opts.SheetName = "Responses"
	}
	httpc := opts.HTTPClient
	if httpc == nil {
		httpc = httpclient.New(30 * time.Second)
	}

	return &Client{
		http:          httpc,
		apiURL:        opts.APIURL,
		apiKey:        opts.APIKey,
		spreadsheetID: opts.SpreadsheetID,
		sheetName:     opts.SheetName,
		chunkRows:     opts.ChunkRows,
		fetchTimeout:  opts.FetchTimeout,
		limiter:       rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.RequestsPerSecond),
		log:           log.With("source", metrics.SourceSheets),
		timeNow:       time.Now,
	}
}

// FetchResponses reads survey rows chunk by chunk and returns those
// submitted within the look-back window.
//
// Unlike the code host, sheet rows append oldest-first, so there is no
// early-exit optimization; the window filter applies after accumulation.
// Any upstream failure fails the whole call.
func (c *Client) FetchResponses(ctx context.Context, timePeriodDays int, progress metrics.ProgressFunc) ([]SurveyResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	windowStart := c.timeNow().AddDate(0, 0, -timePeriodDays)

	var all []SurveyResponse
	start := firstDataRow

	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, c.fetchFailed(err, timePeriodDays)
		}

		rows, err := c.fetchChunk(ctx, start, start+c.chunkRows-1)
		if err != nil {
			return nil, c.fetchFailed(err, timePeriodDays)
		}

		all = append(all, parseRows(rows, c.log)...)

		if progress != nil {
			progress(len(all), metrics.UnknownTotal,
				fmt.Sprintf("Fetched %d survey responses", len(all)))
		}

		// A short chunk means we ran off the end of the data
		if len(rows) < c.chunkRows {
			break
		}
		start += c.chunkRows
	}

	filtered := make([]SurveyResponse, 0, len(all))
	for _, r := range all {
		if !r.SubmittedAt.Before(windowStart) {
			filtered = append(filtered, r)
		}
	}

	c.log.Debugw("Survey fetch complete",
		"spreadsheet_id", c.spreadsheetID,
		"sheet", c.sheetName,
		"time_period_days", timePeriodDays,
		"fetched", len(all),
		"in_window", len(filtered),
	)

	return filtered, nil
}

func (c *Client) fetchFailed(err error, timePeriodDays int) error {
	c.log.Errorw("Survey fetch failed",
		"spreadsheet_id", c.spreadsheetID,
		"sheet", c.sheetName,
		"time_period_days", timePeriodDays,
		"error", err,
	)
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrapf(errors.ErrTimeout, "Sheets pagination exceeded %s", c.fetchTimeout)
	}
	if errors.Is(err, context.Canceled) {
		return errors.Wrap(errors.ErrOperationCancelled, "Sheets fetch cancelled")
	}
	return errors.Wrapf(errors.ErrSourceFetch, "Google Sheets: %v", err)
}

// fetchChunk reads one row window, e.g. Responses!A2:E501
func (c *Client) fetchChunk(ctx context.Context, startRow, endRow int) ([][]string, error) {
	rangeRef := fmt.Sprintf("%s!A%d:%s%d", c.sheetName, startRow, lastColumn, endRow)
	endpoint := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s?key=%s",
		c.apiURL,
		url.PathEscape(c.spreadsheetID),
		url.PathEscape(rangeRef),
		url.QueryEscape(c.apiKey),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Newf("Sheets API returned %d: %s", resp.StatusCode, payload)
	}

	var parsed valuesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.Wrap(err, "failed to decode values response")
	}

	return parsed.Values, nil
}

// parseRows converts raw cell rows into survey responses. Rows that cannot
// be parsed (blank lines, half-filled drafts) are skipped, not fatal: a
// shared spreadsheet always accumulates some junk.
func parseRows(rows [][]string, log *zap.SugaredLogger) []SurveyResponse {
	out := make([]SurveyResponse, 0, len(rows))
	for i, row := range rows {
		if len(row) < 4 {
			continue
		}

		submitted, err := parseTimestamp(row[0])
		if err != nil {
			log.Debugw("Skipping row with unparsable timestamp", "row_index", i, "value", row[0])
			continue
		}
		morale, err := strconv.ParseFloat(row[2], 64)
		if err != nil {
			log.Debugw("Skipping row with unparsable morale score", "row_index", i, "value", row[2])
			continue
		}
		workload, err := strconv.ParseFloat(row[3], 64)
		if err != nil {
			log.Debugw("Skipping row with unparsable workload score", "row_index", i, "value", row[3])
			continue
		}

		r := SurveyResponse{
			SubmittedAt: submitted,
			Team:        row[1],
			Morale:      morale,
			Workload:    workload,
		}
		if len(row) > 4 {
			r.Comment = row[4]
		}
		out = append(out, r)
	}
	return out
}

// parseTimestamp accepts the formats Google Forms writes into sheets
func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"1/2/2006 15:04:05",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Newf("unrecognized timestamp %q", s)
}
