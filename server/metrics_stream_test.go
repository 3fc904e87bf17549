package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tempohq/teamtempo/config"
	"github.com/tempohq/teamtempo/errors"
	"github.com/tempohq/teamtempo/metrics"
)

type stubRepo struct {
	name    string
	result  *metrics.FetchResult
	err     error
	calls   int
	onFetch func(ctx context.Context, progress metrics.ProgressFunc)
}

func (s *stubRepo) Name() string { return s.name }

func (s *stubRepo) Fetch(ctx context.Context, timePeriodDays int, progress metrics.ProgressFunc) (*metrics.FetchResult, error) {
	s.calls++
	if s.onFetch != nil {
		s.onFetch(ctx, progress)
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func healthyRepo(name string, total float64) *stubRepo {
	return &stubRepo{
		name: name,
		result: &metrics.FetchResult{
			Metrics: []metrics.Metric{
				{ID: strings.ToLower(name) + "-count", Source: name, Value: 5, Timestamp: time.Now()},
			},
			TotalAvailable: total,
			FetchedCount:   5,
			TimePeriodDays: 90,
		},
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:                   8780,
			AllowedOrigins:         []string{"http://localhost:5173"},
			HeartbeatSeconds:       3600,
			StreamTimeoutSeconds:   3600,
			ShutdownTimeoutSeconds: 1,
		},
		Sources: config.SourcesConfig{TimePeriodDays: 90},
	}
}

func newTestServer(sheets, github metrics.SourceRepository) *Server {
	return New(Options{
		Config:     testConfig(),
		SheetsRepo: sheets,
		GitHubRepo: github,
		Logger:     zap.NewNop().Sugar(),
	})
}

// sseEvent is one parsed frame from the response body
type sseEvent struct {
	name string
	data string
}

func parseSSE(t *testing.T, body string) []sseEvent {
	t.Helper()
	var events []sseEvent
	for _, frame := range strings.Split(body, "\n\n") {
		var ev sseEvent
		for _, line := range strings.Split(frame, "\n") {
			if after, ok := strings.CutPrefix(line, "event: "); ok {
				ev.name = after
			}
			if after, ok := strings.CutPrefix(line, "data: "); ok {
				ev.data = after
			}
		}
		if ev.name != "" {
			events = append(events, ev)
		}
	}
	return events
}

func terminalEvents(events []sseEvent) []sseEvent {
	var out []sseEvent
	for _, ev := range events {
		if ev.name == "result" || ev.name == "error" {
			out = append(out, ev)
		}
	}
	return out
}

func streamRequest(target string) (*httptest.ResponseRecorder, *http.Request) {
	return httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, target, nil)
}

func TestStreamSuccessEmitsExactlyOneResult(t *testing.T) {
	s := newTestServer(healthyRepo(metrics.SourceSheets, metrics.UnknownTotal), healthyRepo(metrics.SourceGitHub, 5))

	rec, req := streamRequest("/api/metrics/stream?timePeriod=30")
	s.HandleMetricsStream(rec, req)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	events := parseSSE(t, rec.Body.String())
	terminals := terminalEvents(events)
	require.Len(t, terminals, 1, "exactly one terminal event per request")
	assert.Equal(t, "result", terminals[0].name)

	var payload resultPayload
	require.NoError(t, json.Unmarshal([]byte(terminals[0].data), &payload))
	assert.True(t, payload.Success)
	assert.Equal(t, http.StatusOK, payload.Status)
	assert.Len(t, payload.Data, 2)
	assert.Empty(t, payload.Errors)
	assert.Equal(t, 5, payload.SourceStats.TotalItems)

	// Terminal event is last on the wire
	assert.Equal(t, "result", events[len(events)-1].name)
}

func TestStreamProgressMonotonic(t *testing.T) {
	sheets := healthyRepo(metrics.SourceSheets, metrics.UnknownTotal)
	sheets.onFetch = func(_ context.Context, progress metrics.ProgressFunc) {
		progress(10, metrics.UnknownTotal, "Fetched 10 survey responses")
		progress(20, metrics.UnknownTotal, "Fetched 20 survey responses")
	}
	github := healthyRepo(metrics.SourceGitHub, 100)
	github.onFetch = func(_ context.Context, progress metrics.ProgressFunc) {
		progress(50, 100, "Fetched 50 of 100 pull requests")
		progress(100, 100, "Fetched 100 of 100 pull requests")
		progress(120, 100, "Fetched 120 of 100 pull requests") // upstream raced past its own total
	}
	s := newTestServer(sheets, github)

	rec, req := streamRequest("/api/metrics/stream")
	s.HandleMetricsStream(rec, req)

	last := -1
	seen := 0
	for _, ev := range parseSSE(t, rec.Body.String()) {
		if ev.name != "progress" {
			continue
		}
		var p progressPayload
		require.NoError(t, json.Unmarshal([]byte(ev.data), &p))
		assert.GreaterOrEqual(t, p.Progress, last, "progress went backwards")
		assert.LessOrEqual(t, p.Progress, 100)
		last = p.Progress
		seen++
	}
	assert.Greater(t, seen, 3)
	assert.Equal(t, 100, last)
}

func TestStreamPartialFailureIs207(t *testing.T) {
	sheets := &stubRepo{
		name: metrics.SourceSheets,
		err:  errors.Wrapf(errors.ErrSourceFetch, "Google Sheets: API returned 403"),
	}
	s := newTestServer(sheets, healthyRepo(metrics.SourceGitHub, 5))

	rec, req := streamRequest("/api/metrics/stream")
	s.HandleMetricsStream(rec, req)

	terminals := terminalEvents(parseSSE(t, rec.Body.String()))
	require.Len(t, terminals, 1)
	require.Equal(t, "result", terminals[0].name)

	var payload resultPayload
	require.NoError(t, json.Unmarshal([]byte(terminals[0].data), &payload))
	assert.True(t, payload.Success)
	assert.Equal(t, http.StatusMultiStatus, payload.Status)
	assert.Len(t, payload.Data, 1)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, metrics.SourceSheets, payload.Errors[0].Source)
}

func TestStreamBothSourcesFailedStill207(t *testing.T) {
	sheets := &stubRepo{name: metrics.SourceSheets, err: errors.WithStack(errors.ErrSourceFetch)}
	github := &stubRepo{name: metrics.SourceGitHub, err: errors.WithStack(errors.ErrSourceFetch)}
	s := newTestServer(sheets, github)

	rec, req := streamRequest("/api/metrics/stream")
	s.HandleMetricsStream(rec, req)

	terminals := terminalEvents(parseSSE(t, rec.Body.String()))
	require.Len(t, terminals, 1)

	var payload resultPayload
	require.NoError(t, json.Unmarshal([]byte(terminals[0].data), &payload))
	assert.True(t, payload.Success)
	assert.Equal(t, http.StatusMultiStatus, payload.Status)
	assert.NotNil(t, payload.Data)
	assert.Empty(t, payload.Data)
	assert.Len(t, payload.Errors, 2)
}

func TestStreamUnexpectedErrorIsTerminal500(t *testing.T) {
	sheets := &stubRepo{name: metrics.SourceSheets, err: errors.New("nil map write")}
	s := newTestServer(sheets, healthyRepo(metrics.SourceGitHub, 5))

	rec, req := streamRequest("/api/metrics/stream")
	s.HandleMetricsStream(rec, req)

	terminals := terminalEvents(parseSSE(t, rec.Body.String()))
	require.Len(t, terminals, 1)
	require.Equal(t, "error", terminals[0].name)

	var payload errorPayload
	require.NoError(t, json.Unmarshal([]byte(terminals[0].data), &payload))
	assert.False(t, payload.Success)
	assert.Equal(t, http.StatusInternalServerError, payload.Status)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "Aggregator", payload.Errors[0].Source)
	assert.Equal(t, "Internal server error", payload.Errors[0].Message,
		"internal details must not leak to clients")
}

func TestStreamClientDisconnectCancelsAndSuppressesWrites(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sheets := healthyRepo(metrics.SourceSheets, metrics.UnknownTotal)
	sheets.onFetch = func(_ context.Context, _ metrics.ProgressFunc) {
		cancel()
		// Give the disconnect watcher time to fire before the fetch returns
		time.Sleep(50 * time.Millisecond)
	}
	github := healthyRepo(metrics.SourceGitHub, 5)
	s := newTestServer(sheets, github)

	rec, req := streamRequest("/api/metrics/stream")
	s.HandleMetricsStream(rec, req.WithContext(ctx))

	assert.Zero(t, github.calls, "cancellation checkpoint runs before the second source")
	assert.Empty(t, terminalEvents(parseSSE(t, rec.Body.String())),
		"no terminal event may be written after the client is gone")
}

func TestStreamCeilingCancelsAggregation(t *testing.T) {
	cfg := testConfig()
	cfg.Server.StreamTimeoutSeconds = 1

	sheets := healthyRepo(metrics.SourceSheets, metrics.UnknownTotal)
	sheets.onFetch = func(ctx context.Context, _ metrics.ProgressFunc) {
		<-ctx.Done()
	}
	github := healthyRepo(metrics.SourceGitHub, 5)
	s := New(Options{
		Config:     cfg,
		SheetsRepo: sheets,
		GitHubRepo: github,
		Logger:     zap.NewNop().Sugar(),
	})

	rec, req := streamRequest("/api/metrics/stream")
	start := time.Now()
	s.HandleMetricsStream(rec, req)
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 3*time.Second, "handler must return once the stream ceiling fires")
	assert.Zero(t, github.calls, "second source must not be fetched after timeout")

	terminals := terminalEvents(parseSSE(t, rec.Body.String()))
	require.Len(t, terminals, 1)
	assert.Equal(t, "error", terminals[0].name)
	assert.Contains(t, terminals[0].data, "Operation timed out")
}

func TestStreamInvalidTimePeriod(t *testing.T) {
	s := newTestServer(healthyRepo(metrics.SourceSheets, metrics.UnknownTotal), healthyRepo(metrics.SourceGitHub, 5))

	for _, target := range []string{
		"/api/metrics/stream?timePeriod=abc",
		"/api/metrics/stream?timePeriod=0",
		"/api/metrics/stream?timePeriod=-5",
	} {
		rec, req := streamRequest(target)
		s.HandleMetricsStream(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Contains(t, rec.Body.String(), "timePeriod", target)
	}
}
