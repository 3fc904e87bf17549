package server

import (
	"context"
	"math"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/tempohq/teamtempo/errors"
	"github.com/tempohq/teamtempo/metrics"
	"github.com/tempohq/teamtempo/sse"
)

// progressPayload is the body of each progress event
type progressPayload struct {
	Progress int    `json:"progress"`
	Message  string `json:"message"`
}

// resultPayload is the single terminal result event: 200 when both sources
// delivered, 207 when the result is partial.
type resultPayload struct {
	Success     bool                       `json:"success"`
	Data        []metrics.Metric           `json:"data"`
	Errors      []metrics.AggregationError `json:"errors"`
	SourceStats metrics.SourceStats        `json:"sourceStats"`
	Status      int                        `json:"status"`
}

// errorPayload is the single terminal error event
type errorPayload struct {
	Success bool                       `json:"success"`
	Errors  []metrics.AggregationError `json:"errors"`
	Status  int                        `json:"status"`
}

// HandleMetricsStream runs one aggregation and streams its progress over
// SSE: progress events while the sources paginate, heartbeats in between,
// then exactly one terminal result or error event before the stream closes.
//
// A client disconnect cancels the in-flight aggregation; the stream ceiling
// (broker timeout) emits the terminal timeout error and cancels the
// aggregation if it outruns the ceiling. Whichever terminal path runs first
// wins; the others become no-ops through the connection's closed state and
// the close guard here.
func (s *Server) HandleMetricsStream(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	timePeriodDays, err := s.parseTimePeriod(r)
	if err != nil {
		writeAppError(w, err)
		return
	}

	connID := uuid.NewString()
	conn, err := s.broker.Open(r.Context(), connID, w)
	if err != nil {
		s.logger.Errorw("Failed to open SSE connection", "connection_id", connID, "error", err)
		writeAppError(w, err)
		return
	}

	svc := metrics.NewService(s.sheetsRepo, s.githubRepo, s.writer, s.logger)
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	s.telemetry.activeStreams.Inc()
	var closeOnce sync.Once
	closeStream := func(outcome string) {
		closeOnce.Do(func() {
			svc.CancelOperation()
			cancel()
			s.broker.Close(connID)
			s.telemetry.activeStreams.Dec()
			s.telemetry.streamOutcomes.WithLabelValues(outcome).Inc()
		})
	}
	defer closeStream("completed")

	// The broker tears the connection down itself when the stream ceiling
	// fires; fold that into the same cancellation path so the in-flight
	// aggregation stops instead of running against a closed stream.
	go func() {
		select {
		case <-conn.Done():
			closeStream("timed_out")
		case <-ctx.Done():
		}
	}()

	conn.OnDisconnect(func() {
		s.logger.Infow("Client disconnected, cancelling aggregation", "connection_id", connID)
		closeStream("client_disconnected")
	})

	result, err := svc.GetAllMetrics(ctx, timePeriodDays, s.progressEmitter(conn))
	if err != nil {
		s.emitTerminalError(conn, connID, err)
		closeStream("failed")
		return
	}

	s.telemetry.aggregations.Inc()
	status := http.StatusOK
	for _, aggErr := range result.Errors {
		s.telemetry.sourceFailures.WithLabelValues(aggErr.Source).Inc()
		status = http.StatusMultiStatus
	}

	if err := conn.Emit(sse.EventResult, resultPayload{
		Success:     true,
		Data:        result.Metrics,
		Errors:      orEmptyErrors(result.Errors),
		SourceStats: result.SourceStats,
		Status:      status,
	}); err != nil {
		s.logger.Warnw("Failed to emit result event", "connection_id", connID, "error", err)
	}
	closeStream("completed")
}

// progressEmitter converts aggregator progress into clamped, monotonically
// non-decreasing progress events. An unknown total keeps the last percentage
// instead of dividing by infinity.
func (s *Server) progressEmitter(conn *sse.Connection) metrics.ProgressFunc {
	last := 0
	return func(current int, total float64, message string) {
		pct := last
		if !math.IsInf(total, 1) && total > 0 {
			pct = int(math.Round(float64(current) / total * 100))
		}
		if pct > 100 {
			pct = 100
		}
		if pct < last {
			pct = last
		}
		last = pct

		if err := conn.Emit(sse.EventProgress, progressPayload{Progress: pct, Message: message}); err != nil {
			s.logger.Warnw("Failed to emit progress event", "connection_id", conn.ID(), "error", err)
		}
	}
}

// emitTerminalError frames an aggregation failure as the terminal error
// event. Recognized application errors carry their own message and status;
// anything else is a 500 with a generic message.
func (s *Server) emitTerminalError(conn *sse.Connection, connID string, err error) {
	status := errors.HTTPStatus(err)
	message := err.Error()
	if !errors.IsApplicationError(err) {
		s.logger.Errorw("Aggregation failed unexpectedly", "connection_id", connID, "error", err)
		message = "Internal server error"
	}

	if emitErr := conn.Emit(sse.EventError, errorPayload{
		Success: false,
		Errors:  []metrics.AggregationError{{Source: "Aggregator", Message: message}},
		Status:  status,
	}); emitErr != nil {
		s.logger.Warnw("Failed to emit error event", "connection_id", connID, "error", emitErr)
	}
}

func orEmptyErrors(errs []metrics.AggregationError) []metrics.AggregationError {
	if errs == nil {
		return []metrics.AggregationError{}
	}
	return errs
}
