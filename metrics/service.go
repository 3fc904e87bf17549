package metrics

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/tempohq/teamtempo/errors"
)

// SnapshotWriter persists a finished aggregation. Implemented by the store
// package; nil disables persistence.
type SnapshotWriter interface {
	SaveSnapshot(ctx context.Context, result *AggregationResult) error
}

// Service orchestrates both source repositories, merges their metrics,
// tolerates partial failure, and reports blended progress.
//
// A Service is built per request: the cancellation flag is request-scoped.
// Source A (Sheets) owns the [0,50] progress half, source B (GitHub) owns
// [50,100]; sources run sequentially so blended progress never goes
// backwards.
type Service struct {
	sourceA   SourceRepository // Sheets
	sourceB   SourceRepository // GitHub; its counters feed SourceStats
	snapshots SnapshotWriter
	log       *zap.SugaredLogger
	cancelled atomic.Bool
}

// NewService creates an aggregator over the two sources
func NewService(sourceA, sourceB SourceRepository, snapshots SnapshotWriter, log *zap.SugaredLogger) *Service {
	return &Service{
		sourceA:   sourceA,
		sourceB:   sourceB,
		snapshots: snapshots,
		log:       log,
	}
}

// CancelOperation requests a cooperative abort. The flag is observed before
// each source fetch; an in-flight upstream call is not interrupted, so
// cancellation takes effect at the next checkpoint.
func (s *Service) CancelOperation() {
	s.cancelled.Store(true)
}

// GetAllMetrics fetches both sources, merges their metrics, and returns the
// blended result.
//
// A source fetch failure is recorded as an AggregationError and never aborts
// the other source; even both sources failing still returns a result (empty
// metrics, two errors). The call itself fails only on cancellation, a source
// pagination timeout, or an unexpected programming error.
func (s *Service) GetAllMetrics(ctx context.Context, timePeriodDays int, progress ProgressFunc) (*AggregationResult, error) {
	if err := s.checkCancelled(); err != nil {
		return nil, err
	}

	if progress != nil {
		progress(0, 100, "Starting metrics aggregation")
	}

	var (
		aggErrors []AggregationError
		stats     = SourceStats{TimePeriodDays: timePeriodDays}
		merged    []Metric
	)

	resultA, err := s.fetchSource(ctx, s.sourceA, timePeriodDays, progress, 0)
	if err != nil {
		if fatal := s.classify(err, s.sourceA.Name()); fatal != nil {
			return nil, fatal
		}
		aggErrors = append(aggErrors, AggregationError{
			Source:  s.sourceA.Name(),
			Message: err.Error(),
		})
	} else {
		merged = Merge(merged, resultA.Metrics)
	}

	if err := s.checkCancelled(); err != nil {
		return nil, err
	}

	resultB, err := s.fetchSource(ctx, s.sourceB, timePeriodDays, progress, 50)
	if err != nil {
		if fatal := s.classify(err, s.sourceB.Name()); fatal != nil {
			return nil, fatal
		}
		aggErrors = append(aggErrors, AggregationError{
			Source:  s.sourceB.Name(),
			Message: err.Error(),
		})
	} else {
		merged = Merge(merged, resultB.Metrics)
		stats.FetchedItems = resultB.FetchedCount
		if !math.IsInf(resultB.TotalAvailable, 1) {
			stats.TotalItems = int(resultB.TotalAvailable)
		}
	}

	if err := s.checkCancelled(); err != nil {
		return nil, err
	}

	if merged == nil {
		merged = []Metric{}
	}
	result := &AggregationResult{
		Metrics:     merged,
		Errors:      aggErrors,
		SourceStats: stats,
	}

	s.log.Infow("Aggregation complete",
		"time_period_days", timePeriodDays,
		"metrics", len(result.Metrics),
		"source_errors", len(result.Errors),
	)

	s.persist(ctx, result)

	return result, nil
}

// fetchSource runs one source with its progress callbacks rescaled into the
// aggregator's [base, base+50] half and its messages prefixed with the
// source name.
func (s *Service) fetchSource(ctx context.Context, repo SourceRepository, timePeriodDays int, progress ProgressFunc, base int) (*FetchResult, error) {
	var wrapped ProgressFunc
	if progress != nil {
		wrapped = func(fetched int, total float64, message string) {
			progress(base+scaleToHalf(fetched, total), 100,
				fmt.Sprintf("%s: %s", repo.Name(), message))
		}
	}

	result, err := repo.Fetch(ctx, timePeriodDays, wrapped)
	if err != nil {
		return nil, err
	}

	if progress != nil {
		progress(base+50, 100, fmt.Sprintf("%s: fetch complete", repo.Name()))
	}
	return result, nil
}

// scaleToHalf maps a source's own progress into [0,50]. An unknown total is
// indeterminate: report the start of the half rather than dividing by
// infinity (which would silently produce 0-by-coercion or NaN).
func scaleToHalf(fetched int, total float64) int {
	if math.IsInf(total, 1) || total <= 0 {
		return 0
	}
	pct := float64(fetched) / total
	if pct > 1 {
		pct = 1
	}
	return int(math.Round(pct * 50))
}

// classify decides whether a source failure is recoverable. Source fetch
// errors degrade to partial results; cancellation, pagination timeouts, and
// anything unexpected abort the whole call.
func (s *Service) classify(err error, sourceName string) error {
	switch {
	case errors.Is(err, errors.ErrSourceFetch):
		s.log.Warnw("Source failed, continuing with partial result",
			"source", sourceName,
			"error", err,
		)
		return nil
	case errors.Is(err, errors.ErrTimeout):
		return err
	case errors.Is(err, errors.ErrOperationCancelled):
		return err
	default:
		// Not a fetch failure: a bug. Propagate with full context.
		return errors.Wrapf(err, "unexpected error aggregating %s", sourceName)
	}
}

func (s *Service) checkCancelled() error {
	if s.cancelled.Load() {
		return errors.WithStack(errors.ErrOperationCancelled)
	}
	return nil
}

// persist saves the snapshot best-effort; a storage failure must never fail
// an aggregation that already succeeded.
func (s *Service) persist(ctx context.Context, result *AggregationResult) {
	if s.snapshots == nil || len(result.Metrics) == 0 {
		return
	}
	if err := s.snapshots.SaveSnapshot(ctx, result); err != nil {
		s.log.Errorw("Failed to persist metrics snapshot", "error", err)
	}
}
