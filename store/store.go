// Package store persists aggregation snapshots in SQLite. Document-style:
// the metric array, source errors, and stats are JSON payload columns; only
// the fields the read paths filter on get their own columns.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tempohq/teamtempo/errors"
	"github.com/tempohq/teamtempo/metrics"
)

const schema = `
CREATE TABLE IF NOT EXISTS metric_snapshots (
	id               TEXT PRIMARY KEY,
	created_at       TIMESTAMP NOT NULL,
	time_period_days INTEGER NOT NULL,
	source_stats     TEXT NOT NULL,
	metrics          TEXT NOT NULL,
	errors           TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_metric_snapshots_created_at
	ON metric_snapshots(created_at DESC);
`

// Snapshot is one persisted aggregation result
type Snapshot struct {
	ID             string                     `json:"id"`
	CreatedAt      time.Time                  `json:"createdAt"`
	TimePeriodDays int                        `json:"timePeriodDays"`
	SourceStats    metrics.SourceStats        `json:"sourceStats"`
	Metrics        []metrics.Metric           `json:"metrics"`
	Errors         []metrics.AggregationError `json:"errors"`
}

// Store reads and writes metric snapshots
type Store struct {
	db      *sql.DB
	log     *zap.SugaredLogger
	timeNow func() time.Time // injectable for testing
	newID   func() string
}

// New creates a Store and ensures the schema exists
func New(db *sql.DB, log *zap.SugaredLogger) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, errors.Wrap(err, "failed to create snapshot schema")
	}
	return &Store{
		db:      db,
		log:     log,
		timeNow: time.Now,
		newID:   func() string { return uuid.NewString() },
	}, nil
}

// SaveSnapshot implements metrics.SnapshotWriter
func (s *Store) SaveSnapshot(ctx context.Context, result *metrics.AggregationResult) error {
	statsJSON, err := json.Marshal(result.SourceStats)
	if err != nil {
		return errors.Wrap(err, "failed to marshal source stats")
	}
	metricsJSON, err := json.Marshal(result.Metrics)
	if err != nil {
		return errors.Wrap(err, "failed to marshal metrics")
	}
	errorsJSON, err := json.Marshal(orEmpty(result.Errors))
	if err != nil {
		return errors.Wrap(err, "failed to marshal errors")
	}

	id := s.newID()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO metric_snapshots (id, created_at, time_period_days, source_stats, metrics, errors)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id,
		s.timeNow().UTC(),
		result.SourceStats.TimePeriodDays,
		string(statsJSON),
		string(metricsJSON),
		string(errorsJSON),
	)
	if err != nil {
		return errors.Wrap(err, "failed to insert snapshot")
	}

	s.log.Debugw("Snapshot saved", "snapshot_id", id, "metrics", len(result.Metrics))
	return nil
}

// Latest returns the most recent snapshot, or ErrNotFound if none exist yet
func (s *Store) Latest(ctx context.Context) (*Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, time_period_days, source_stats, metrics, errors
		FROM metric_snapshots
		ORDER BY created_at DESC
		LIMIT 1`)

	snap, err := scanSnapshot(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrap(errors.ErrNotFound, "no snapshots recorded")
		}
		return nil, errors.Wrap(err, "failed to read latest snapshot")
	}
	return snap, nil
}

// Recent returns up to limit snapshots, newest first
func (s *Store) Recent(ctx context.Context, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, time_period_days, source_stats, metrics, errors
		FROM metric_snapshots
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list snapshots")
	}
	defer rows.Close()

	snapshots := make([]Snapshot, 0, limit)
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan snapshot row")
		}
		snapshots = append(snapshots, *snap)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate snapshots")
	}
	return snapshots, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (*Snapshot, error) {
	var (
		snap                               Snapshot
		statsJSON, metricsJSON, errorsJSON string
	)
	if err := row.Scan(&snap.ID, &snap.CreatedAt, &snap.TimePeriodDays,
		&statsJSON, &metricsJSON, &errorsJSON); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(statsJSON), &snap.SourceStats); err != nil {
		return nil, errors.Wrap(err, "corrupt source_stats payload")
	}
	if err := json.Unmarshal([]byte(metricsJSON), &snap.Metrics); err != nil {
		return nil, errors.Wrap(err, "corrupt metrics payload")
	}
	if err := json.Unmarshal([]byte(errorsJSON), &snap.Errors); err != nil {
		return nil, errors.Wrap(err, "corrupt errors payload")
	}
	return &snap, nil
}

// orEmpty keeps the stored errors column a JSON array, never "null"
func orEmpty(errs []metrics.AggregationError) []metrics.AggregationError {
	if errs == nil {
		return []metrics.AggregationError{}
	}
	return errs
}
