// Package server exposes the TeamTempo HTTP surface: the SSE metrics stream,
// snapshot and config endpoints, WebSocket log streaming, and Prometheus
// telemetry.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tempohq/teamtempo/config"
	"github.com/tempohq/teamtempo/errors"
	"github.com/tempohq/teamtempo/metrics"
	"github.com/tempohq/teamtempo/server/logstream"
	"github.com/tempohq/teamtempo/sse"
	"github.com/tempohq/teamtempo/store"
)

// SnapshotReader is the slice of the store the read endpoints need
type SnapshotReader interface {
	Latest(ctx context.Context) (*store.Snapshot, error)
	Recent(ctx context.Context, limit int) ([]store.Snapshot, error)
}

// Server is the TeamTempo HTTP server
type Server struct {
	cfg        *config.Config
	sheetsRepo metrics.SourceRepository
	githubRepo metrics.SourceRepository
	snapshots  SnapshotReader
	writer     metrics.SnapshotWriter
	broker     *sse.Broker
	logHub     *logstream.Hub
	telemetry  *telemetry
	logger     *zap.SugaredLogger
	httpServer *http.Server
}

// Options carries the server's collaborators, assembled at the composition
// root. Snapshots and Writer may be nil (persistence disabled); LogHub may
// be nil (no live log panel).
type Options struct {
	Config     *config.Config
	SheetsRepo metrics.SourceRepository
	GitHubRepo metrics.SourceRepository
	Snapshots  SnapshotReader
	Writer     metrics.SnapshotWriter
	LogHub     *logstream.Hub
	Logger     *zap.SugaredLogger
}

// New creates a Server
func New(opts Options) *Server {
	return &Server{
		cfg:        opts.Config,
		sheetsRepo: opts.SheetsRepo,
		githubRepo: opts.GitHubRepo,
		snapshots:  opts.Snapshots,
		writer:     opts.Writer,
		broker: sse.NewBroker(
			opts.Config.Server.HeartbeatInterval(),
			opts.Config.Server.StreamTimeout(),
			opts.Logger,
		),
		logHub:    opts.LogHub,
		telemetry: newTelemetry(),
		logger:    opts.Logger,
	}
}

// Start begins serving and blocks until the listener fails or Stop is called
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Server.Port)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.routes(),
		// No WriteTimeout: SSE streams stay open up to the stream ceiling,
		// which the broker enforces itself
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Infow("Server starting", "addr", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server failed")
	}
	return nil
}

// Stop drains in-flight requests within the configured shutdown ceiling,
// then disconnects log stream clients.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Server.ShutdownTimeout())
	defer cancel()

	s.logger.Infow("Server stopping", "timeout", s.cfg.Server.ShutdownTimeout())
	err := s.httpServer.Shutdown(ctx)
	if s.logHub != nil {
		s.logHub.Close()
	}
	if err != nil {
		return errors.Wrap(err, "graceful shutdown failed")
	}
	return nil
}
