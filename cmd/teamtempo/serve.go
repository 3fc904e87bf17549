package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/tempohq/teamtempo/config"
	"github.com/tempohq/teamtempo/db"
	"github.com/tempohq/teamtempo/errors"
	"github.com/tempohq/teamtempo/logger"
	"github.com/tempohq/teamtempo/server"
	"github.com/tempohq/teamtempo/server/logstream"
	"github.com/tempohq/teamtempo/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP/SSE server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return errors.Wrap(err, "failed to load configuration")
		}
		return runServer(cfg)
	},
}

func runServer(cfg *config.Config) error {
	// The log hub must exist before the logger so its core can be teed in
	logHub := logstream.NewHub(cfg.Server.LogStreamBuffer, func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		for _, allowed := range cfg.Server.AllowedOrigins {
			if allowed == "*" || allowed == origin {
				return true
			}
		}
		return origin == ""
	})
	if err := logger.Initialize(cfg.Server.JSONLogs, logstream.NewCore(zapcore.InfoLevel, logHub)); err != nil {
		return errors.Wrap(err, "failed to initialize logger")
	}
	defer logger.Cleanup()
	log := logger.Logger

	database, err := db.Open(cfg.Database.Path, log)
	if err != nil {
		return err
	}
	defer database.Close()

	snapshotStore, err := store.New(database, log)
	if err != nil {
		return err
	}

	sheetsRepo, githubRepo := buildRepositories(cfg, log)

	srv := server.New(server.Options{
		Config:     cfg,
		SheetsRepo: sheetsRepo,
		GitHubRepo: githubRepo,
		Snapshots:  snapshotStore,
		Writer:     snapshotStore,
		LogHub:     logHub,
		Logger:     log,
	})

	watchedPath := configPath
	if watchedPath == "" {
		watchedPath = config.ProjectConfigPath()
	}
	if watchedPath != "" {
		watcher, err := config.NewWatcher(watchedPath)
		if err != nil {
			log.Warnw("Config watcher unavailable, hot reload disabled", "path", watchedPath, "error", err)
		} else {
			watcher.OnReload(func(updated *config.Config) error {
				log.Infow("Configuration file changed; restart to apply server settings",
					"time_period_days", updated.Sources.TimePeriodDays)
				return nil
			})
			watcher.Start()
			defer watcher.Stop()
		}
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Infow("Shutting down", "signal", sig.String())
		return srv.Stop(context.Background())
	}
}
