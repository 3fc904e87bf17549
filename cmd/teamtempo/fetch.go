package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/tempohq/teamtempo/errors"
	"github.com/tempohq/teamtempo/logger"
	"github.com/tempohq/teamtempo/metrics"
)

var fetchDays int

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Run one aggregation in the terminal",
	Long: `Fetch metrics from both sources once and print them, without
starting the server. Useful for verifying credentials and config.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return errors.Wrap(err, "failed to load configuration")
		}
		if err := logger.Initialize(cfg.Server.JSONLogs); err != nil {
			return errors.Wrap(err, "failed to initialize logger")
		}
		defer logger.Cleanup()

		days := fetchDays
		if days <= 0 {
			days = cfg.Sources.TimePeriodDays
		}

		sheetsRepo, githubRepo := buildRepositories(cfg, logger.Logger)
		svc := metrics.NewService(sheetsRepo, githubRepo, nil, logger.Logger)

		// Ctrl-C cancels at the next aggregation checkpoint
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		go func() {
			<-ctx.Done()
			svc.CancelOperation()
		}()

		bar, _ := pterm.DefaultProgressbar.
			WithTotal(100).
			WithTitle(fmt.Sprintf("Aggregating last %d days", days)).
			Start()

		result, err := svc.GetAllMetrics(ctx, days, func(current int, total float64, message string) {
			bar.UpdateTitle(message)
			if current > bar.Current {
				bar.Add(current - bar.Current)
			}
		})
		bar.Stop()
		if err != nil {
			pterm.Error.Printf("Aggregation failed: %v\n", err)
			return err
		}

		printResult(result, days)
		return nil
	},
}

func init() {
	fetchCmd.Flags().IntVar(&fetchDays, "days", 0, "look-back window in days (default: configured time_period_days)")
}

func printResult(result *metrics.AggregationResult, days int) {
	rows := pterm.TableData{{"Source", "Metric", "Value", "Unit"}}
	for _, m := range result.Metrics {
		rows = append(rows, []string{m.Source, m.Name, fmt.Sprintf("%g", m.Value), m.Unit})
	}
	pterm.DefaultTable.WithHasHeader().WithData(rows).Render()

	for _, aggErr := range result.Errors {
		pterm.Warning.Printf("%s: %s\n", aggErr.Source, aggErr.Message)
	}

	stats := result.SourceStats
	pterm.Info.Printf("Fetched %d of %d pull requests over %d days\n",
		stats.FetchedItems, stats.TotalItems, days)
}
