// Command teamtempo runs the team-health metrics backend: an SSE-streaming
// aggregation server over a GitHub repository and a survey spreadsheet.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tempohq/teamtempo/config"
	"github.com/tempohq/teamtempo/version"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "teamtempo",
	Short: "TeamTempo - team-health metrics aggregation backend",
	Long: `TeamTempo aggregates team-health metrics from GitHub pull requests
and survey responses in a Google Sheet, streaming aggregation progress to
dashboard clients over Server-Sent Events.

Available commands:
  serve    - Start the HTTP/SSE server
  fetch    - Run one aggregation in the terminal
  version  - Print build information

Examples:
  teamtempo serve                    # Serve on the configured port
  teamtempo fetch --days 30          # One-shot aggregation, last 30 days
  teamtempo version`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Get().String())
	},
}

// loadConfig loads from --config when given, otherwise walks the standard
// search path.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.Load()
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a teamtempo.toml config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
