package config

import "github.com/spf13/viper"

// Default endpoint URLs for the two sources. Overridable in config for tests
// and enterprise installs.
const (
	DefaultGitHubAPIURL = "https://api.github.com/graphql"
	DefaultSheetsAPIURL = "https://sheets.googleapis.com"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8780)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("server.heartbeat_seconds", 15)
	v.SetDefault("server.stream_timeout_seconds", 120)
	v.SetDefault("server.shutdown_timeout_seconds", 10)
	v.SetDefault("server.log_stream_buffer", 64)
	v.SetDefault("server.json_logs", false)

	// Database defaults
	v.SetDefault("database.path", "teamtempo.db")

	// Cache defaults
	v.SetDefault("cache.ttl_seconds", 3600) // 1 hour

	// Source defaults
	v.SetDefault("sources.time_period_days", 90)
	v.SetDefault("sources.fetch_timeout_seconds", 300) // 5 minute pagination ceiling
	v.SetDefault("sources.page_size", 100)
	v.SetDefault("sources.requests_per_second", 5)

	// GitHub defaults
	v.SetDefault("github.api_url", DefaultGitHubAPIURL)

	// Sheets defaults
	v.SetDefault("sheets.sheet_name", "Responses")
	v.SetDefault("sheets.api_url", DefaultSheetsAPIURL)
}
