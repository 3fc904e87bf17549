// Package config loads TeamTempo configuration from TOML files and
// environment variables using Viper.
//
// Precedence (lowest to highest): defaults < /etc/teamtempo/config.toml <
// ~/.teamtempo/config.toml < ./teamtempo.toml < TEMPO_* environment
// variables.
//
// The loaded *Config is constructed once at process startup and passed
// explicitly to every component that needs it; there is no global mutable
// configuration state consumed at call sites.
package config

import "time"

// Config is the root TeamTempo configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Sources  SourcesConfig  `mapstructure:"sources"`
	GitHub   GitHubConfig   `mapstructure:"github"`
	Sheets   SheetsConfig   `mapstructure:"sheets"`
}

// ServerConfig configures the HTTP server and its SSE streaming behavior
type ServerConfig struct {
	Port                   int      `mapstructure:"port"`
	AllowedOrigins         []string `mapstructure:"allowed_origins"`
	HeartbeatSeconds       int      `mapstructure:"heartbeat_seconds"`        // SSE heartbeat interval (default: 15)
	StreamTimeoutSeconds   int      `mapstructure:"stream_timeout_seconds"`   // whole-request ceiling (default: 120)
	ShutdownTimeoutSeconds int      `mapstructure:"shutdown_timeout_seconds"` // graceful drain ceiling (default: 10)
	LogStreamBuffer        int      `mapstructure:"log_stream_buffer"`        // per-client log batch buffer (default: 64)
	JSONLogs               bool     `mapstructure:"json_logs"`
}

// DatabaseConfig configures the SQLite snapshot store
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// CacheConfig configures the source-result cache
type CacheConfig struct {
	TTLSeconds int `mapstructure:"ttl_seconds"` // source fetch cache TTL (default: 3600)
}

// SourcesConfig configures behavior shared by both source clients
type SourcesConfig struct {
	TimePeriodDays      int `mapstructure:"time_period_days"`      // default look-back window (default: 90)
	FetchTimeoutSeconds int `mapstructure:"fetch_timeout_seconds"` // per-source pagination ceiling (default: 300)
	PageSize            int `mapstructure:"page_size"`             // records per upstream page (default: 100)
	RequestsPerSecond   int `mapstructure:"requests_per_second"`   // upstream rate limit (default: 5)
}

// GitHubConfig configures the code-hosting source
type GitHubConfig struct {
	Token  string `mapstructure:"token"`
	Owner  string `mapstructure:"owner"`
	Repo   string `mapstructure:"repo"`
	APIURL string `mapstructure:"api_url"` // override for tests (default: https://api.github.com/graphql)
}

// SheetsConfig configures the spreadsheet source
type SheetsConfig struct {
	APIKey        string `mapstructure:"api_key"`
	SpreadsheetID string `mapstructure:"spreadsheet_id"`
	SheetName     string `mapstructure:"sheet_name"` // default: "Responses"
	APIURL        string `mapstructure:"api_url"`    // override for tests (default: https://sheets.googleapis.com)
}

// HeartbeatInterval returns the SSE heartbeat interval as a duration
func (c ServerConfig) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatSeconds) * time.Second
}

// StreamTimeout returns the whole-request streaming ceiling as a duration
func (c ServerConfig) StreamTimeout() time.Duration {
	return time.Duration(c.StreamTimeoutSeconds) * time.Second
}

// ShutdownTimeout returns the graceful drain ceiling as a duration
func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// TTL returns the cache TTL as a duration
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// FetchTimeout returns the per-source pagination ceiling as a duration
func (c SourcesConfig) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}
