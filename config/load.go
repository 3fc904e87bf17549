package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/tempohq/teamtempo/errors"
)

// Load reads the TeamTempo configuration from the standard locations
func Load() (*Config, error) {
	v := newViper()
	mergeConfigFiles(v)
	return unmarshal(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
	}

	return unmarshal(v)
}

// LoadWithViper loads configuration using a provided Viper instance (tests)
func LoadWithViper(v *viper.Viper) (*Config, error) {
	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &cfg, nil
}

// newViper initializes Viper with env binding and defaults
func newViper() *viper.Viper {
	v := viper.New()

	v.SetEnvPrefix("TEMPO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Sensitive values should come from the environment, never land in a
	// project-level config file that might be committed.
	v.BindEnv("github.token", "TEMPO_GITHUB_TOKEN")
	v.BindEnv("sheets.api_key", "TEMPO_SHEETS_API_KEY")

	SetDefaults(v)
	return v
}

// ProjectConfigPath returns the project-level config file path if one exists,
// searching upward from the working directory.
func ProjectConfigPath() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		p := filepath.Join(dir, "teamtempo.toml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// mergeConfigFiles merges configuration files in precedence order
// (lowest to highest): system < user < project. Env vars override all files.
func mergeConfigFiles(v *viper.Viper) {
	homeDir, _ := os.UserHomeDir()

	paths := []string{
		"/etc/teamtempo/config.toml",
		filepath.Join(homeDir, ".teamtempo", "config.toml"),
	}
	if p := ProjectConfigPath(); p != "" {
		paths = append(paths, p)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		layer := viper.New()
		layer.SetConfigFile(path)
		layer.SetConfigType("toml")
		if err := layer.ReadInConfig(); err != nil {
			continue
		}
		// Merge at viper's config level: later layers override earlier
		// ones, env vars still outrank every file.
		if err := v.MergeConfigMap(layer.AllSettings()); err != nil {
			continue
		}
	}
}
