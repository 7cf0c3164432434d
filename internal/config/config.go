// Package config loads leaf's settings from config.yaml and LEAF_ environment
// variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Sync    SyncConfig    `mapstructure:"sync"`
	Reader  ReaderConfig  `mapstructure:"reader"`
	Seek    SeekConfig    `mapstructure:"seek"`
	State   StateConfig   `mapstructure:"state"`
	UI      UIConfig      `mapstructure:"ui"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// SyncConfig points at the remote progress API. An empty URL disables sync.
type SyncConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ReaderConfig controls pagination and restore.
type ReaderConfig struct {
	PageSize     int           `mapstructure:"page_size"`   // runes per page
	Granularity  int           `mapstructure:"granularity"` // runes per location
	RestoreDelay time.Duration `mapstructure:"restore_delay"`
}

// SeekConfig tunes drag-to-seek on the progress bar.
type SeekConfig struct {
	Threshold     float64       `mapstructure:"threshold"`
	Quiet         time.Duration `mapstructure:"quiet"`
	PreviewSettle time.Duration `mapstructure:"preview_settle"`
	ConfirmSettle time.Duration `mapstructure:"confirm_settle"`
}

// StateConfig locates local storage. An empty path uses XDG_STATE_HOME.
type StateConfig struct {
	Path string `mapstructure:"path"`
}

// UIConfig holds UI configuration
type UIConfig struct {
	Theme string `mapstructure:"theme"` // "dark" or "light"
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Sync: SyncConfig{
			Timeout: 5 * time.Second,
		},
		Reader: ReaderConfig{
			PageSize:     1500,
			Granularity:  1024,
			RestoreDelay: 500 * time.Millisecond,
		},
		Seek: SeekConfig{
			Threshold:     0.05,
			Quiet:         300 * time.Millisecond,
			PreviewSettle: 150 * time.Millisecond,
			ConfirmSettle: 500 * time.Millisecond,
		},
		UI: UIConfig{
			Theme: "dark",
		},
		Logging: LoggingConfig{
			File:  defaultLogPath(),
			Level: "INFO",
		},
	}
}

// defaultLogPath returns the default log file path for the current OS
func defaultLogPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "leaf", "leaf.log")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "leaf", "leaf.log")
	}
}

// defaultConfigPath returns the default config directory for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "leaf")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "leaf")
	}
}

// Load reads configuration from file and environment. An explicit path must exist;
// otherwise config.yaml is looked up in the config directory and ".", and a missing
// file means defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(defaultConfigPath())
		v.AddConfigPath(".")
	}

	// Environment variable overrides, e.g. LEAF_SYNC_URL
	v.SetEnvPrefix("LEAF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// bindDefaults registers every key so AutomaticEnv can override keys that are absent
// from the file.
func bindDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("sync.url", cfg.Sync.URL)
	v.SetDefault("sync.timeout", cfg.Sync.Timeout)
	v.SetDefault("reader.page_size", cfg.Reader.PageSize)
	v.SetDefault("reader.granularity", cfg.Reader.Granularity)
	v.SetDefault("reader.restore_delay", cfg.Reader.RestoreDelay)
	v.SetDefault("seek.threshold", cfg.Seek.Threshold)
	v.SetDefault("seek.quiet", cfg.Seek.Quiet)
	v.SetDefault("seek.preview_settle", cfg.Seek.PreviewSettle)
	v.SetDefault("seek.confirm_settle", cfg.Seek.ConfirmSettle)
	v.SetDefault("state.path", cfg.State.Path)
	v.SetDefault("ui.theme", cfg.UI.Theme)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.level", cfg.Logging.Level)
}

// Validate checks if the configuration is valid
func Validate(cfg *Config) error {
	if cfg.Reader.PageSize <= 0 {
		return fmt.Errorf("invalid page size: %d", cfg.Reader.PageSize)
	}
	if cfg.Reader.Granularity <= 0 {
		return fmt.Errorf("invalid granularity: %d", cfg.Reader.Granularity)
	}
	if cfg.Seek.Threshold < 0 || cfg.Seek.Threshold > 1 {
		return fmt.Errorf("invalid seek threshold: %v (must be within 0..1)", cfg.Seek.Threshold)
	}
	if cfg.Seek.PreviewSettle > cfg.Seek.ConfirmSettle {
		return fmt.Errorf("preview settle %v must not exceed confirm settle %v", cfg.Seek.PreviewSettle, cfg.Seek.ConfirmSettle)
	}
	if cfg.Sync.URL != "" && !strings.HasPrefix(cfg.Sync.URL, "http://") && !strings.HasPrefix(cfg.Sync.URL, "https://") {
		return fmt.Errorf("invalid sync url: %s", cfg.Sync.URL)
	}
	switch cfg.UI.Theme {
	case "dark", "light":
	default:
		return fmt.Errorf("invalid theme: %s (must be 'dark' or 'light')", cfg.UI.Theme)
	}
	return nil
}
