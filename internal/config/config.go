// Package config loads, validates, and defaults the engine's immutable
// run configuration. All values are read once at engine start; live
// reconfiguration is not supported (see DESIGN.md for the rationale).
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds the engine's configuration for one run.
type Config struct {
	// WatchPaths lists the absolute directory roots to monitor.
	WatchPaths []string `toml:"watch_paths" json:"watch_paths"`

	// WindowSeconds is the age cutoff for the event window.
	WindowSeconds int `toml:"window_seconds" json:"window_seconds"`

	// CheckInterval is the number of seconds between scheduled evaluations.
	CheckInterval int `toml:"check_interval" json:"check_interval"`

	// ModifiedThreshold is the minimum distinct events in the window to
	// consider a wave.
	ModifiedThreshold int `toml:"modified_threshold" json:"modified_threshold"`

	// EntropyThreshold is the per-file entropy at/above which a file is
	// "high-entropy".
	EntropyThreshold float64 `toml:"entropy_threshold" json:"entropy_threshold"`

	// HighEntropyCount is the minimum high-entropy samples for the hard
	// wave verdict.
	HighEntropyCount int `toml:"high_entropy_count" json:"high_entropy_count"`

	// SampleEntropyCount bounds how many files are entropy-sampled per
	// evaluation.
	SampleEntropyCount int `toml:"sample_entropy_count" json:"sample_entropy_count"`

	// SampleBytes bounds how many leading bytes are read per sampled file.
	SampleBytes int `toml:"sample_bytes" json:"sample_bytes"`

	// DetectionScoreThreshold is the alternate OR-gated numeric trigger
	// (0-100).
	DetectionScoreThreshold float64 `toml:"detection_score_threshold" json:"detection_score_threshold"`

	// ProcessSuspicionScore is the minimum process score to flag/kill.
	ProcessSuspicionScore int `toml:"process_suspicion_score" json:"process_suspicion_score"`

	// QuarantineDir is the root directory for quarantine moves.
	QuarantineDir string `toml:"quarantine_dir" json:"quarantine_dir"`

	// AutoQuarantine controls whether a positive verdict triggers the
	// quarantine mover.
	AutoQuarantine bool `toml:"auto_quarantine" json:"auto_quarantine"`

	// LogsDir is the root directory for logs/events.jsonl,
	// logs/recovery_log.json, and logs/safeguards/.
	LogsDir string `toml:"logs_dir" json:"logs_dir"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `toml:"log_level" json:"log_level"`

	// LogFormat is "text" or "json".
	LogFormat string `toml:"log_format" json:"log_format"`

	// LogPath is the daemon's operational log file.
	LogPath string `toml:"log_path" json:"log_path"`

	// EventStorePath is the optional SQLite mirror database path. Empty
	// disables the mirror.
	EventStorePath string `toml:"event_store_path" json:"event_store_path"`

	// NotifyDBus enables the desktop-notification UI sink on Linux hosts.
	NotifyDBus bool `toml:"notify_dbus" json:"notify_dbus"`
}

// DefaultConfig returns a configuration with sensible defaults for a
// freshly installed host.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".ransomwatchd")

	return &Config{
		WatchPaths:              nil,
		WindowSeconds:           60,
		CheckInterval:           10,
		ModifiedThreshold:       20,
		EntropyThreshold:        7.0,
		HighEntropyCount:        5,
		SampleEntropyCount:      50,
		SampleBytes:             4096,
		DetectionScoreThreshold: 70,
		ProcessSuspicionScore:   50,
		QuarantineDir:           filepath.Join(base, "quarantine"),
		AutoQuarantine:          true,
		LogsDir:                 filepath.Join(base, "logs"),
		LogLevel:                "info",
		LogFormat:               "text",
		LogPath:                 filepath.Join(base, "logs", "ransomwatchd.log"),
		EventStorePath:          "",
		NotifyDBus:              false,
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".ransomwatchd", "config.toml")
}

// Load reads configuration from path, defaulting missing fields. If path
// does not exist, the defaults are returned unchanged; a missing config
// file is not a startup error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = ConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// EnsureDirectories creates every directory Config writes to.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.QuarantineDir,
		c.LogsDir,
		filepath.Dir(c.LogPath),
	}
	if c.EventStorePath != "" {
		dirs = append(dirs, filepath.Dir(c.EventStorePath))
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
	}
	return nil
}

// EventLogPath returns the path of the append-only structured event log.
func (c *Config) EventLogPath() string {
	return filepath.Join(c.LogsDir, "events.jsonl")
}

// RecoveryLogPath returns the path of the append-only recovery log.
func (c *Config) RecoveryLogPath() string {
	return filepath.Join(c.LogsDir, "recovery_log.json")
}
