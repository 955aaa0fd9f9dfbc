// Package config loads emulator settings from a TOML file with sane
// defaults and watches it for live reloads.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the TOML config file name inside the config directory.
const FileName = "termina.toml"

// Config is the user-facing configuration.
type Config struct {
	Graphics      GraphicsConfig      `toml:"graphics"`
	Logging       LoggingConfig       `toml:"logging"`
	Notifications NotificationsConfig `toml:"notifications"`
	History       HistoryConfig       `toml:"history"`
	Debug         DebugConfig         `toml:"debug"`
}

// GraphicsConfig controls the image store.
type GraphicsConfig struct {
	// MaxBytesMB is the image byte budget per screen, in MiB. Zero
	// disables graphics entirely.
	MaxBytesMB int `toml:"max_bytes_mb"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	// Dir is the log directory; empty disables file logging.
	Dir string `toml:"dir"`

	// Level is "debug", "info", "warn" or "error".
	Level string `toml:"level"`

	// Format is "text" or "json".
	Format string `toml:"format"`

	MaxSizeMB  int `toml:"max_size_mb"`
	MaxBackups int `toml:"max_backups"`
	MaxAgeDays int `toml:"max_age_days"`
}

// NotificationsConfig rate-limits desktop notifications from OSC 9/777.
type NotificationsConfig struct {
	Enabled bool `toml:"enabled"`

	// PerMinute caps sustained notification throughput.
	PerMinute int `toml:"per_minute"`

	// Burst is how many may fire back to back.
	Burst int `toml:"burst"`
}

// HistoryConfig controls the title/directory history database.
type HistoryConfig struct {
	Enabled bool `toml:"enabled"`

	// Path overrides the database location. Empty means
	// <config dir>/history.db.
	Path string `toml:"path"`
}

// DebugConfig controls the debug event-stream server.
type DebugConfig struct {
	Enabled bool `toml:"enabled"`

	// ListenAddr must stay loopback; the stream carries terminal contents.
	ListenAddr string `toml:"listen_addr"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Graphics: GraphicsConfig{MaxBytesMB: 320},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Notifications: NotificationsConfig{
			Enabled:   true,
			PerMinute: 30,
			Burst:     3,
		},
		History: HistoryConfig{Enabled: true},
		Debug:   DebugConfig{ListenAddr: "127.0.0.1:7681"},
	}
}

// Dir returns the config directory, honoring XDG_CONFIG_HOME.
func Dir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "termina"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: home dir: %w", err)
	}
	return filepath.Join(home, ".config", "termina"), nil
}

// Load reads the config file at path, layering it over defaults. A missing
// file is not an error; the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		// Unknown keys are tolerated so older binaries can read newer
		// files, but they deserve a mention.
		return cfg, &UnknownKeysError{Path: path, Keys: undecoded}
	}
	return cfg, nil
}

// UnknownKeysError reports config keys this build does not understand. The
// returned Config is still usable.
type UnknownKeysError struct {
	Path string
	Keys []toml.Key
}

func (e *UnknownKeysError) Error() string {
	return fmt.Sprintf("config: %s has %d unknown key(s), first: %s", e.Path, len(e.Keys), e.Keys[0])
}

// GraphicsLimitBytes converts the MiB setting to bytes.
func (c *Config) GraphicsLimitBytes() uint64 {
	if c.Graphics.MaxBytesMB <= 0 {
		return 0
	}
	return uint64(c.Graphics.MaxBytesMB) << 20
}
