package config

import (
	"fmt"
	"time"

	"github.com/muurk/blescan/internal/discovery"
	"github.com/muurk/blescan/internal/logging"
	"github.com/muurk/blescan/internal/radio"
)

// CurrentVersion is the only schema version this build understands
const CurrentVersion = 1

// Config represents the entire user configuration file.
type Config struct {
	Version  int          `yaml:"version"`
	Scan     ScanConfig   `yaml:"scan"`
	Server   ServerConfig `yaml:"server"`
	LogLevel string       `yaml:"log_level,omitempty"` // debug, info, warn, error; empty keeps BLESCAN_LOG_LEVEL
}

// ScanConfig holds defaults for scan sessions.
type ScanConfig struct {
	DurationSeconds  int      `yaml:"duration_seconds"`   // Wall-clock bound per session
	Mode             string   `yaml:"mode"`               // event or poll
	StrictProperties bool     `yaml:"strict_properties"`  // Abort on unreadable peripheral properties
	Services         []string `yaml:"services,omitempty"` // Service UUID filter (full or 16-bit)
	EventBuffer      int      `yaml:"event_buffer"`       // Native adapter event queue length
}

// ServerConfig holds settings for `blescan serve`.
type ServerConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Advertise bool   `yaml:"advertise"` // Announce the service over mDNS
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Scan: ScanConfig{
			DurationSeconds: int(discovery.DefaultScanDuration / time.Second),
			Mode:            discovery.ModeEvent.String(),
			EventBuffer:     64,
		},
		Server: ServerConfig{
			Port:      8765,
			Advertise: true,
		},
	}
}

// Validate checks the configuration for values that could never work.
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return fmt.Errorf("unsupported config version: %d (expected %d)", c.Version, CurrentVersion)
	}
	if c.Scan.DurationSeconds <= 0 {
		return fmt.Errorf("scan.duration_seconds must be positive, got %d", c.Scan.DurationSeconds)
	}
	if _, err := discovery.ParseMode(c.Scan.Mode); err != nil {
		return fmt.Errorf("scan.mode: %w", err)
	}
	if _, err := radio.ParseFilter(c.Scan.Services); err != nil {
		return fmt.Errorf("scan.services: %w", err)
	}
	if c.Scan.EventBuffer < 0 {
		return fmt.Errorf("scan.event_buffer must not be negative, got %d", c.Scan.EventBuffer)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.LogLevel != "" {
		if _, err := logging.ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("log_level: %w", err)
		}
	}
	return nil
}

// Duration returns the scan bound as a time.Duration
func (s ScanConfig) Duration() time.Duration {
	return time.Duration(s.DurationSeconds) * time.Second
}

// SessionOptions converts the scan section into discovery session options.
// The config must have passed Validate.
func (s ScanConfig) SessionOptions() (discovery.SessionOptions, error) {
	mode, err := discovery.ParseMode(s.Mode)
	if err != nil {
		return discovery.SessionOptions{}, err
	}
	filter, err := radio.ParseFilter(s.Services)
	if err != nil {
		return discovery.SessionOptions{}, err
	}
	return discovery.SessionOptions{
		Duration:         s.Duration(),
		Mode:             mode,
		Filter:           filter,
		StrictProperties: s.StrictProperties,
	}, nil
}

// Addr returns the host:port listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
