// Package config loads the daemon's runtime settings. The catalog of labs
// and devices lives in its own file (see internal/catalog); this covers the
// environment-level parameters: broker, intervals, policies, listen
// addresses.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hglynn/labclimate/internal/climate"
)

// Config holds the runtime parameters for one controller process.
type Config struct {
	// Broker is the MQTT broker URL (e.g. tcp://host:1883). Required.
	Broker string `yaml:"broker"`
	// ClientIDPrefix is the MQTT client id prefix; a random suffix is
	// appended so restarts don't steal the old session.
	ClientIDPrefix string `yaml:"client_id_prefix"`
	// CatalogPath points at the labs/devices/thresholds file. Required.
	CatalogPath string `yaml:"catalog"`
	// TickInterval is how often the control loop evaluates every actuator.
	TickInterval time.Duration `yaml:"tick_interval"`
	// StalenessTimeout is the reading age beyond which data is ignored.
	StalenessTimeout time.Duration `yaml:"staleness_timeout"`
	// StalePolicy is what the rule engine does on stale data.
	StalePolicy climate.StalePolicy `yaml:"stale_policy"`
	// FeedbackGrace is how long commanded and observed state may disagree
	// before the command is re-sent.
	FeedbackGrace time.Duration `yaml:"feedback_grace"`
	// CommandBuffer is how many commands to hold while the broker is down.
	CommandBuffer int `yaml:"command_buffer"`
	// HTTPAddr is the snapshot/metrics listen address; empty disables.
	HTTPAddr string `yaml:"http_addr"`
	// HeartbeatInterval is the system heartbeat period; 0 disables.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

const (
	// DefaultConfigFilename is used when no -c flag is given.
	DefaultConfigFilename = "labclimate.yaml"

	DefaultClientIDPrefix    = "labclimated"
	DefaultTickInterval      = 5 * time.Second
	DefaultStalenessTimeout  = 60 * time.Second
	DefaultFeedbackGrace     = 30 * time.Second
	DefaultCommandBuffer     = 64
	DefaultHeartbeatInterval = 15 * time.Minute
	DefaultHTTPAddr          = ":8080"
	DefaultLogLevel          = "info"
)

var (
	errBrokerRequired  = errors.New("broker URL must be provided")
	errCatalogRequired = errors.New("catalog path must be provided")
)

// Load reads configuration from the provided path and validates it,
// filling in defaults for everything optional.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks required fields and applies defaults in place.
func Validate(cfg *Config) error {
	if cfg.Broker == "" {
		return errBrokerRequired
	}
	if _, err := url.Parse(cfg.Broker); err != nil {
		return fmt.Errorf("invalid broker URL: %w", err)
	}
	if cfg.CatalogPath == "" {
		return errCatalogRequired
	}

	if cfg.ClientIDPrefix == "" {
		cfg.ClientIDPrefix = DefaultClientIDPrefix
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.StalenessTimeout <= 0 {
		cfg.StalenessTimeout = DefaultStalenessTimeout
	}
	if cfg.StalePolicy == "" {
		cfg.StalePolicy = climate.StaleHold
	}
	if !climate.KnownStalePolicy(cfg.StalePolicy) {
		return fmt.Errorf("unknown stale_policy %q", cfg.StalePolicy)
	}
	if cfg.FeedbackGrace <= 0 {
		cfg.FeedbackGrace = DefaultFeedbackGrace
	}
	if cfg.CommandBuffer <= 0 {
		cfg.CommandBuffer = DefaultCommandBuffer
	}
	if cfg.HeartbeatInterval < 0 {
		cfg.HeartbeatInterval = 0
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}

	return nil
}
