package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hglynn/labclimate/internal/climate"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "labclimate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "broker: tcp://broker:1883\ncatalog: /etc/labclimate/catalog.yaml\n"))
	require.NoError(t, err)

	assert.Equal(t, DefaultClientIDPrefix, cfg.ClientIDPrefix)
	assert.Equal(t, DefaultTickInterval, cfg.TickInterval)
	assert.Equal(t, DefaultStalenessTimeout, cfg.StalenessTimeout)
	assert.Equal(t, climate.StaleHold, cfg.StalePolicy)
	assert.Equal(t, DefaultFeedbackGrace, cfg.FeedbackGrace)
	assert.Equal(t, DefaultCommandBuffer, cfg.CommandBuffer)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateRequiresBroker(t *testing.T) {
	err := Validate(&Config{CatalogPath: "cat.yaml"})
	assert.ErrorIs(t, err, errBrokerRequired)
}

func TestValidateRequiresCatalog(t *testing.T) {
	err := Validate(&Config{Broker: "tcp://broker:1883"})
	assert.ErrorIs(t, err, errCatalogRequired)
}

func TestValidateRejectsUnknownStalePolicy(t *testing.T) {
	cfg := &Config{
		Broker:      "tcp://broker:1883",
		CatalogPath: "cat.yaml",
		StalePolicy: "panic",
	}
	assert.Error(t, Validate(cfg))
}

func TestValidateKeepsExplicitValues(t *testing.T) {
	cfg := &Config{
		Broker:           "tcp://broker:1883",
		CatalogPath:      "cat.yaml",
		TickInterval:     time.Second,
		StalenessTimeout: 5 * time.Minute,
		StalePolicy:      climate.StaleForceOff,
		CommandBuffer:    8,
	}
	require.NoError(t, Validate(cfg))

	assert.Equal(t, time.Second, cfg.TickInterval)
	assert.Equal(t, 5*time.Minute, cfg.StalenessTimeout)
	assert.Equal(t, climate.StaleForceOff, cfg.StalePolicy)
	assert.Equal(t, 8, cfg.CommandBuffer)
}
