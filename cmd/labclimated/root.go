package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hglynn/labclimate/internal/config"
)

var (
	// configPath to the runtime settings YAML file.
	configPath string
	// brokerOverride replaces the configured broker URL when set.
	brokerOverride string
	// httpOverride replaces the configured HTTP listen address when set.
	httpOverride string

	rootCmd = &cobra.Command{
		Use:   "labclimated",
		Short: "Run the lab climate controller.",
		Long: `Starts the climate control daemon.

Sensor readings and actuator feedback arrive over MQTT; the controller
evaluates hysteresis rules per actuator on a fixed tick and publishes
commands on state changes. A snapshot of all live state is served over HTTP
for the aggregation service, alongside Prometheus metrics.

SIGHUP reloads the device catalog without dropping live state.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if brokerOverride != "" {
				cfg.Broker = brokerOverride
			}
			if httpOverride != "" {
				cfg.HTTPAddr = httpOverride
			}

			return run(ctx, cfg)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&brokerOverride, "broker", "b", "", "MQTT broker URL (overrides config)")
	rootCmd.Flags().StringVar(&httpOverride, "http", "", "HTTP listen address (overrides config)")
}
