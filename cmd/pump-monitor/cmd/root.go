package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/pump-monitor/internal/config"
	"github.com/oshokin/pump-monitor/internal/service/monitor"
	"github.com/oshokin/pump-monitor/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// logLevel overrides the configured log level.
	logLevel string
	// noConnect skips connecting to the pump on startup.
	noConnect bool

	// rootCmd represents the base command for monitoring the pump.
	rootCmd = &cobra.Command{
		Use:   "pump-monitor [port...]",
		Short: "Monitor and control an infusion pump over a serial link.",
		Long: `Connects to the infusion pump over a serial port, follows its telemetry and raises alarms.

Candidate ports are tried in order and the first one that opens is used.
Ports given as arguments replace the ones from the configuration file.
Flow rate, pump power, mode and alarms are printed to the console, exposed on the
HTTP API (snapshot, metrics, operator commands) and optionally published over MQTT.
Blood leakage and occlusion alarms latch until the pump is switched back to automatic mode.`,
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &monitor.Options{
				ConfigPath: configPath,
				Ports:      args,
				LogLevel:   logLevel,
				NoConnect:  noConnect,
			}

			return monitor.Run(ctx, options)
		},
	}
)

// Execute runs the pump-monitor CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Shared by every subcommand that reads settings.
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")

	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "log level override: debug, info, warn or error")
	rootCmd.Flags().BoolVar(&noConnect, "no-connect", false, "start without connecting to the pump")

	rootCmd.AddCommand(newBatteryCommand())
}
