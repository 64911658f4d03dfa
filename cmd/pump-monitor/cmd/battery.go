package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/oshokin/pump-monitor/internal/domain/pump"
	"github.com/oshokin/pump-monitor/internal/service/monitor"
)

// newBatteryCommand builds the `battery` command group.
func newBatteryCommand() *cobra.Command {
	batteryCmd := &cobra.Command{
		Use:   "battery",
		Short: "Manage the persisted battery level.",
	}

	var level float64

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset the persisted battery level.",
		Long: `Writes a new battery level to the battery file from the configuration.

The monitor only ever drains the battery; this is the external reset after a recharge.
A running monitor reads the file on its next start, use POST /battery/reset to reset it live.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			return monitor.ResetBattery(ctx, configPath, level)
		},
	}

	resetCmd.Flags().Float64Var(&level, "level", pump.FullBattery, "battery level in percent")

	batteryCmd.AddCommand(resetCmd)

	return batteryCmd
}
