package version

import (
	"fmt"

	"github.com/spf13/cobra"
)

// AttachCobraVersionCommand attaches a `version` subcommand to the provided root command.
// It prints detailed build info, or only the version with --short.
func AttachCobraVersionCommand(root *cobra.Command) {
	var short bool

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information.",
		Long:  "Print version information including commit hash, build timestamp and Go toolchain. Build metadata is injected from Git at build time.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := Full()
			if short {
				out = Short()
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), out)
		},
	}

	versionCmd.Flags().BoolVar(&short, "short", false, "print only the version number")

	root.AddCommand(versionCmd)
}
