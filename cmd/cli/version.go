package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/thand-io/azurerm/internal/common"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	// No configuration is needed to print the version.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		version, gitCommit, ok := common.GetModuleBuildInfo()
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "Failed to get version information")
			return
		}

		fmt.Fprintf(cmd.OutOrStdout(), "azurerm %s", version)
		if gitCommit != "unknown" && len(gitCommit) > 0 {
			if len(gitCommit) > 8 {
				fmt.Fprintf(cmd.OutOrStdout(), " (git: %s)", gitCommit[:8])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), " (git: %s)", gitCommit)
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), " %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
