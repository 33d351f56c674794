package daemonbench

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mwiater/daemonbench/internal/target"
)

// locateCmd prints the target binary a run would use.
var locateCmd = &cobra.Command{
	Use:          "locate",
	Short:        "Resolve the aka binary the benchmark would run",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		binary, err := target.Locate(cmd.Context(), newExecutor(cfg.TargetEnvironment()), cfg.Binary, cfg.CommandTimeoutDuration())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), binary)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(locateCmd)
}
