package daemonbench

import (
	"github.com/spf13/cobra"

	"github.com/mwiater/daemonbench/internal/report"
)

// reportCmd re-renders the text report of a saved export.
var reportCmd = &cobra.Command{
	Use:          "report FILE",
	Short:        "Print the report of a saved benchmark_results.json",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		run, err := report.LoadExport(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		return report.RenderText(out, run, report.RenderOptions{Color: isTerminal(out)})
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
}
