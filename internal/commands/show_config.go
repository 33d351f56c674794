package daemonbench

import (
	"github.com/spf13/cobra"

	"github.com/mwiater/daemonbench/internal/appconfig"
)

var dumpConfig bool

// showConfigCmd implements the 'show config' command, which displays the current configuration settings.
var showConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show config settings",
	Long:  `Show config settings ensuring that the config file is loaded properly and overridden by flags and environment accordingly.`,
	Run: func(cmd *cobra.Command, args []string) {
		appconfig.ShowConfig(cmd.OutOrStdout(), GetConfig(), dumpConfig)
	},
}

func init() {
	showConfigCmd.Flags().BoolVar(&dumpConfig, "dump", false, "also print the raw merged config struct")
	showCmd.AddCommand(showConfigCmd)
}
