// internal/commands/show.go
package daemonbench

import (
	"github.com/spf13/cobra"
)

// showCmd represents the 'show' command group for displaying resources.
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Group commands for displaying harness settings",
}

func init() {
	rootCmd.AddCommand(showCmd)
}
