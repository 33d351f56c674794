// internal/commands/root.go
package daemonbench

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mwiater/daemonbench/internal/appconfig"
	"github.com/mwiater/daemonbench/internal/logging"
	"github.com/mwiater/daemonbench/internal/process"
)

var (
	cfgFile       string
	currentConfig *appconfig.Config
	appVersion    = "dev"
	appCommit     = "none"
	appDate       = "unknown"

	// newExecutor builds the process driver used by every command; env is
	// overlaid on the inherited environment of each target invocation.
	newExecutor = func(env []string) process.Executor { return process.NewDriver(env) }
)

// errInterrupted marks a run stopped by a signal or by the user.
var errInterrupted = errors.New("interrupted")

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "daemonbench",
	Short: "daemonbench: compare daemon mode against direct invocation of the aka CLI",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := appconfig.Load(viper.GetViper(), cfgFile)
		if err != nil {
			return err
		}
		currentConfig = &cfg

		logging.SetDebug(cfg.Debug)
		if err := logging.Init(currentConfig.LogFilePath()); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", appVersion, appCommit, appDate)

	err := rootCmd.Execute()
	_ = logging.Close()
	os.Exit(exitCode(err))
}

// exitCode maps a command error to the process exit status: 130 for an
// interrupted run, 1 for any other failure.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errInterrupted):
		return 130
	default:
		return 1
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", appconfig.DefaultConfigPath, "harness config file (JSON or YAML)")

	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().String("logFile", "", "path to the log file")
	rootCmd.PersistentFlags().String("binary", "", "path to the aka binary (defaults probe ./target/release/aka, ./target/debug/aka, aka)")
	rootCmd.PersistentFlags().String("target-config", "", "config file passed to aka queries with -c")

	rootCmd.PersistentFlags().StringArray("target-env", nil, "KEY=VALUE set for every aka invocation (repeatable; default AKA_BENCHMARK=1 RUST_LOG=info)")

	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("logFile", rootCmd.PersistentFlags().Lookup("logFile"))
	_ = viper.BindPFlag("binary", rootCmd.PersistentFlags().Lookup("binary"))
	_ = viper.BindPFlag("targetConfig", rootCmd.PersistentFlags().Lookup("target-config"))
	_ = viper.BindPFlag("targetEnv", rootCmd.PersistentFlags().Lookup("target-env"))
}

// GetConfig returns the loaded configuration for other packages.
func GetConfig() *appconfig.Config {
	if currentConfig == nil {
		return &appconfig.Config{}
	}
	return currentConfig
}

// SetVersionInfo allows the main package to inject build-time variables.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}
