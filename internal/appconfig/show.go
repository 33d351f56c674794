package appconfig

import (
	"fmt"
	"io"
	"strings"

	"github.com/k0kubun/pp"
)

// ShowConfig prints the effective configuration with defaults applied. With
// dump set it also pretty-prints the raw merged struct.
func ShowConfig(out io.Writer, cfg *Config, dump bool) {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.ConfigPath == "" {
		fmt.Fprintln(out, "No config file loaded (using defaults).")
	} else {
		fmt.Fprintf(out, "Config file: %s\n\n", cfg.ConfigPath)
	}

	binary := cfg.Binary
	if strings.TrimSpace(binary) == "" {
		binary = "(probe default candidates)"
	}
	targetConfig := cfg.TargetConfig
	if strings.TrimSpace(targetConfig) == "" {
		targetConfig = "(target default)"
	}

	fmt.Fprintln(out, "Current configuration:")
	fmt.Fprintf(out, "  Binary:          %s\n", binary)
	fmt.Fprintf(out, "  Target Config:   %s\n", targetConfig)
	fmt.Fprintf(out, "  Target Env:      %s\n", strings.Join(cfg.TargetEnvironment(), " "))
	if queries, err := cfg.QueryList(); err != nil {
		fmt.Fprintf(out, "  Queries:         error: %v\n", err)
	} else {
		fmt.Fprintf(out, "  Queries:         %s\n", strings.Join(queries, " | "))
	}
	fmt.Fprintf(out, "  Iterations:      %d\n", cfg.IterationCount())
	fmt.Fprintf(out, "  Query Timeout:   %s\n", cfg.QueryTimeout())
	fmt.Fprintf(out, "  Command Timeout: %s\n", cfg.CommandTimeoutDuration())
	fmt.Fprintf(out, "  Pause:           %s\n", cfg.PauseDuration())
	fmt.Fprintf(out, "  Start Settle:    %s\n", cfg.StartSettleDuration())
	fmt.Fprintf(out, "  Stop Settle:     %s\n", cfg.StopSettleDuration())
	fmt.Fprintf(out, "  Ordering:        %s\n", valueOr(cfg.Ordering, "iteration-major"))
	fmt.Fprintf(out, "  Phase Order:     %s\n", valueOr(cfg.PhaseOrder, "daemon-first"))
	fmt.Fprintf(out, "  Output Dir:      %s\n", cfg.OutputDirectory())
	if cfg.Textfile != "" {
		fmt.Fprintf(out, "  Textfile:        %s\n", cfg.Textfile)
	}
	fmt.Fprintf(out, "  Log File:        %s\n", cfg.LogFilePath())
	fmt.Fprintf(out, "  Debug:           %v\n", cfg.Debug)
	fmt.Fprintf(out, "  TUI:             %v\n", cfg.TUI)
	fmt.Fprintf(out, "  JSON:            %v\n", cfg.JSON)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(out, "\nInvalid configuration: %v\n", err)
	}

	if dump {
		fmt.Fprintln(out)
		pp.Fprintln(out, *cfg)
	}
}

func valueOr(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
