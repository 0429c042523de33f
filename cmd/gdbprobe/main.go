// Command gdbprobe drives a GDB MCP server binary through the fixed
// diagnostic scenario and prints a per-stage summary.
//
// All narration goes to stderr; stdout stays clean.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/wagiedev/gdbprobe"
)

var (
	flagServer    string
	flagProgram   string
	flagConfig    string
	flagStabilize time.Duration
	flagVerbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "gdbprobe",
	Short: "Diagnostic probe for a GDB MCP server",
	Long: `gdbprobe launches a GDB MCP server binary, performs the initialize
handshake, starts a GDB session, extracts the session identifier from the
response text, and issues a dependent gdb_load call scoped by it.

The exit code is non-zero when any stage fails.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().StringVar(&flagServer, "server", "", "server executable path")
	rootCmd.Flags().StringVar(&flagProgram, "program", "", "program path for the gdb_load call")
	rootCmd.Flags().StringVarP(&flagConfig, "config", "c", "", "YAML config file")
	rootCmd.Flags().DurationVar(&flagStabilize, "stabilize", 0,
		"override the post-session stabilization delay")
	rootCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "narrate protocol traffic")
}

func run(cmd *cobra.Command, _ []string) error {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg := gdbprobe.DefaultConfig()

	if flagConfig != "" {
		loaded, err := gdbprobe.LoadConfig(flagConfig)
		if err != nil {
			return err
		}

		cfg = loaded
	}

	// Flags win over the config file.
	if flagServer != "" {
		cfg.ServerPath = flagServer
	}

	if flagProgram != "" {
		cfg.ProgramPath = flagProgram
	}

	if cmd.Flags().Changed("stabilize") {
		cfg.Timing.Stabilize = flagStabilize
	}

	probe := gdbprobe.New(
		gdbprobe.WithLogger(log),
		gdbprobe.WithConfig(cfg),
	)

	report, err := probe.Run(cmd.Context())
	if err != nil {
		return err
	}

	for _, outcome := range report.Outcomes {
		fmt.Fprintln(os.Stderr, outcome)
	}

	if report.Failed() {
		return fmt.Errorf("scenario failed")
	}

	log.Info("Scenario completed", "session_id", report.SessionID)

	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
