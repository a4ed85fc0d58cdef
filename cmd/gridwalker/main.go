// Gridwalker is the robot grid simulator daemon.
//
// It serves the REST and GraphQL APIs, runs an interactive prompt when
// attached to a terminal, and dispatches any instruction given on the command
// line once at startup.
//
// Usage:
//
//	# Start with defaults (REST :8080, GraphQL :4000, prompt)
//	gridwalker
//
//	# Place the robot at boot, then serve
//	gridwalker c 1 1 E
//
//	# Replay a scenario file
//	gridwalker replay scenarios/loop.toml
//
// Configuration is read from ~/.config/gridwalker/config.yaml (or --config)
// and GRIDWALKER_* environment variables.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
	noPrompt   bool
	noGraphQL  bool
	noServer   bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "gridwalker [instruction...]",
		Short: "Robot grid simulator",
		Long: `gridwalker simulates a robot on a bounded grid.

Instructions:
  c x y o       place the robot at (x, y) facing o (N, E, S or W)
  m [LRF]...    turn left, turn right or step forward, up to 100 steps
  h             list commands

Any arguments are joined into one instruction and dispatched at startup.

Examples:
  # Serve with defaults
  gridwalker

  # Place at boot and serve without the prompt
  gridwalker --no-prompt c 1 1 E

  # Run one instruction and exit
  gridwalker --no-prompt --no-server m FFR`,
		// Without explicit Args, cobra rejects positional arguments on a
		// root command that has subcommands.
		Args:         cobra.ArbitraryArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts, args, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	// Instruction tokens such as "m" or "c" must not be parsed as flags
	// once the first positional argument is seen.
	cmd.Flags().SetInterspersed(false)
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ~/.config/gridwalker/config.yaml)")
	cmd.Flags().BoolVar(&opts.noPrompt, "no-prompt", false, "disable the interactive prompt")
	cmd.Flags().BoolVar(&opts.noGraphQL, "no-graphql", false, "disable the GraphQL endpoint")
	cmd.Flags().BoolVar(&opts.noServer, "no-server", false, "do not start the REST and GraphQL servers")

	cmd.AddCommand(newVersionCmd(), newReplayCmd(opts))
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "gridwalker by Fyrsmith Labs\n")
	fmt.Fprintf(w, "Version:    %s\n", version)
	fmt.Fprintf(w, "Commit:     %s\n", gitCommit)
	fmt.Fprintf(w, "Build Date: %s\n", buildDate)
}
