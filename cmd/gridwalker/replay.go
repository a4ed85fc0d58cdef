package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/gridwalker/internal/audit"
	"github.com/fyrsmithlabs/gridwalker/internal/config"
	"github.com/fyrsmithlabs/gridwalker/internal/dispatch"
	"github.com/fyrsmithlabs/gridwalker/internal/scenario"
)

// replayCloseTimeout bounds flushing the audit store after a replay.
const replayCloseTimeout = 5 * time.Second

type replayOptions struct {
	audit bool
}

func newReplayCmd(root *rootOptions) *cobra.Command {
	opts := &replayOptions{}

	cmd := &cobra.Command{
		Use:   "replay <scenario.toml>...",
		Short: "Replay scenario files and check their results",
		Long: `Replay runs each scenario on a fresh grid of the scenario's size and
compares every result line with the expected lines.

With --audit, invocations are recorded to the configured audit sinks.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd.Context(), root, opts, args, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&opts.audit, "audit", false, "record replayed instructions to the configured audit sinks")
	return cmd
}

func runReplay(ctx context.Context, root *rootOptions, opts *replayOptions, paths []string, out io.Writer) error {
	var (
		log      dispatch.AuditLog
		dispOpts []dispatch.Option
	)
	if opts.audit {
		cfg, err := config.LoadWithFile(root.configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		a, err := newApp(ctx, cfg, io.Discard)
		if err != nil {
			return err
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), replayCloseTimeout)
			defer cancel()
			a.Close(closeCtx)
		}()
		log = a.recorder
		dispOpts = append(dispOpts, dispatch.WithLogger(a.logger))
	}

	failed := 0
	for _, path := range paths {
		s, err := scenario.Load(path)
		if err != nil {
			return err
		}
		rep, err := s.Replay(ctx, log, dispOpts...)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		name := rep.Name
		if name == "" {
			name = path
		}
		if rep.Passed {
			fmt.Fprintf(out, "PASS %s (%d steps)\n", name, len(rep.Steps))
			continue
		}
		failed++
		fmt.Fprintf(out, "FAIL %s\n", name)
		for _, f := range rep.Failures() {
			fmt.Fprintf(out, "  %s\n", f)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d scenarios failed", failed, len(paths))
	}
	return nil
}

// Ensure the recorder satisfies the dispatcher's audit contract.
var _ dispatch.AuditLog = (*audit.Recorder)(nil)
