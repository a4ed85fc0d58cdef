// Package main implements the gwctl CLI for driving a running gridwalker
// daemon over its REST API.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	httpapi "github.com/fyrsmithlabs/gridwalker/internal/http"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type options struct {
	serverURL  string
	timeout    time.Duration
	outputJSON bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "gwctl",
		Short: "CLI for gridwalker server operations",
		Long: `gwctl is a command-line interface for a running gridwalker daemon.
It sends instructions and reads the robot position and audit history.`,
		Version:      version,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.serverURL, "server", "http://localhost:8080", "gridwalker server URL")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "request timeout")
	cmd.PersistentFlags().BoolVar(&opts.outputJSON, "json", false, "output raw JSON")

	cmd.AddCommand(
		newRunCmd(opts),
		newRobotCmd(opts),
		newHistoryCmd(opts),
		newHealthCmd(opts),
	)
	return cmd
}

func newRunCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <instruction...>",
		Short: "Send an instruction to the simulator",
		Long: `Send one instruction. Arguments are joined with spaces.

Examples:
  # Place the robot
  gwctl run c 1 1 E

  # Move it
  gwctl run m FFRF`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp httpapi.CommandResponse
			req := httpapi.CommandRequest{Instruction: strings.Join(args, " ")}
			if err := newClient(opts).do(cmd.Context(), http.MethodPost, "/api/v1/commands", req, &resp); err != nil {
				return err
			}
			if opts.outputJSON {
				return writeJSON(cmd.OutOrStdout(), resp)
			}
			for _, line := range resp.Results {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
	// Negative coordinates such as "c -1 0 N" are instruction tokens, not flags.
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func newRobotCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "robot",
		Short: "Show the robot position and grid size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp httpapi.RobotResponse
			if err := newClient(opts).do(cmd.Context(), http.MethodGet, "/api/v1/robot", nil, &resp); err != nil {
				return err
			}
			if opts.outputJSON {
				return writeJSON(cmd.OutOrStdout(), resp)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Position: %d %d %s\n", resp.X, resp.Y, resp.Heading)
			fmt.Fprintf(cmd.OutOrStdout(), "Grid:     %dx%d\n", resp.Width, resp.Height)
			return nil
		},
	}
}

func newHistoryCmd(opts *options) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded invocations, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := "/api/v1/invocations"
			if limit > 0 {
				path += "?limit=" + strconv.Itoa(limit)
			}
			var resp httpapi.InvocationsResponse
			if err := newClient(opts).do(cmd.Context(), http.MethodGet, path, nil, &resp); err != nil {
				return err
			}
			if opts.outputJSON {
				return writeJSON(cmd.OutOrStdout(), resp)
			}

			out := cmd.OutOrStdout()
			if len(resp.Invocations) == 0 {
				fmt.Fprintln(out, "No invocations recorded")
				return nil
			}
			for _, inv := range resp.Invocations {
				fmt.Fprintf(out, "%s  %-5s %-12q %s\n",
					inv.CreatedAt.Local().Format(time.DateTime), inv.Type, inv.Instruction, inv.ID)
				for _, st := range inv.Steps {
					fmt.Fprintf(out, "    step    %s\n", st.Result)
				}
				if inv.Outcome != nil {
					fmt.Fprintf(out, "    outcome %s\n", inv.Outcome.Result)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum invocations to list (server default when 0)")
	return cmd
}

func newHealthCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check gridwalker server health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp httpapi.HealthResponse
			if err := newClient(opts).do(cmd.Context(), http.MethodGet, "/health", nil, &resp); err != nil {
				return err
			}
			if opts.outputJSON {
				return writeJSON(cmd.OutOrStdout(), resp)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Server Status: %s\n", resp.Status)
			if resp.Version != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Version: %s\n", resp.Version)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Server URL: %s\n", opts.serverURL)
			return nil
		},
	}
}

type client struct {
	baseURL string
	http    *http.Client
}

func newClient(opts *options) *client {
	return &client{
		baseURL: strings.TrimSuffix(opts.serverURL, "/"),
		http:    &http.Client{Timeout: opts.timeout},
	}
}

// do sends body as JSON when non-nil and decodes a 200 response into out.
func (c *client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	target := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
