// Package main implements stagectl, a command-line client for the stagehand
// HTTP API.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	server  string
	timeout time.Duration
}

func (o *rootOptions) client() *client {
	return newClient(o.server, o.timeout)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "stagectl",
		Short: "CLI for the stagehand HTTP API",
		Long: `stagectl is a command-line interface for a running stagehand daemon.
It creates and drives sessions, starts lightning runs and lists catalogues.`,
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.server, "server", "http://localhost:8470", "stagehand server URL")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "request timeout")

	root.AddCommand(
		newHealthCmd(opts),
		newListCmd(opts, "workflows", "List workflow definitions", "/api/v1/workflows"),
		newListCmd(opts, "pathways", "List lightning pathways", "/api/v1/lightning/pathways"),
		newListCmd(opts, "modules", "List external modules and their mapped stages", "/api/v1/modules"),
		newSessionCmd(opts),
		newLightningCmd(opts),
	)
	return root
}

// printJSON writes data indented.
func printJSON(w io.Writer, data json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return fmt.Errorf("failed to format response: %w", err)
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}

// readInput returns the --input flag, or stdin when it is "-".
func readInput(cmd *cobra.Command, input string) (string, error) {
	if input != "-" {
		return input, nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read from stdin: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

// parseContext turns key=value pairs into a context map.
func parseContext(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid context %q: want key=value", p)
		}
		out[k] = v
	}
	return out, nil
}

func newHealthCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check stagehand server health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := opts.client().do(cmd.Context(), "GET", "/health", nil)
			if err != nil {
				return err
			}
			var health struct {
				Status           string `json:"status"`
				ActiveSessions   int    `json:"active_sessions"`
				RegisteredStages int    `json:"registered_stages"`
			}
			if err := json.Unmarshal(data, &health); err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Server Status: %s\n", health.Status)
			fmt.Fprintf(out, "Active Sessions: %d\n", health.ActiveSessions)
			fmt.Fprintf(out, "Registered Stages: %d\n", health.RegisteredStages)
			fmt.Fprintf(out, "Server URL: %s\n", opts.server)
			return nil
		},
	}
}

func newListCmd(opts *rootOptions, use, short, path string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := opts.client().do(cmd.Context(), "GET", path, nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), data)
		},
	}
}
