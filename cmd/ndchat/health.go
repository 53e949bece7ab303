package main

import (
	"fmt"
	"io"
	"maps"
	"slices"

	ndhttp "github.com/fwojciec/ndchat/http"
	"github.com/spf13/cobra"
)

func newHealthCmd(f *flags, getenv func(string) string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show the server's health report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd, f, getenv)
			if err != nil {
				return err
			}
			client := ndhttp.New(cfg.URL,
				ndhttp.WithHTTPClient(newHTTPClient(cfg.Timeout)),
				ndhttp.WithHealthPath(cfg.HealthPath),
			)
			h, err := client.Health(cmd.Context())
			if err != nil {
				return err
			}
			printHealth(cmd.OutOrStdout(), cfg.URL, h)
			if !h.OK() {
				return fmt.Errorf("server reports status %q", h.Status)
			}
			return nil
		},
	}
}

func printHealth(w io.Writer, url string, h ndhttp.Health) {
	fmt.Fprintf(w, "server:      %s\n", url)
	fmt.Fprintf(w, "status:      %s\n", h.Status)
	if h.Message != "" {
		fmt.Fprintf(w, "message:     %s\n", h.Message)
	}
	if h.OpenAIClient != "" {
		fmt.Fprintf(w, "model api:   %s\n", h.OpenAIClient)
	}
	if h.MCPServerURL != "" {
		fmt.Fprintf(w, "tool server: %s\n", h.MCPServerURL)
	}
	for _, k := range slices.Sorted(maps.Keys(h.Environment)) {
		fmt.Fprintf(w, "env %s: %s\n", k, h.Environment[k])
	}
}
