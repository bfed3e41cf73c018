package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"exifai/internal/config"
	"exifai/internal/infra/ai"
)

var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "List the configured AI services in failover order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := ai.FromConfig(cfg, logger)

		order := cfg.ServiceOrder
		if len(order) == 0 {
			order = config.DefaultOrder
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SERVICE\tMODEL\tSTATUS")
		for _, raw := range order {
			name := strings.ToLower(strings.TrimSpace(raw))
			s, ok := cfg.AIServices.Service(name)
			if !ok {
				fmt.Fprintf(w, "%s\t-\tunknown service\n", name)
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", name, s.Model, backendStatus(registry, name, s))
		}
		return w.Flush()
	},
}

func backendStatus(registry *ai.Registry, name string, s config.ServiceConfig) string {
	switch {
	case !s.Enabled:
		return "disabled"
	case !s.HasCredentials(name):
		return "missing credentials"
	}
	b := registry.Get(name)
	if b == nil {
		return "not registered"
	}
	if err := ai.Available(b); err != nil {
		return "unavailable: " + err.Error()
	}
	return "ready"
}

func init() {
	rootCmd.AddCommand(backendsCmd)
}
