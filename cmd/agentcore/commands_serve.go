package main

import (
	"github.com/spf13/cobra"
)

func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the agent execution core's dev/test HTTP server",
		Long: `Start the agent execution core.

The server will:
1. Load configuration from the specified file
2. Open the Postgres system of record (or an in-memory store when unset)
3. Build the Memory Store's embedding provider, the Tool Registry, Policy
   Engine, Confirmation Manager, Guards, Tool Runtime, Intent Parser, and
   Orchestrator
4. Serve POST /v1/turns, GET /healthz, and GET /metrics until a shutdown
   signal arrives`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "agentcore.yaml", "Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}
