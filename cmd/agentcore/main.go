// Package main provides the CLI entry point for the agent execution core:
// the Session & Message State, Orchestrator, Tool Runtime, Policy Engine
// and Confirmation state machine, and Long-Term Memory Store wired
// together into a runnable service.
//
// # Basic usage
//
// Bootstrap a fresh database's tables:
//
//	agentcore migrate --config agentcore.yaml
//
// Start the dev/test server:
//
//	agentcore serve --config agentcore.yaml
//
// Send one turn against a running server:
//
//	agentcore message --session s1 --user u1 --text "list my files"
//
// # Environment variables
//
//   - DATABASE_URL: Postgres connection string (system of record)
//   - EMBEDDINGS_PROVIDER: "openai" or "local"
//   - OPENAI_API_KEY: required when EMBEDDINGS_PROVIDER=openai
//   - ANTHROPIC_API_KEY: required for the Anthropic intent parser
//   - POLICY_MODE: "strict" shortens the confirmation TTL
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "agentcore",
		Short:        "Agent execution core: sessions, orchestration, tools, policy, memory",
		Version:      fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage: true,
	}
	rootCmd.AddCommand(buildServeCmd(), buildMessageCmd(), buildMigrateCmd())
	return rootCmd
}
