package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jadhavgaurav/agentcore/internal/config"
	"github.com/jadhavgaurav/agentcore/internal/store"
)

func buildMigrateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create any missing tables the agent execution core needs",
		Long: `Create any missing tables (CREATE TABLE IF NOT EXISTS) against
database.url. This is a one-shot bootstrap, not a versioned migration
tool: it never alters an existing table and tracks no migration
history. Run it once against a fresh database before the first
"agentcore serve".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "agentcore.yaml", "Path to YAML configuration file")
	return cmd
}

func runMigrate(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("database.url is required to migrate")
	}

	pg, err := store.NewPostgresStore(cfg.Database.URL, store.PostgresConfig{
		MaxOpenConns:    cfg.Database.MaxConnections,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer pg.Close()

	if err := store.Bootstrap(ctx, pg.DB(), cfg.Memory.EmbeddingDim); err != nil {
		return fmt.Errorf("bootstrap schema: %w", err)
	}
	fmt.Println("schema bootstrap complete")
	return nil
}
