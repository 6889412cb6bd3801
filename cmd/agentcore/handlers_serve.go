package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jadhavgaurav/agentcore/internal/config"
	"github.com/jadhavgaurav/agentcore/internal/confirmation"
	"github.com/jadhavgaurav/agentcore/internal/intent"
	"github.com/jadhavgaurav/agentcore/internal/memory"
	"github.com/jadhavgaurav/agentcore/internal/memory/embeddings"
	"github.com/jadhavgaurav/agentcore/internal/memory/embeddings/local"
	"github.com/jadhavgaurav/agentcore/internal/memory/embeddings/openai"
	"github.com/jadhavgaurav/agentcore/internal/observability"
	"github.com/jadhavgaurav/agentcore/internal/orchestrator"
	"github.com/jadhavgaurav/agentcore/internal/store"
	"github.com/jadhavgaurav/agentcore/internal/toolregistry"
	"github.com/jadhavgaurav/agentcore/internal/toolruntime"
	"github.com/jadhavgaurav/agentcore/internal/toolsbridge"
	"github.com/jadhavgaurav/agentcore/internal/transporthttp"
)

func runServe(ctx context.Context, configPath string, debug bool) error {
	level := "info"
	if debug {
		level = "debug"
	}
	logger := observability.NewLogger(observability.LogConfig{Level: level, Format: "json"})
	logger.Info(ctx, "starting agent execution core", "version", version, "commit", commit, "config", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger = observability.NewLogger(observability.LogConfig{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.AddSource,
	})
	observability.NewMetrics()

	if cfg.Observability.TracingEnabled {
		_, shutdownTracer := observability.NewTracer(observability.TraceConfig{
			ServiceName: "agentcore",
			Endpoint:    cfg.Observability.OTLPEndpoint,
		})
		defer shutdownTracer(context.Background())
	}

	db, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("build embedder: %w", err)
	}

	memoryMgr := memory.NewManager(db, embedder, memory.Config{
		GeneralMinScore:     cfg.Memory.GeneralMinScore,
		TurnContextMinScore: cfg.Memory.TurnContextMinScore,
		RetrieveTopK:        cfg.Memory.RetrieveTopK,
	})

	registry := toolregistry.New()
	workspace, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolve workspace: %w", err)
	}
	if err := toolsbridge.RegisterFileTools(registry, workspace); err != nil {
		return fmt.Errorf("register file tools: %w", err)
	}

	runtime := toolruntime.New(db, registry).WithTimeout(cfg.Session.ToolTimeout)
	// Runtime.New already builds its own confirmation.Manager over db; the
	// Orchestrator needs a second handle to the same store-backed state to
	// resolve pending confirmations ahead of planning.
	confirm := confirmation.New(db)

	parser, err := buildIntentParser(cfg)
	if err != nil {
		return fmt.Errorf("build intent parser: %w", err)
	}

	orch := orchestrator.New(orchestrator.Deps{
		Store:   db,
		Confirm: confirm,
		Memory:  memoryMgr,
		Parser:  parser,
		Catalog: fileToolsCatalog(),
		Runtime: runtime,
	})

	server := transporthttp.New(transporthttp.Config{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		Orchestrator: orch,
	})

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info(ctx, "agent execution core listening", "addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port))
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	logger.Info(ctx, "shutdown complete")
	return nil
}

func openStore(cfg *config.Config) (store.Store, error) {
	if cfg.Database.URL == "" {
		slog.Warn("database.url is empty, falling back to an in-memory store")
		return store.NewMemStore(), nil
	}
	return store.NewPostgresStore(cfg.Database.URL, store.PostgresConfig{
		MaxOpenConns:    cfg.Database.MaxConnections,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
}

func buildEmbedder(cfg *config.Config) (embeddings.Provider, error) {
	switch cfg.Memory.EmbeddingsProvider {
	case "openai":
		return openai.New(openai.Config{APIKey: os.Getenv("OPENAI_API_KEY")})
	default:
		return local.New(local.Config{Dimension: cfg.Memory.EmbeddingDim})
	}
}

func buildIntentParser(cfg *config.Config) (intent.Parser, error) {
	switch cfg.Intent.Provider {
	case "openai":
		return intent.NewOpenAIParser(intent.OpenAIConfig{
			APIKey: os.Getenv("OPENAI_API_KEY"),
			Model:  cfg.Intent.Model,
		})
	default:
		return intent.NewAnthropicParser(intent.AnthropicConfig{
			APIKey: os.Getenv("ANTHROPIC_API_KEY"),
			Model:  cfg.Intent.Model,
		})
	}
}

// fileToolsCatalog is the static intent catalog for the tools registered by
// toolsbridge.RegisterFileTools. A deployment wiring in more tools extends
// this catalog alongside its registrations.
func fileToolsCatalog() intent.Catalog {
	return intent.Catalog{
		"read_file": {
			Name:          "read_file",
			Description:   "read a file from the workspace",
			ToolName:      "read_file",
			RequiredSlots: []string{"path"},
			TargetEntity:  "file",
		},
		"write_file": {
			Name:          "write_file",
			Description:   "write content to a file in the workspace",
			ToolName:      "write_file",
			RequiredSlots: []string{"path", "content"},
			TargetEntity:  "file",
		},
	}
}
