package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, "database:\n  url: postgres://localhost/agentcore\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Memory.GeneralMinScore != 0.70 {
		t.Errorf("expected general min score 0.70, got %v", cfg.Memory.GeneralMinScore)
	}
	if cfg.Memory.TurnContextMinScore != 0.65 {
		t.Errorf("expected turn-context min score 0.65, got %v", cfg.Memory.TurnContextMinScore)
	}
	if cfg.Guards.MaxCallsPerMinute != 10 {
		t.Errorf("expected default max calls per minute 10, got %d", cfg.Guards.MaxCallsPerMinute)
	}
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("AGENTCORE_TEST_DB_URL", "postgres://env/agentcore")
	path := writeTempConfig(t, "database:\n  url: ${AGENTCORE_TEST_DB_URL}\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Database.URL != "postgres://env/agentcore" {
		t.Errorf("expected env-expanded URL, got %q", cfg.Database.URL)
	}
}

func TestLoadEnvOverrideTakesPrecedence(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://override/agentcore")
	path := writeTempConfig(t, "database:\n  url: postgres://file/agentcore\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Database.URL != "postgres://override/agentcore" {
		t.Errorf("expected DATABASE_URL override, got %q", cfg.Database.URL)
	}
}

func TestLoadRejectsMissingDatabaseURL(t *testing.T) {
	path := writeTempConfig(t, "server:\n  port: 9090\n")

	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for missing database.url")
	}
}

func TestLoadRejectsInvalidMemoryBackend(t *testing.T) {
	path := writeTempConfig(t, "database:\n  url: postgres://localhost/agentcore\nmemory:\n  backend: lancedb\n")

	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for unsupported memory backend")
	}
}
