package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "loom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "simple", cfg.Logger.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, StoreTypeMemory, cfg.Store.Type)
	assert.Equal(t, 10*time.Second, cfg.Orchestrator.DefaultToolTimeout)
	assert.Equal(t, 1, cfg.Orchestrator.MaxParallel)
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfig(t, `
logger:
  level: debug
  format: json
server:
  port: 9090
orchestrator:
  default_tool_timeout: 2s
  max_parallel: 4
  tool_timeouts:
    rubric: 500ms
store:
  type: sqlite
  path: /tmp/profiles.db
tools:
  knowledge_base:
    docs_path: ./docs
    top_k: 5
  rubric_db: /tmp/rubrics.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "json", cfg.Logger.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 2*time.Second, cfg.Orchestrator.DefaultToolTimeout)
	assert.Equal(t, 4, cfg.Orchestrator.MaxParallel)
	assert.Equal(t, 500*time.Millisecond, cfg.Orchestrator.ToolTimeouts["rubric"])
	assert.Equal(t, StoreTypeSQLite, cfg.Store.Type)
	assert.Equal(t, "./docs", cfg.Tools.KnowledgeBase.DocsPath)
	assert.Equal(t, 5, cfg.Tools.KnowledgeBase.TopK)
	assert.Equal(t, "/tmp/rubrics.db", cfg.Tools.RubricDB)
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("LOOM_TEST_DOCS", "/srv/docs")
	path := writeConfig(t, `
tools:
  knowledge_base:
    docs_path: ${LOOM_TEST_DOCS}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/docs", cfg.Tools.KnowledgeBase.DocsPath)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LOOM_SERVER__PORT", "9191")
	t.Setenv("LOOM_LOGGER__LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logger.Level)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad log format", "logger:\n  format: xml\n"},
		{"bad port", "server:\n  port: 99999\n"},
		{"bad store type", "store:\n  type: postgres\n"},
		{"sqlite without path", "store:\n  type: sqlite\n"},
		{"negative tool timeout", "orchestrator:\n  tool_timeouts:\n    rubric: -1s\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/loom.yaml")
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("LOOM_DOTENV_PROBE=from_file\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("LOOM_DOTENV_PROBE") })

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from_file", os.Getenv("LOOM_DOTENV_PROBE"))

	// Existing variables are not overwritten.
	t.Setenv("LOOM_DOTENV_PROBE", "preexisting")
	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "preexisting", os.Getenv("LOOM_DOTENV_PROBE"))
}
