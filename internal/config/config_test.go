package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("PORT", "")
	t.Setenv("FRONTEND_URL", "")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, int64(10), cfg.Server.MaxUploadMB)
	assert.Equal(t, "sqlite:///./trades.db", cfg.Database.DSN)
	assert.Equal(t, "http://localhost:3000", cfg.CORS.FrontendURL)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.AI.Model)
	assert.Equal(t, 1024, cfg.AI.MaxTokens)
	assert.Empty(t, cfg.AI.ApiKey)
	assert.False(t, cfg.Tracing.Enabled)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://journal:secret@db:5432/journal")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("PORT", "9090")
	t.Setenv("FRONTEND_URL", "https://journal.example.com")
	t.Setenv("LOGGER_LEVEL", "debug")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "postgres://journal:secret@db:5432/journal", cfg.Database.DSN)
	assert.Equal(t, "sk-test", cfg.AI.ApiKey)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "https://journal.example.com", cfg.CORS.FrontendURL)
	assert.Equal(t, "debug", cfg.Logger.Level)
}

func TestLoadConfig_File(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PORT", "")

	dir := t.TempDir()
	content := []byte("server:\n  port: 7000\nlogger:\n  format: json\nai:\n  model: claude-test\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), content, 0o644))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "json", cfg.Logger.Format)
	assert.Equal(t, "claude-test", cfg.AI.Model)
	assert.Equal(t, "sqlite:///./trades.db", cfg.Database.DSN)
}

func TestLoadConfig_BadFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte("server: [unclosed"), 0o644))

	_, err := LoadConfig(dir)
	assert.Error(t, err)
}
