package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FLIGHTCHAT_CONFIG", "")
	t.Setenv("GROQ_API_BASE", "")
	t.Setenv("GROQ_DEFAULT_MODEL", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":50051", cfg.Server.Address)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Empty(t, cfg.LLM.BaseURL)
	assert.Empty(t, cfg.LLM.Model)
	assert.Equal(t, 15, cfg.Chat.HistoryCapacity)
	assert.Equal(t, 5, cfg.Chat.MetricTopK)
	assert.Equal(t, 0.7, cfg.Chat.Temperature)
	assert.Equal(t, 1000, cfg.Chat.MaxTokens)
	assert.Equal(t, 20*time.Second, cfg.Chat.CollaboratorTimeout)
	assert.Equal(t, 1024, cfg.Cache.MaxEntries)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flightchat.yaml")
	content := `
server:
  address: ":6000"
llm:
  model: from-file
  timeout: 5s
chat:
  historyCapacity: 20
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("GROQ_DEFAULT_MODEL", "from-env")
	t.Setenv("GROQ_API_BASE", "http://localhost:9000/v1")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://collector:4318/")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":6000", cfg.Server.Address)
	assert.Equal(t, "from-env", cfg.LLM.Model)
	assert.Equal(t, "http://localhost:9000/v1", cfg.LLM.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 20, cfg.Chat.HistoryCapacity)
	assert.Equal(t, "collector:4318", cfg.Tracing.Endpoint)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "not found")
}

func TestValidate(t *testing.T) {
	cfg := defaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.LLM.Provider = "cohere"
	cfg.Chat.MaxTokens = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm.provider")
	assert.Contains(t, err.Error(), "chat.maxTokens")
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"http://a", "http://b"}, splitList(" http://a, ,http://b "))
}
