package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ProviderOllama, cfg.LLMProvider)
	assert.Equal(t, IndexStorePostgres, cfg.IndexStore)
	assert.Equal(t, 1000, cfg.ChunkSize)
	assert.Equal(t, 150, cfg.ChunkOverlap)
	assert.Equal(t, 3, cfg.RetrieverK)
	assert.Equal(t, 12, cfg.ChatHistoryWindow)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("INDEX_STORE", "redis")
	t.Setenv("CHUNK_SIZE", "500")
	t.Setenv("CHAT_HISTORY_WINDOW", "8")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ProviderOpenAI, cfg.LLMProvider)
	assert.Equal(t, IndexStoreRedis, cfg.IndexStore)
	assert.Equal(t, 500, cfg.ChunkSize)
	assert.Equal(t, 8, cfg.ChatHistoryWindow)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "gemini")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadRejectsBadInt(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "lots")
	_, err := Load("")
	assert.Error(t, err)
}
