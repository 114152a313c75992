package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdneilsfield/guided-translator/pkg/keypool"
	"github.com/nerdneilsfield/guided-translator/pkg/llm"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "debug: false\n"))
	require.NoError(t, err)

	assert.Equal(t, llm.SDKOpenAI, cfg.LLM.SDK)
	assert.Equal(t, "gemini-2.0-flash", cfg.LLM.Model)
	assert.InDelta(t, 0.1, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, 8192, cfg.LLM.MaxOutputTokens)
	assert.Equal(t, 800, cfg.Chunk.MaxTokens)
	assert.Equal(t, 1500*time.Millisecond, cfg.Batch.Delay)
	assert.Equal(t, 60, cfg.RateLimit.CooldownSeconds)
	assert.Equal(t, 3, cfg.RateLimit.MaxRetries)
	assert.Equal(t, int64(50<<20), cfg.MaxFileBytes())
	assert.NotEmpty(t, cfg.Store.Dir)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfig(t, `
llm:
  sdk: go-openai
  model: gemini-1.5-pro
  request_timeout: 30s
keys:
  - key: free-aaaa
  - key: paid-bbbb
    paid: true
chunk:
  max_tokens: 400
batch:
  delay: 250ms
store:
  dir: /tmp/guided
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, llm.SDKGoOpenAI, cfg.LLM.SDK)
	assert.Equal(t, "gemini-1.5-pro", cfg.LLM.Model)
	assert.Equal(t, 30*time.Second, cfg.LLM.RequestTimeout)
	assert.Equal(t, 400, cfg.Chunk.MaxTokens)
	assert.Equal(t, 250*time.Millisecond, cfg.Batch.Delay)
	assert.Equal(t, "/tmp/guided", cfg.Store.Dir)
	assert.Equal(t, []keypool.APIKey{{Key: "free-aaaa"}, {Key: "paid-bbbb", IsPaid: true}}, cfg.Keys)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("GUIDED_API_KEYS", "k1, k2,,")
	t.Setenv("GUIDED_PAID_API_KEYS", "p1")
	t.Setenv("GUIDED_CHUNK_MAX_TOKENS", "1200")

	cfg, err := LoadConfig(writeConfig(t, "debug: true\n"))
	require.NoError(t, err)

	assert.True(t, cfg.Debug)
	assert.Equal(t, 1200, cfg.Chunk.MaxTokens)
	assert.Equal(t, []keypool.APIKey{{Key: "k1"}, {Key: "k2"}, {Key: "p1", IsPaid: true}}, cfg.Keys)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseKeyList(t *testing.T) {
	assert.Nil(t, ParseKeyList("", false))
	assert.Equal(t, []keypool.APIKey{{Key: "a", IsPaid: true}}, ParseKeyList(" a ,", true))
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := NewDefaultConfig()
		c.Keys = []keypool.APIKey{{Key: "k"}}
		return c
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no keys", func(c *Config) { c.Keys = nil }},
		{"bad sdk", func(c *Config) { c.LLM.SDK = "anthropic" }},
		{"empty model", func(c *Config) { c.LLM.Model = "" }},
		{"zero output tokens", func(c *Config) { c.LLM.MaxOutputTokens = 0 }},
		{"zero chunk budget", func(c *Config) { c.Chunk.MaxTokens = 0 }},
		{"negative retries", func(c *Config) { c.RateLimit.MaxRetries = -1 }},
		{"negative delay", func(c *Config) { c.Batch.Delay = -time.Second }},
		{"zero file cap", func(c *Config) { c.Extract.MaxFileMB = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}

	c := valid()
	c.Keys = nil
	assert.ErrorIs(t, c.Validate(), keypool.ErrEmptyPool)
}
