package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "omni-agent/internal/errors"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "gpt-4", cfg.LLM.Model)
	assert.Equal(t, 0.7, cfg.LLM.Temperature)
	assert.Equal(t, 800, cfg.LLM.MaxTokens)
	assert.Equal(t, 15*time.Second, cfg.LLM.Timeout.Std())
	assert.Equal(t, 10*time.Second, cfg.Tools.Timeout.Std())
	assert.Equal(t, 10, cfg.Agent.MaxTurns)
	assert.Equal(t, 1, cfg.Agent.MaxToolHops)
	assert.Equal(t, 3, cfg.News.SummaryAttempts)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
llm:
  model: gpt-4o-mini
  timeout: 20s
tools:
  relayer_url: http://relayer:7777
  timeout: 5
cache:
  driver: redis
  redis_addr: localhost:6379
  price_ttl: 1m
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 20*time.Second, cfg.LLM.Timeout.Std())
	// 未出现的字段保持默认值
	assert.Equal(t, 800, cfg.LLM.MaxTokens)
	assert.Equal(t, "http://relayer:7777", cfg.Tools.RelayerURL)
	assert.Equal(t, 5*time.Second, cfg.Tools.Timeout.Std())
	assert.Equal(t, time.Minute, cfg.Cache.PriceTTL.Std())
	assert.Equal(t, "redis", cfg.Cache.Driver)
}

func TestLoadFromFileInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm: [oops"), 0o644))

	_, err := LoadFromFile(path)
	require.Error(t, err)
	assert.Equal(t, xerrors.CodeConfigInvalid, xerrors.CodeOf(err))
}

func TestLoadMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	cfg, err := Load(missing, false)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4", cfg.LLM.Model)

	_, err = Load(missing, true)
	require.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"TELEGRAM_BOT_TOKEN":   "tg-token",
		"OPENAI_API_KEY":       "sk-test",
		"API_RELAYER_URL":      "http://relayer",
		"API_URL":              "http://prices",
		"BRAVE_SEARCH_API_KEY": "brave",
		"OPENAI_MODEL":         "  ",
	}
	cfg := DefaultConfig()
	cfg.ApplyEnv(func(k string) string { return env[k] })

	assert.Equal(t, "tg-token", cfg.Telegram.Token)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "http://relayer", cfg.Tools.RelayerURL)
	assert.Equal(t, "http://prices", cfg.Tools.PriceAPIURL)
	assert.Equal(t, "brave", cfg.Tools.BraveAPIKey)
	assert.Equal(t, "gpt-4", cfg.LLM.Model, "blank env values are ignored")
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.Validate(true)
	require.Error(t, err)
	assert.Equal(t, xerrors.CodeConfigInvalid, xerrors.CodeOf(err))
	assert.Contains(t, err.Error(), "llm.api_key")
	assert.Contains(t, err.Error(), "telegram.token")

	cfg.LLM.APIKey = "sk"
	require.NoError(t, cfg.Validate(false))

	cfg.Cache.Driver = "redis"
	require.ErrorContains(t, cfg.Validate(false), "cache.redis_addr")

	cfg.Cache.Driver = "memcached"
	require.ErrorContains(t, cfg.Validate(false), "not supported")
}

func TestValidateRejectsTooSmallWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.APIKey = "sk"

	cfg.Agent.MaxTurns = 1
	require.ErrorContains(t, cfg.Validate(false), "agent.max_turns")

	cfg.Agent.MaxTurns = 3
	require.NoError(t, cfg.Validate(false))
}

func TestLLMRetryAndZeroTemperature(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
llm:
  api_key: sk
  temperature: 0
  retry:
    enabled: true
    max_retries: 2
    initial_delay: 250ms
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Zero(t, cfg.LLM.Temperature)
	assert.True(t, cfg.LLM.Retry.Enabled)
	assert.Equal(t, 2, cfg.LLM.Retry.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.LLM.Retry.InitialDelay.Std())
	assert.Equal(t, 2*time.Second, cfg.LLM.Retry.MaxDelay.Std())
	require.NoError(t, cfg.Validate(false))

	cfg.LLM.Retry.MaxRetries = 0
	require.ErrorContains(t, cfg.Validate(false), "llm.retry.max_retries")
}
