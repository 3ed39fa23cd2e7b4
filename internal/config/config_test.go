package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EnvOnly(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("APP_AUTH_JWTSECRET", "from-env")
	t.Setenv("APP_REDIS_ADDR", "localhost:6379")
	t.Setenv("APP_CHAT_SERIALIZETURNS", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.True(t, cfg.Chat.SerializeTurns)
	assert.Equal(t, 8000, cfg.App.Port)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 10, cfg.Chat.HistoryLimit)
	assert.Equal(t, "todo.events", cfg.RabbitMQ.Exchange)
	assert.Empty(t, cfg.S3.Bucket)
}

func TestLoad_FileWithExpansion(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "configs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "configs", "config.yaml"), []byte(`
auth:
  jwtSecret: ${TEST_JWT_SECRET}
chat:
  historyLimit: 4
llm:
  apiKey: ${TEST_MISSING_KEY}
`), 0o644))
	t.Chdir(dir)
	t.Setenv("TEST_JWT_SECRET", "expanded")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "expanded", cfg.Auth.JWTSecret)
	assert.Equal(t, 4, cfg.Chat.HistoryLimit)
	assert.Empty(t, cfg.LLM.APIKey)
	assert.Equal(t, 60, cfg.Chat.ModelTimeoutSec)
}

func TestDurations(t *testing.T) {
	assert.Equal(t, 60*time.Second, ChatCfg{}.ModelTimeout())
	assert.Equal(t, 5*time.Second, ChatCfg{ModelTimeoutSec: 5}.ModelTimeout())
	assert.Equal(t, 2*time.Minute, ChatCfg{}.LockTTL())
	assert.Equal(t, 30*time.Second, RedisCfg{}.StatsTTL())
	assert.Equal(t, time.Minute, RedisCfg{StatsTTLSec: 60}.StatsTTL())
}
