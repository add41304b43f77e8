package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "messages", cfg.Relay.Topic)
	assert.Equal(t, 10*time.Second, cfg.Relay.WriteWait)
	assert.Equal(t, 60*time.Second, cfg.Relay.PongWait)
	assert.Equal(t, 54*time.Second, cfg.Relay.PingPeriod)
	assert.Equal(t, "redis", cfg.Redis.Backend)
	assert.Equal(t, 50, cfg.History.DefaultLimit)
	assert.Equal(t, 200, cfg.History.MaxLimit)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RELAY_TOPIC", "chat")
	t.Setenv("SERVER_HOST", "127.0.0.1")
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("PUBSUB_BACKEND", "Memory")
	t.Setenv("RELAY_WRITE_WAIT", "3s")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg := Load()

	assert.Equal(t, "chat", cfg.Relay.Topic)
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr())
	assert.Equal(t, "memory", cfg.Redis.Backend)
	assert.Equal(t, 3*time.Second, cfg.Relay.WriteWait)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Security.AllowedOrigins)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("DB_MAX_CONNS", "many")
	t.Setenv("RELAY_PONG_WAIT", "forever")

	cfg := Load()

	assert.Equal(t, 5, cfg.Database.MaxConns)
	assert.Equal(t, 60*time.Second, cfg.Relay.PongWait)
}

func TestDSN(t *testing.T) {
	cfg := Load()
	assert.Contains(t, cfg.DSN(), "dbname=chat_relay")

	cfg.Database.URL = "postgres://u:p@db:5432/x"
	assert.Equal(t, "postgres://u:p@db:5432/x", cfg.DSN())
}

func TestNewRedisClient(t *testing.T) {
	cfg := Load()
	cfg.Redis.URL = "redis://cache:6380/2"

	client, err := NewRedisClient(cfg)
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, "cache:6380", client.Options().Addr)
	assert.Equal(t, 2, client.Options().DB)

	cfg.Redis.URL = "cache:6379"
	client2, err := NewRedisClient(cfg)
	require.NoError(t, err)
	defer client2.Close()
	assert.Equal(t, "cache:6379", client2.Options().Addr)
}
