package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("OPENROUTER_API_KEY", "sk-or-test")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, 15*time.Second, cfg.LLMTimeout)
	assert.Equal(t, 3, cfg.LLMMaxRetries)
	assert.False(t, cfg.NutritionSync)
	assert.True(t, cfg.AtomicWrites)
	assert.Equal(t, "https://openrouter.ai/api", cfg.LLMBaseURL)
}

func TestLoadConfigRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("JWT_SECRET_FILE", "")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestSecretFileFallback(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "openrouter_api_key")
	require.NoError(t, os.WriteFile(keyPath, []byte("sk-or-from-file\n"), 0o600))

	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY_FILE", keyPath)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "sk-or-from-file", cfg.LLMAPIKey)
}

func TestDSNAndRedisAddr(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("REDIS_HOST", "cache.internal")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Contains(t, cfg.DSN(), "host=db.internal")
	assert.Contains(t, cfg.DSN(), "password=pw")
	assert.Equal(t, "cache.internal:6379", cfg.RedisAddr())
}

func TestNutritionSyncSwitch(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("NUTRITION_SYNC", "true")
	t.Setenv("DB_ATOMIC_WRITES", "false")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.NutritionSync)
	assert.False(t, cfg.AtomicWrites)
}
