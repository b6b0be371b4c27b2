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
	t.Setenv("FARADAY_CONFIG", "")
	t.Setenv("STORAGE_BACKEND", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "gateway", cfg.AIProvider)
	assert.Equal(t, "google/gemini-3-flash-preview", cfg.AIModel)
	assert.Equal(t, 120*time.Second, cfg.AIGatewayTimeout)
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "faraday.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen_addr = ":7000"
ai_model = "from-file"
ai_gateway_timeout = "30s"
storage_backend = "memory"
rate_limit_per_min = 5
`), 0o644))

	t.Setenv("FARADAY_CONFIG", path)
	t.Setenv("AI_MODEL", "from-env")
	t.Setenv("LOVABLE_API_KEY", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.ListenAddr)
	assert.Equal(t, "from-env", cfg.AIModel)
	assert.Equal(t, "secret", cfg.AIGatewayKey)
	assert.Equal(t, 30*time.Second, cfg.AIGatewayTimeout)
	assert.Equal(t, "memory", cfg.StorageBackend)
	assert.Equal(t, 5, cfg.RateLimitPerMin)
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	cfg.StorageBackend = "postgres"
	assert.Error(t, cfg.Validate(), "postgres without DATABASE_URL")

	cfg.DatabaseURL = "postgres://localhost/faraday"
	assert.NoError(t, cfg.Validate())

	cfg.AIProvider = "carrier-pigeon"
	assert.Error(t, cfg.Validate())

	cfg = Defaults()
	cfg.StorageBackend = "floppy"
	assert.Error(t, cfg.Validate())
}

func TestEnvHelpersFallBackOnGarbage(t *testing.T) {
	t.Setenv("X_INT", "nope")
	t.Setenv("X_BOOL", "maybe")
	t.Setenv("X_DUR", "soon")
	assert.Equal(t, 3, envInt("X_INT", 3))
	assert.True(t, envBool("X_BOOL", true))
	assert.Equal(t, time.Second, envDuration("X_DUR", time.Second))
}
