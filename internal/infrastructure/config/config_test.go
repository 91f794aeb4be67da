package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
storage:
  database_path: tenant_a.db
tolerance:
  config_path: /etc/aleph70/config_conciliacion.json
matching:
  lookback_days: 45
  near_window_days: 10
server:
  port: 9090
observability:
  logging:
    level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "tenant_a.db", cfg.Storage.DatabasePath)
	assert.Equal(t, "/etc/aleph70/config_conciliacion.json", cfg.Tolerance.ConfigPath)
	assert.Equal(t, 45, cfg.Matching.LookbackDays)
	assert.Equal(t, 10, cfg.Matching.NearWindowDays)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Observability.Logging.Level)

	// Unspecified fields fall back to defaults
	assert.Equal(t, 5, cfg.Matching.MaxSplitInvoices)
	assert.Equal(t, 30, cfg.Matching.PaymentTermDays)
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_DB_DIR", "/var/lib/aleph70")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "storage:\n  database_path: ${TEST_DB_DIR}/tenant.db\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/aleph70/tenant.db", cfg.Storage.DatabasePath)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ALEPH70_DB_PATH", "env.db")
	t.Setenv("RECONCILE_LOOKBACK_DAYS", "60")
	t.Setenv("LOG_LEVEL", "warn")

	cfg := LoadFromEnv()
	assert.Equal(t, "env.db", cfg.Storage.DatabasePath)
	assert.Equal(t, 60, cfg.Matching.LookbackDays)
	assert.Equal(t, "warn", cfg.Observability.Logging.Level)
}

func TestLoadOrEnvWithMissingFile(t *testing.T) {
	cfg := LoadOrEnvWithPath(filepath.Join(t.TempDir(), "nope.yaml"))

	require.NotNil(t, cfg)
	assert.Equal(t, "aleph70.db", cfg.Storage.DatabasePath)
	assert.Equal(t, 30, cfg.Matching.LookbackDays)
	assert.Equal(t, 0, cfg.Matching.ForwardSlackDays)
	assert.Equal(t, 8080, cfg.Server.Port)
}
