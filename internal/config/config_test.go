package config

import (
	"os"
	"path/filepath"
	"testing"

	"stocktake/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
remote:
  base_url: "http://localhost:8080"
database:
  path: "./data/test.db"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "stocktake", cfg.App.Name)
	assert.Equal(t, 30, cfg.Remote.TimeoutSeconds)
	assert.Equal(t, models.DefaultCacheTTLHours, cfg.Cache.TTLHours)
	assert.Equal(t, models.DefaultCacheMaxEntries, cfg.Cache.MaxEntries)
	assert.Equal(t, models.DefaultBatchSize, cfg.Sync.BatchSize)
	assert.Equal(t, models.DefaultMaxRetries, cfg.Sync.MaxRetries)
	assert.Equal(t, 2, cfg.Sync.RetryBackoff.InitialSeconds)
	assert.Equal(t, float64(2), cfg.Sync.RetryBackoff.Factor)
	assert.Equal(t, models.DefaultMaxQueueEntries, cfg.Maintenance.MaxQueueEntries)
	assert.Equal(t, models.DefaultProbeIntervalSeconds, cfg.Connectivity.ProbeIntervalSeconds)
	assert.False(t, cfg.Sync.KeepExhausted)
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("STOCKTAKE_TEST_API_KEY", "secret-from-env")

	path := writeConfig(t, `
remote:
  base_url: "http://localhost:8080"
  api_key: "${STOCKTAKE_TEST_API_KEY}"
database:
  path: "./data/test.db"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret-from-env", cfg.Remote.APIKey)
}

func TestLoad_ExplicitValuesWin(t *testing.T) {
	path := writeConfig(t, `
remote:
  base_url: "http://localhost:8080"
  timeout_seconds: 5
database:
  path: "./data/test.db"
cache:
  ttl_hours: 24
  max_entries: 50
sync:
  batch_size: 3
  keep_exhausted: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Remote.TimeoutSeconds)
	assert.Equal(t, 24, cfg.Cache.TTLHours)
	assert.Equal(t, 50, cfg.Cache.MaxEntries)
	assert.Equal(t, 3, cfg.Sync.BatchSize)
	assert.True(t, cfg.Sync.KeepExhausted)
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing base url",
			content: "database:\n  path: ./data/test.db\n",
			wantErr: "base_url",
		},
		{
			name:    "missing database path",
			content: "remote:\n  base_url: http://localhost:8080\n",
			wantErr: "database path",
		},
		{
			name: "redis enabled without address",
			content: `
remote:
  base_url: "http://localhost:8080"
database:
  path: "./data/test.db"
redis:
  enabled: true
`,
			wantErr: "redis address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
