package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("Missing file uses defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})

	t.Run("YAML overrides defaults", func(t *testing.T) {
		path := writeConfig(t, `
server:
  port: "9090"
routing:
  default_k: 5
carrier:
  max_segments: 2
dataset:
  source: file
  path: /srv/bundle.json
  refresh: 30s
`)
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "9090", cfg.Server.Port)
		assert.Equal(t, 5, cfg.Routing.DefaultK)
		assert.Equal(t, 10, cfg.Routing.MaxK, "unset keys keep defaults")
		assert.Equal(t, 2, cfg.Carrier.MaxSegments)
		assert.Equal(t, 256, cfg.Carrier.MaxPaths)
		assert.Equal(t, "/srv/bundle.json", cfg.Dataset.Path)
		assert.Equal(t, 30*time.Second, cfg.Dataset.Refresh)
	})

	t.Run("Environment overrides YAML", func(t *testing.T) {
		path := writeConfig(t, "server:\n  port: \"9090\"\n")
		t.Setenv("API_PORT", "7070")
		t.Setenv("CARRIER_MAX_SEGMENTS", "4")
		t.Setenv("DATASET_REFRESH", "0s")
		t.Setenv("CACHE_ENABLED", "false")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "7070", cfg.Server.Port)
		assert.Equal(t, 4, cfg.Carrier.MaxSegments)
		assert.Zero(t, cfg.Dataset.Refresh)
		assert.False(t, cfg.Server.CacheEnabled)
	})

	t.Run("Malformed environment value", func(t *testing.T) {
		t.Setenv("ROUTE_K", "many")
		_, err := Load("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ROUTE_K")
	})

	t.Run("Validation rejects out of range values", func(t *testing.T) {
		tests := []struct {
			name string
			body string
		}{
			{"Zero segments", "carrier:\n  max_segments: 0\n"},
			{"K above max", "routing:\n  default_k: 20\n  max_k: 10\n"},
			{"Unknown source", "dataset:\n  source: s3\n"},
			{"File source without path", "dataset:\n  source: file\n  path: \"\"\n"},
			{"Non numeric port", "server:\n  port: http\n"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := Load(writeConfig(t, tt.body))
				require.Error(t, err)
				assert.Contains(t, err.Error(), "invalid config")
			})
		}
	})

	t.Run("Broken YAML", func(t *testing.T) {
		_, err := Load(writeConfig(t, "server: [\n"))
		require.Error(t, err)
	})
}
