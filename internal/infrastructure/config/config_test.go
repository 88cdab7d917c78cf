package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const minimalYAML = `
auth:
  signing_key: test-key
engine:
  store: memory
`

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfigFile(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
	assert.Equal(t, int32(25), cfg.Database.MaxConns)
	assert.Equal(t, float64(5), cfg.Engine.BidRatePerTeam)
	assert.Equal(t, "info", cfg.Telemetry.LogLevel)
	assert.False(t, cfg.Telemetry.TracingEnabled)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	cfg, err := Load(writeConfigFile(t, `
environment: production
server:
  port: 9090
auth:
  signing_key: prod-key
  admin_key: prod-admin
engine:
  store: postgres
  bid_rate_per_team: 10
`))
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "prod-admin", cfg.Auth.AdminKey)
	assert.Equal(t, float64(10), cfg.Engine.BidRatePerTeam)
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("AUCTION_SERVER_PORT", "9000")
	t.Setenv("AUCTION_ENVIRONMENT", "staging")

	cfg, err := Load(writeConfigFile(t, minimalYAML))
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "staging", cfg.Environment)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing signing key",
			yaml: "engine:\n  store: memory\n",
			want: "auth.signing_key",
		},
		{
			name: "unknown store backend",
			yaml: "auth:\n  signing_key: k\nengine:\n  store: sqlite\n",
			want: "engine.store",
		},
		{
			name: "port out of range",
			yaml: minimalYAML + "server:\n  port: 70000\n",
			want: "server.port",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfigFile(t, tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
