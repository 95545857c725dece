package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mssp-monitor/internal/model"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `
falcon:
    client_id: "test-id"
    client_secret: "test-secret"
influxdb:
    token: "test-token"
`

func TestLoadConfigAppliesDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	require.Equal(t, "us-2", cfg.Falcon.BaseRegion)
	require.Equal(t, time.Hour, cfg.Monitor.CheckInterval)
	require.Equal(t, 60*time.Second, cfg.Monitor.Cooldown)
	require.Equal(t, 375, cfg.Monitor.LicenseThreshold)
	require.Equal(t, 4, cfg.Monitor.FetchWorkers)
	require.Equal(t, "/data/mssp_inventory.json", cfg.Monitor.StateFile)
	require.Equal(t, "mssp-monitor", cfg.Pushgateway.Job)
	require.Equal(t, ":8080", cfg.API.Addr)
}

func TestLoadConfigExplicitValuesWin(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
falcon:
    client_id: "test-id"
    client_secret: "test-secret"
    base_region: "eu-1"
monitor:
    check_interval: 30m
    license_threshold: 500
    pinned_cids: ["CID-One", "cid-two"]
influxdb:
    token: "test-token"
    url: "http://localhost:8086"
`))
	require.NoError(t, err)

	require.Equal(t, "eu-1", cfg.Falcon.BaseRegion)
	require.Equal(t, 30*time.Minute, cfg.Monitor.CheckInterval)
	require.Equal(t, 500, cfg.Monitor.LicenseThreshold)
	require.Equal(t, "http://localhost:8086", cfg.InfluxDB.URL)
}

func TestLoadConfigEnvOverridesSecrets(t *testing.T) {
	t.Setenv("CS_CLIENT_SECRET", "env-secret")
	t.Setenv("INFLUXDB_TOKEN", "env-token")

	cfg, err := LoadConfig(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	require.Equal(t, "test-id", cfg.Falcon.ClientID)
	require.Equal(t, "env-secret", cfg.Falcon.ClientSecret)
	require.Equal(t, "env-token", cfg.InfluxDB.Token)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfigRejectsMissingCredentials(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `
influxdb:
    token: "test-token"
`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "falcon.client_id is required")
}

func TestLoadConfigRejectsMissingInfluxToken(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `
falcon:
    client_id: "test-id"
    client_secret: "test-secret"
`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "influxdb.token is required")
}

func TestPinnedSetNormalizes(t *testing.T) {
	cfg := &Config{}
	cfg.Monitor.PinnedCIDs = []string{"CID-A", " cid-a ", "cid-b", ""}

	set := cfg.PinnedSet()
	require.Len(t, set, 2)
	_, ok := set[model.TenantID("cid-a")]
	require.True(t, ok)
	_, ok = set[model.TenantID("cid-b")]
	require.True(t, ok)
}
