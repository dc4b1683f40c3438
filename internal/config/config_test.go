package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefault_CarriesToolConstants(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	require.Equal(t, 8182, c.Change.Port)
	require.Equal(t, "das.config.vmacore.ssl.sslOptions", c.Change.OptionKey)
	require.Equal(t, "16924672", c.Change.EnableValue)
	require.Equal(t, "50479104", c.Change.DisableValue)
	require.Equal(t, 2*time.Second, c.Polling.Cluster.Interval)
	require.Equal(t, 10, c.Polling.Cluster.MaxAttempts)
	require.Equal(t, 20*time.Second, c.Polling.Host.Interval)
	require.Equal(t, 30, c.Polling.Host.MaxAttempts)
	require.Equal(t, "TSM-SSH", c.SSH.Service)

	vg := c.VersionGate()
	require.False(t, vg.Disabled)
	require.Equal(t, "3248547", vg.Minimum.HostBuild)
	require.Equal(t, "3252642", vg.Minimum.EndpointBuild)
}

func TestLoad_YAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secproto.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
inventory:
  url: https://vc.lab/
  username: admin
polling:
  host:
    interval: 5s
    max_attempts: 3
version:
  enabled: false
cache:
  kind: redis
  redis:
    addr: localhost:6379
`), 0o600))

	t.Setenv("POLL_HOST_MAX_ATTEMPTS", "7")
	t.Setenv("INVENTORY_PASSWORD", "s3cret")
	t.Setenv("ALERT_TO", "a@x, b@x")

	c, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, c.Validate())
	require.Equal(t, "https://vc.lab/", c.Inventory.URL)
	require.Equal(t, "s3cret", c.Inventory.Password)
	require.Equal(t, 5*time.Second, c.Polling.Host.Interval)
	require.Equal(t, 7, c.Polling.Host.MaxAttempts)
	require.True(t, c.VersionGate().Disabled)
	require.Equal(t, []string{"a@x", "b@x"}, c.Notify.SMTP.To)
	require.Equal(t, "redis", c.CacheConfig().Kind)
}

func TestValidate_Rejects(t *testing.T) {
	c := Default()
	c.Polling.Host.MaxAttempts = 0
	c.Change.Port = 70000
	c.Change.OptionKey = " "
	c.Change.DisableValue = c.Change.EnableValue
	c.Cache.Kind = "memcached"

	err := c.Validate()
	require.Error(t, err)
	for _, want := range []string{"polling.host", "change.port", "option_key", "deben diferir", "cache.kind"} {
		require.Contains(t, err.Error(), want)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
