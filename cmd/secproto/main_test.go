package main

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/secproto/internal/inventory"
	"github.com/dropDatabas3/secproto/internal/inventory/memory"
	"github.com/dropDatabas3/secproto/internal/inventory/server"
	"github.com/dropDatabas3/secproto/internal/protocol"
	"github.com/dropDatabas3/secproto/internal/task"
)

func simulator(t *testing.T) (*memory.Inventory, string) {
	t.Helper()
	inv, err := memory.New(memory.Config{
		Port:      8182,
		OptionKey: "das.config.vmacore.ssl.sslOptions",
		Values:    protocol.EncodedValues{Enable: "16924672", Disable: "50479104"},
	}, memory.SimpleFleet("prod-a", "esx-a", "esx-b"))
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	srv, err := server.New(inv, server.Config{Username: "admin", Password: "pw", Registerer: reg, Gatherer: reg})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return inv, ts.URL
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRoot()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func baseArgs(url, dir string) []string {
	return []string{"--inventory-url", url, "--username", "admin", "--password", "pw",
		"--esx-username", "root", "--esx-password", "secret", "--simulate", "--report-dir", dir}
}

func TestApply_EnableSimulated(t *testing.T) {
	inv, url := simulator(t)
	dir := t.TempDir()

	out, err := execute(t, "", append([]string{"apply", "enablessl"}, baseArgs(url, dir)...)...)
	require.NoError(t, err, out)
	require.Contains(t, out, "HOST NAME")
	require.Contains(t, out, "esx-a")
	require.Equal(t, []inventory.Option{{Key: "das.config.vmacore.ssl.sslOptions", Value: "16924672"}}, inv.Options("prod-a"))

	csvs, err := filepath.Glob(filepath.Join(dir, "HostsSSLConfigResult-*.csv"))
	require.NoError(t, err)
	require.Len(t, csvs, 1)
}

func TestApply_DisableDeclined(t *testing.T) {
	inv, url := simulator(t)
	out, err := execute(t, "no\n", append([]string{"apply", "disable"}, baseArgs(url, t.TempDir())...)...)
	require.NoError(t, err)
	require.Contains(t, out, "W A R N I N G")
	require.Empty(t, inv.Calls().SetOptions)
}

func TestApply_RolledBackExitCode(t *testing.T) {
	inv, url := simulator(t)
	inv.ScriptHost("esx-b", memory.Step{Final: task.Error}, memory.Step{Final: task.Success})

	_, err := execute(t, "", append([]string{"apply", "enable"}, baseArgs(url, t.TempDir())...)...)
	var ee *exitError
	require.True(t, errors.As(err, &ee))
	require.Equal(t, exitRolledBack, ee.code)
}

func TestApply_SetupErrorExitCode(t *testing.T) {
	t.Setenv("INVENTORY_URL", "")
	_, err := execute(t, "", "apply", "enable", "--report-dir", t.TempDir())
	var ee *exitError
	require.True(t, errors.As(err, &ee))
	require.Equal(t, exitSetup, ee.code)

	_, err = execute(t, "", "apply", "sideways")
	require.True(t, errors.As(err, &ee))
	require.Equal(t, exitSetup, ee.code)
}

func TestCheck_PrintsClassification(t *testing.T) {
	_, url := simulator(t)
	out, err := execute(t, "", append([]string{"check", "disable"}, baseArgs(url, t.TempDir())...)...)
	require.NoError(t, err)
	require.Contains(t, out, "prod-a")
	require.Contains(t, out, "ALL_SATISFIED")
}

func TestHostsfile_WritesOnce(t *testing.T) {
	_, url := simulator(t)
	path := filepath.Join(t.TempDir(), "hostsinfo.csv")
	args := append([]string{"hostsfile", "-o", path}, baseArgs(url, t.TempDir())...)

	_, err := execute(t, "", args...)
	require.NoError(t, err)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(b), "HOSTNAME,VERSION,USERNAME,PASSWORD,PASSWORD_ENCRYPTED"))
	require.Contains(t, string(b), "esx-a,5.5.0,root,,no")

	_, err = execute(t, "", args...)
	require.Error(t, err)
}
