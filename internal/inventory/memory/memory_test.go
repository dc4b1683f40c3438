package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/secproto/internal/credentials"
	"github.com/dropDatabas3/secproto/internal/errs"
	"github.com/dropDatabas3/secproto/internal/inventory"
	"github.com/dropDatabas3/secproto/internal/protocol"
	"github.com/dropDatabas3/secproto/internal/task"
)

const optionKey = "das.config.vmacore.ssl.sslOptions"

var cfg = Config{
	Port:      8182,
	OptionKey: optionKey,
	Values:    protocol.EncodedValues{Enable: "16924672", Disable: "50479104"},
}

func loadFixture(t *testing.T) *Inventory {
	t.Helper()
	f, err := LoadFleet("testdata/fleet.yaml")
	require.NoError(t, err)
	inv, err := New(cfg, f)
	require.NoError(t, err)
	return inv
}

func pollUntilTerminal(t *testing.T, inv *Inventory, h task.Handle) (task.State, int) {
	t.Helper()
	for i := 1; i <= 10; i++ {
		st, err := inv.PollTask(context.Background(), h)
		require.NoError(t, err)
		if st.Terminal() {
			return st, i
		}
	}
	t.Fatalf("task %s never finished", h.ID)
	return "", 0
}

func TestLoadFleet_ListsOnlyConnected(t *testing.T) {
	inv := loadFixture(t)
	ctx := context.Background()

	clusters, err := inv.ListClusters(ctx)
	require.NoError(t, err)
	require.Equal(t, []inventory.Cluster{{Name: "prod-a", HAEnabled: true}, {Name: "lab"}}, clusters)

	hosts, err := inv.ListMemberHosts(ctx, "prod-a")
	require.NoError(t, err)
	require.Equal(t, []string{"esx-a1", "esx-a2"}, inventory.HostNames(hosts))

	hosts, err = inv.ListMemberHosts(ctx, "lab")
	require.NoError(t, err)
	require.Empty(t, hosts)

	_, err = inv.ListMemberHosts(ctx, "nope")
	require.True(t, errors.Is(err, errs.ErrTransport))
}

func TestReconfigure_AppliesClusterOption(t *testing.T) {
	inv := loadFixture(t)
	ctx := context.Background()

	require.True(t, inv.Protocols("esx-a2").Equal(protocol.Baseline()))

	opts := append(inv.Options("prod-a"), inventory.Option{Key: optionKey, Value: "16924672"})
	h, err := inv.SetAdvancedOptions(ctx, "prod-a", opts)
	require.NoError(t, err)
	st, _ := pollUntilTerminal(t, inv, h)
	require.Equal(t, task.Success, st)

	h, err = inv.ReconfigureHost(ctx, "esx-a2")
	require.NoError(t, err)
	st, n := pollUntilTerminal(t, inv, h)
	require.Equal(t, task.Success, st)
	require.Equal(t, 3, n)
	require.True(t, inv.Protocols("esx-a2").Contains(protocol.SSLv3))
	require.False(t, inv.Protocols("esx-a1").Contains(protocol.SSLv3))

	calls := inv.Calls()
	require.Equal(t, 1, calls.SetOptions["prod-a"])
	require.Equal(t, 1, calls.Reconfigure["esx-a2"])
}

func TestScript_LastStepRepeats(t *testing.T) {
	inv := loadFixture(t)
	ctx := context.Background()
	inv.ScriptHost("esx-a1", Step{Final: task.Error}, Step{Final: task.Success})

	h, _ := inv.ReconfigureHost(ctx, "esx-a1")
	st, _ := pollUntilTerminal(t, inv, h)
	require.Equal(t, task.Error, st)

	for i := 0; i < 2; i++ {
		h, _ = inv.ReconfigureHost(ctx, "esx-a1")
		st, _ = pollUntilTerminal(t, inv, h)
		require.Equal(t, task.Success, st)
	}
}

func TestScanAndRun(t *testing.T) {
	inv := loadFixture(t)
	ctx := context.Background()

	got, err := inv.Scan(ctx, "esx-a1", 8182)
	require.NoError(t, err)
	require.Equal(t, []string{"TLSv1.0", "TLSv1.1", "TLSv1.2"}, got)

	_, err = inv.Scan(ctx, "esx-a1", 443)
	require.Error(t, err)

	cred := credentials.Credential{Username: "root", Password: "secret"}
	_, err = inv.Run(ctx, "esx-a1", VersionCommand, cred)
	require.True(t, errors.Is(err, errs.ErrTransport))

	require.NoError(t, inv.StartService(ctx, "esx-a1", "TSM-SSH"))
	res, err := inv.Run(ctx, "esx-a1", VersionCommand, cred)
	require.NoError(t, err)
	require.Contains(t, res.Stdout, "Build: Releasebuild-3248547")
	require.Contains(t, res.Stdout, "Update: 3")

	res, err = inv.Run(ctx, "esx-a1", "uname -a", cred)
	require.NoError(t, err)
	require.Equal(t, 127, res.ExitStatus)
}

func TestFleetValidate(t *testing.T) {
	err := Fleet{Clusters: []ClusterSpec{{Name: "a", Hosts: []HostSpec{{Name: "h"}, {Name: "h"}}}}}.Validate()
	require.Error(t, err)
	err = Fleet{Clusters: []ClusterSpec{{Name: "a", Tasks: []Step{{Final: "paused"}}}}}.Validate()
	require.Error(t, err)
}
