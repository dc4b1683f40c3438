package rollback

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/secproto/internal/clusterconfig"
	"github.com/dropDatabas3/secproto/internal/errs"
	"github.com/dropDatabas3/secproto/internal/inventory"
	"github.com/dropDatabas3/secproto/internal/inventory/memory"
	"github.com/dropDatabas3/secproto/internal/protocol"
	"github.com/dropDatabas3/secproto/internal/reconfig"
	"github.com/dropDatabas3/secproto/internal/snapshot"
	"github.com/dropDatabas3/secproto/internal/task"
)

const key = "das.config.vmacore.ssl.sslOptions"

var (
	values = protocol.EncodedValues{Enable: "16924672", Disable: "50479104"}
	hosts  = []string{"esx-a", "esx-b", "esx-c"}
)

type fixture struct {
	inv  *memory.Inventory
	mut  *clusterconfig.Mutator
	rec  *reconfig.Reconfigurer
	snap *snapshot.Snapshotter
	comp *Compensator
	req  protocol.ChangeRequest
}

func setup(t *testing.T) *fixture {
	t.Helper()
	inv, err := memory.New(memory.Config{Port: 8182, OptionKey: key, Values: values}, memory.SimpleFleet("prod-a", hosts...))
	require.NoError(t, err)
	clk := task.NewFakeClock(time.Unix(0, 0))
	f := &fixture{inv: inv}
	f.mut = clusterconfig.New(inv, task.NewPoller(inv, clk, "cluster"), task.Budget{Interval: 2 * time.Second, MaxAttempts: 10})
	f.rec = reconfig.New(inv, task.NewPoller(inv, clk, "host"), task.Budget{Interval: 20 * time.Second, MaxAttempts: 30})
	f.snap = snapshot.New(inv)
	f.comp = New(inv, f.mut, f.rec, f.snap, 8182)
	f.req, err = protocol.NewChangeRequest(protocol.Enable, key, values)
	require.NoError(t, err)
	return f
}

func TestRollback_RestoresAndVerifies(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	before, err := f.snap.Take(ctx, hosts, 8182)
	require.NoError(t, err)

	applied, err := f.mut.Apply(ctx, "prod-a", f.req)
	require.NoError(t, err)
	f.inv.ScriptHost("esx-c", memory.Step{Final: task.Running}, memory.Step{Final: task.Success})
	res := f.rec.ReconfigureAll(ctx, hosts)
	require.Equal(t, []string{"esx-c"}, res.Failed)
	require.True(t, f.inv.Protocols("esx-a").Contains(protocol.SSLv3))

	rec := f.comp.Rollback(ctx, applied.RestorePoint, f.req, before)
	require.NoError(t, rec.Err)
	require.True(t, rec.Verified)
	require.True(t, rec.OptionRestored)
	require.Equal(t, []inventory.Option{{Key: key, Value: "50479104"}}, f.inv.Options("prod-a"))
	for _, h := range hosts {
		require.Equal(t, 2, f.inv.Calls().Reconfigure[h], h)
		require.True(t, rec.After[h].Equal(protocol.Baseline()), h)
	}
}

func TestRollback_SecondPassFailure(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	before, err := f.snap.Take(ctx, hosts, 8182)
	require.NoError(t, err)

	applied, err := f.mut.Apply(ctx, "prod-a", f.req)
	require.NoError(t, err)
	f.inv.ScriptHost("esx-b", memory.Step{Final: task.Success}, memory.Step{Final: task.Error})
	f.inv.ScriptHost("esx-c", memory.Step{Final: task.Error})
	_ = f.rec.ReconfigureAll(ctx, hosts)

	rec := f.comp.Rollback(ctx, applied.RestorePoint, f.req, before)
	require.False(t, rec.Verified)
	require.True(t, errors.Is(rec.Err, errs.ErrRollbackFailed))
	require.NotNil(t, rec.HostsPass)
	require.Equal(t, []string{"esx-b", "esx-c"}, rec.HostsPass.Failed)
	require.NotNil(t, rec.After)
}

func TestRollback_RestoreOptionFailure(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	before, _ := f.snap.Take(ctx, hosts, 8182)
	applied, err := f.mut.Apply(ctx, "prod-a", f.req)
	require.NoError(t, err)

	f.inv.FailSubmitCluster("prod-a", errors.New("session expired"))
	rec := f.comp.Rollback(ctx, applied.RestorePoint, f.req, before)
	require.False(t, rec.OptionRestored)
	require.Nil(t, rec.HostsPass)
	require.True(t, errors.Is(rec.Err, errs.ErrRollbackFailed))
	require.True(t, errors.Is(rec.Err, errs.ErrTransport))
}

func TestRollback_UnmodifiedOptionIsNotResubmitted(t *testing.T) {
	f := memory.SimpleFleet("prod-a", hosts...)
	f.Clusters[0].Options = []inventory.Option{{Key: key, Value: "16924672"}}
	inv, err := memory.New(memory.Config{Port: 8182, OptionKey: key, Values: values}, f)
	require.NoError(t, err)
	clk := task.NewFakeClock(time.Unix(0, 0))
	mut := clusterconfig.New(inv, task.NewPoller(inv, clk, "cluster"), task.Budget{Interval: 2 * time.Second, MaxAttempts: 10})
	rec := reconfig.New(inv, task.NewPoller(inv, clk, "host"), task.Budget{Interval: 20 * time.Second, MaxAttempts: 30})
	snap := snapshot.New(inv)
	comp := New(inv, mut, rec, snap, 8182)
	req, err := protocol.NewChangeRequest(protocol.Enable, key, values)
	require.NoError(t, err)

	ctx := context.Background()
	before, err := snap.Take(ctx, hosts, 8182)
	require.NoError(t, err)
	applied, err := mut.Apply(ctx, "prod-a", req)
	require.NoError(t, err)
	require.False(t, applied.Changed)

	inv.ScriptHost("esx-b", memory.Step{Final: task.Error}, memory.Step{Final: task.Success})
	require.Equal(t, []string{"esx-b"}, rec.ReconfigureAll(ctx, hosts).Failed)

	out := comp.Rollback(ctx, applied.RestorePoint, req, before)
	require.True(t, out.OptionUntouched)
	require.False(t, out.OptionRestored)
	require.Equal(t, 0, inv.Calls().SetOptions["prod-a"])
	require.Equal(t, []inventory.Option{{Key: key, Value: "16924672"}}, inv.Options("prod-a"))
	for _, h := range hosts {
		require.Equal(t, 2, inv.Calls().Reconfigure[h], h)
	}
	// Con la opción ya en el valor pedido los hosts no vuelven a su set previo.
	require.False(t, out.Verified)
	require.Equal(t, hosts, out.Unreverted)
}
