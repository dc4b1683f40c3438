package clusterconfig

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/secproto/internal/errs"
	"github.com/dropDatabas3/secproto/internal/inventory"
	"github.com/dropDatabas3/secproto/internal/inventory/memory"
	"github.com/dropDatabas3/secproto/internal/protocol"
	"github.com/dropDatabas3/secproto/internal/task"
)

const key = "das.config.vmacore.ssl.sslOptions"

var values = protocol.EncodedValues{Enable: "16924672", Disable: "50479104"}

func setup(t *testing.T, opts ...inventory.Option) (*memory.Inventory, *Mutator) {
	t.Helper()
	f := memory.SimpleFleet("prod-a", "esx-a")
	f.Clusters[0].Options = opts
	inv, err := memory.New(memory.Config{Port: 8182, OptionKey: key, Values: values}, f)
	require.NoError(t, err)
	p := task.NewPoller(inv, task.NewFakeClock(time.Unix(0, 0)), "cluster")
	return inv, New(inv, p, task.Budget{Interval: 2 * time.Second, MaxAttempts: 10})
}

func enable(t *testing.T) protocol.ChangeRequest {
	req, err := protocol.NewChangeRequest(protocol.Enable, key, values)
	require.NoError(t, err)
	return req
}

func TestApply_AppendsAndRecordsAdded(t *testing.T) {
	other := inventory.Option{Key: "das.config.fdm.isolationPolicyDelaySec", Value: "30"}
	inv, m := setup(t, other)

	out, err := m.Apply(context.Background(), "prod-a", enable(t))
	require.NoError(t, err)
	require.True(t, out.Changed)
	require.True(t, out.Submitted)
	require.True(t, out.RestorePoint.Added())
	require.True(t, out.RestorePoint.Mutated)
	require.Equal(t, []inventory.Option{other, {Key: key, Value: "16924672"}}, inv.Options("prod-a"))
}

func TestApply_AlreadySetIsNoop(t *testing.T) {
	inv, m := setup(t, inventory.Option{Key: key, Value: "16924672"})

	out, err := m.Apply(context.Background(), "prod-a", enable(t))
	require.NoError(t, err)
	require.False(t, out.Changed)
	require.False(t, out.Submitted)
	require.False(t, out.RestorePoint.Mutated)
	require.Equal(t, 0, inv.Calls().SetOptions["prod-a"])
}

func TestApply_ReplacesExisting(t *testing.T) {
	inv, m := setup(t, inventory.Option{Key: key, Value: "50479104"})

	out, err := m.Apply(context.Background(), "prod-a", enable(t))
	require.NoError(t, err)
	require.False(t, out.RestorePoint.Added())
	require.Equal(t, "50479104", out.RestorePoint.Previous)
	require.Equal(t, []inventory.Option{{Key: key, Value: "16924672"}}, inv.Options("prod-a"))
}

func TestApply_TimeoutKeepsSubmitted(t *testing.T) {
	inv, m := setup(t)
	inv.ScriptCluster("prod-a", memory.Step{Final: task.Running})

	out, err := m.Apply(context.Background(), "prod-a", enable(t))
	require.True(t, errors.Is(err, errs.ErrTaskTimeout))
	require.True(t, out.Submitted)
	require.NotNil(t, out.RestorePoint)
}

func TestApply_SubmitTransportError(t *testing.T) {
	inv, m := setup(t)
	inv.FailSubmitCluster("prod-a", errors.New("503 service unavailable"))

	out, err := m.Apply(context.Background(), "prod-a", enable(t))
	require.True(t, errors.Is(err, errs.ErrTransport))
	require.False(t, out.Submitted)
}

func TestRemove_RestoresVerbatim(t *testing.T) {
	orig := []inventory.Option{{Key: "x", Value: "1"}, {Key: key, Value: "50479104"}}
	inv, m := setup(t, orig...)
	req := enable(t)

	out, err := m.Apply(context.Background(), "prod-a", req)
	require.NoError(t, err)
	require.NoError(t, m.Remove(context.Background(), out.RestorePoint, req))
	require.Equal(t, orig, inv.Options("prod-a"))
}

func TestRemove_AbsentBecomesInverse(t *testing.T) {
	inv, m := setup(t)
	req := enable(t)

	out, err := m.Apply(context.Background(), "prod-a", req)
	require.NoError(t, err)
	require.NoError(t, m.Remove(context.Background(), out.RestorePoint, req))
	require.Equal(t, []inventory.Option{{Key: key, Value: "50479104"}}, inv.Options("prod-a"))
}
