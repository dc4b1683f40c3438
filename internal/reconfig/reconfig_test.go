package reconfig

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/secproto/internal/errs"
	"github.com/dropDatabas3/secproto/internal/inventory"
	"github.com/dropDatabas3/secproto/internal/inventory/memory"
	"github.com/dropDatabas3/secproto/internal/protocol"
	"github.com/dropDatabas3/secproto/internal/task"
)

var hostBudget = task.Budget{Interval: 20 * time.Second, MaxAttempts: 30}

func newInventory(t *testing.T) *memory.Inventory {
	t.Helper()
	inv, err := memory.New(memory.Config{
		Port:      8182,
		OptionKey: "das.config.vmacore.ssl.sslOptions",
		Values:    protocol.EncodedValues{Enable: "16924672", Disable: "50479104"},
	}, memory.SimpleFleet("prod-a", "esx-a", "esx-b", "esx-c"))
	require.NoError(t, err)
	return inv
}

func TestReconfigureAll_AllSucceed(t *testing.T) {
	inv := newInventory(t)
	inv.ScriptHost("esx-b", memory.Step{Polls: 3, Final: task.Success})
	r := New(inv, task.NewPoller(inv, task.NewFakeClock(time.Unix(0, 0)), "host"), hostBudget)

	res := r.ReconfigureAll(context.Background(), []string{"esx-a", "esx-b", "esx-c"})
	require.True(t, res.AllSucceeded())
	require.NoError(t, res.Err())
	require.Len(t, res.Hosts, 3)
	require.Equal(t, 4, res.Hosts[1].Attempts)
}

func TestReconfigureAll_TimeoutAndTransport(t *testing.T) {
	inv := newInventory(t)
	inv.ScriptHost("esx-c", memory.Step{Final: task.Running})
	inv.FailSubmitHost("esx-a", errors.New("connection refused"))
	r := New(inv, task.NewPoller(inv, task.NewFakeClock(time.Unix(0, 0)), "host"), hostBudget)

	res := r.ReconfigureAll(context.Background(), []string{"esx-a", "esx-b", "esx-c"})
	require.False(t, res.AllSucceeded())
	require.Equal(t, []string{"esx-a", "esx-c"}, res.Failed)
	require.True(t, errors.Is(res.Hosts[0].Err, errs.ErrTransport))
	require.False(t, res.Hosts[0].Submitted)
	require.NoError(t, res.Hosts[1].Err)
	require.True(t, errors.Is(res.Hosts[2].Err, errs.ErrTaskTimeout))
	require.Equal(t, 30, res.Hosts[2].Attempts)
}

// gated bloquea cada PollTask hasta que todos los hosts fueron enviados.
type gated struct {
	inventory.Client
	mu        sync.Mutex
	submitted int
	want      int
	early     bool
}

func (g *gated) ReconfigureHost(ctx context.Context, h string) (task.Handle, error) {
	g.mu.Lock()
	g.submitted++
	g.mu.Unlock()
	return g.Client.ReconfigureHost(ctx, h)
}

func (g *gated) PollTask(ctx context.Context, h task.Handle) (task.State, error) {
	g.mu.Lock()
	if g.submitted < g.want {
		g.early = true
	}
	g.mu.Unlock()
	return g.Client.PollTask(ctx, h)
}

func TestReconfigureAll_SubmitsBeforeAwaiting(t *testing.T) {
	g := &gated{Client: newInventory(t), want: 3}
	r := New(g, task.NewPoller(g, task.NewFakeClock(time.Unix(0, 0)), "host"), hostBudget)

	res := r.ReconfigureAll(context.Background(), []string{"esx-a", "esx-b", "esx-c"})
	require.True(t, res.AllSucceeded())
	require.False(t, g.early)
}
