package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/secproto/internal/consistency"
	"github.com/dropDatabas3/secproto/internal/credentials"
	"github.com/dropDatabas3/secproto/internal/errs"
	"github.com/dropDatabas3/secproto/internal/inventory"
	"github.com/dropDatabas3/secproto/internal/inventory/memory"
	"github.com/dropDatabas3/secproto/internal/protocol"
	"github.com/dropDatabas3/secproto/internal/task"
	"github.com/dropDatabas3/secproto/internal/versiongate"
)

const (
	key  = "das.config.vmacore.ssl.sslOptions"
	port = 8182
)

var (
	values = protocol.EncodedValues{Enable: "16924672", Disable: "50479104"}
	hosts  = []string{"esx-a", "esx-b", "esx-c"}
)

type harness struct {
	inv   *memory.Inventory
	orch  *Orchestrator
	clock *task.FakeClock
}

func testDeps(inv inventory.Client, scan *memory.Inventory, clk *task.FakeClock) Deps {
	return Deps{
		Inventory:     inv,
		Scanner:       scan,
		Credentials:   credentials.Common("root", "secret"),
		Clock:         clk,
		ClusterBudget: task.Budget{Interval: 2 * time.Second, MaxAttempts: 10},
		HostBudget:    task.Budget{Interval: 20 * time.Second, MaxAttempts: 30},
	}
}

func newHarness(t *testing.T, f memory.Fleet, withGate bool) *harness {
	t.Helper()
	inv, err := memory.New(memory.Config{Port: port, OptionKey: key, Values: values, Service: "TSM-SSH"}, f)
	require.NoError(t, err)
	clk := task.NewFakeClock(time.Unix(1700000000, 0))
	d := testDeps(inv, inv, clk)
	creds := d.Credentials
	if withGate {
		d.Gate = versiongate.New(inv, creds, nil, versiongate.Options{
			Minimum: versiongate.Minimum{Version: "5.5.0", Update: "3", HostBuild: "3248547", EndpointBuild: "3252642"},
			Command: memory.VersionCommand,
			Service: "TSM-SSH",
		})
	}
	return &harness{inv: inv, orch: New(d), clock: clk}
}

func request(t *testing.T, intent protocol.Intent) Request {
	t.Helper()
	ch, err := protocol.NewChangeRequest(intent, key, values)
	require.NoError(t, err)
	return Request{Change: ch, Port: port}
}

func runOne(t *testing.T, h *harness, req Request) ClusterOutcome {
	t.Helper()
	run, err := h.orch.Run(context.Background(), req, nil)
	require.NoError(t, err)
	require.Len(t, run.Outcomes, 1)
	return run.Outcomes[0]
}

func TestRun_AllSucceed(t *testing.T) {
	h := newHarness(t, memory.SimpleFleet("prod-a", hosts...), true)
	req := request(t, protocol.Enable)

	oc := runOne(t, h, req)
	require.Equal(t, StateDoneSuccess, oc.State)
	require.True(t, oc.Success())
	require.NoError(t, oc.Err)
	require.Equal(t, consistency.NoneSatisfied, oc.Classification)
	require.True(t, oc.OptionChanged)
	for _, name := range hosts {
		require.True(t, oc.After[name].Equal(req.Change.Requested), name)
		require.True(t, oc.Before[name].Equal(protocol.Baseline()), name)
	}
	require.Equal(t, []State{StateDiscover, StateSnapshotBefore, StateNeedsChange, StateMutateCluster,
		StateReconfigureHosts, StateSnapshotAfter, StateVerify, StateDoneSuccess}, oc.Trail)
	require.Equal(t, []inventory.Option{{Key: key, Value: "16924672"}}, h.inv.Options("prod-a"))
}

func TestRun_Idempotent(t *testing.T) {
	h := newHarness(t, memory.SimpleFleet("prod-a", hosts...), false)
	req := request(t, protocol.Enable)

	first := runOne(t, h, req)
	require.Equal(t, StateDoneSuccess, first.State)
	calls := h.inv.Calls()

	second := runOne(t, h, req)
	require.Equal(t, StateDoneSuccess, second.State)
	require.Contains(t, second.Trail, StateAlreadySatisfied)
	require.Equal(t, calls, h.inv.Calls())
	for _, name := range hosts {
		require.True(t, second.Before[name].Equal(second.After[name]), name)
	}
}

func TestRun_MixedAbortsWithoutMutation(t *testing.T) {
	f := memory.SimpleFleet("prod-a", hosts...)
	f.Clusters[0].Hosts[0].Protocols = []string{"SSLv3", "TLSv1.0", "TLSv1.1", "TLSv1.2"}
	f.Clusters[0].Hosts[1].Protocols = []string{"SSLv3", "TLSv1.0", "TLSv1.1", "TLSv1.2"}
	h := newHarness(t, f, false)

	oc := runOne(t, h, request(t, protocol.Enable))
	require.Equal(t, StateMixedAbort, oc.State)
	require.True(t, oc.State.IsSkip())
	require.Equal(t, consistency.Mixed, oc.Classification)
	require.True(t, errors.Is(oc.Err, errs.ErrPreconditionInconsistent))
	calls := h.inv.Calls()
	require.Empty(t, calls.SetOptions)
	require.Empty(t, calls.Reconfigure)
}

func TestRun_HostTimeoutRollsBack(t *testing.T) {
	h := newHarness(t, memory.SimpleFleet("prod-a", hosts...), false)
	h.inv.ScriptHost("esx-c", memory.Step{Final: task.Running}, memory.Step{Final: task.Success})
	req := request(t, protocol.Enable)

	oc := runOne(t, h, req)
	require.Equal(t, StateDoneRolledBack, oc.State)
	require.Contains(t, oc.Trail, StateRollback)
	require.Equal(t, []string{"esx-c"}, oc.FailedHosts)
	require.True(t, errors.Is(oc.Err, errs.ErrTaskTimeout))
	require.NotNil(t, oc.Rollback)
	require.True(t, oc.Rollback.Verified)

	// La opción no existía: queda explícita con el valor inverso.
	require.Equal(t, []inventory.Option{{Key: key, Value: "50479104"}}, h.inv.Options("prod-a"))
	for _, name := range hosts {
		require.Equal(t, 2, h.inv.Calls().Reconfigure[name], name)
		require.True(t, oc.Final()[name].Equal(oc.Before[name]), name)
	}
	// Sólo esperamos lo que el presupuesto permite: 29 esperas de 20s.
	require.GreaterOrEqual(t, h.clock.Slept(), 29*20*time.Second)
}

func TestRun_RollbackFailure(t *testing.T) {
	h := newHarness(t, memory.SimpleFleet("prod-a", hosts...), false)
	h.inv.ScriptHost("esx-b", memory.Step{Final: task.Error})

	oc := runOne(t, h, request(t, protocol.Enable))
	require.Equal(t, StateDoneRollbackFailed, oc.State)
	require.Equal(t, errs.RollbackFailed, oc.ErrKind())
	require.False(t, oc.Rollback.Verified)
}

func TestRun_ExistingOptionRestoredVerbatim(t *testing.T) {
	f := memory.SimpleFleet("prod-a", hosts...)
	orig := []inventory.Option{{Key: "das.config.fdm.isolationPolicyDelaySec", Value: "30"}, {Key: key, Value: "16924672"}}
	f.Clusters[0].Options = orig
	h := newHarness(t, f, false)
	h.inv.ScriptHost("esx-a", memory.Step{Final: task.Error}, memory.Step{Final: task.Success})

	oc := runOne(t, h, request(t, protocol.Disable))
	require.Equal(t, StateDoneRolledBack, oc.State)
	require.Equal(t, orig, h.inv.Options("prod-a"))
	for _, name := range hosts {
		require.True(t, h.inv.Protocols(name).Contains(protocol.SSLv3), name)
	}
}

func TestRun_ClusterSubmitRejected(t *testing.T) {
	h := newHarness(t, memory.SimpleFleet("prod-a", hosts...), false)
	h.inv.FailSubmitCluster("prod-a", errors.New("403 forbidden"))

	oc := runOne(t, h, request(t, protocol.Enable))
	require.Equal(t, StateDoneFailed, oc.State)
	require.Nil(t, oc.Rollback)
	require.Equal(t, errs.Transport, oc.ErrKind())
	require.Empty(t, h.inv.Calls().Reconfigure)
}

func TestRun_ClusterTaskTimeoutRollsBack(t *testing.T) {
	h := newHarness(t, memory.SimpleFleet("prod-a", hosts...), false)
	h.inv.ScriptCluster("prod-a", memory.Step{Final: task.Running}, memory.Step{Final: task.Success})

	oc := runOne(t, h, request(t, protocol.Enable))
	require.Equal(t, StateDoneRolledBack, oc.State)
	require.Equal(t, []State{StateDiscover, StateSnapshotBefore, StateNeedsChange, StateMutateCluster,
		StateRollback, StateDoneRolledBack}, oc.Trail)
	require.Equal(t, 1, h.inv.Calls().Reconfigure["esx-a"])
}

func TestRun_SkipsAndContinues(t *testing.T) {
	f := memory.SimpleFleet("prod-a", hosts...)
	f.Clusters = append([]memory.ClusterSpec{
		{Name: "no-ha", HAEnabled: false, Hosts: []memory.HostSpec{{Name: "esx-x", Version: "5.5.0", Update: "3", Build: "3248547"}}},
		{Name: "old", HAEnabled: true, Hosts: []memory.HostSpec{{Name: "esx-o", Version: "5.5.0", Update: "2", Build: "2068190"}}},
		{Name: "empty", HAEnabled: true, Hosts: []memory.HostSpec{{Name: "esx-d", Disconnected: true}}},
		{Name: "broken", HAEnabled: true, Hosts: []memory.HostSpec{{Name: "esx-k", Version: "5.5.0", Update: "3", Build: "3248547", SSHRunning: true, Tasks: []memory.Step{{Final: task.Error}}}}},
	}, f.Clusters...)
	h := newHarness(t, f, true)

	run, err := h.orch.Run(context.Background(), request(t, protocol.Enable), nil)
	require.NoError(t, err)
	require.Len(t, run.Outcomes, 5)

	got := map[string]ClusterOutcome{}
	for _, oc := range run.Outcomes {
		got[oc.Cluster] = oc
	}
	require.Equal(t, "not enabled", got["no-ha"].SkipReason)
	require.Equal(t, StateSkipped, got["old"].State)
	require.Equal(t, errs.VersionUnsupported, got["old"].ErrKind())
	require.Equal(t, "no connected hosts", got["empty"].SkipReason)
	require.Equal(t, StateDoneRollbackFailed, got["broken"].State)
	require.Equal(t, StateDoneSuccess, got["prod-a"].State)

	// El gate arrancó SSH en esx-o; al terminar la corrida ya no corre.
	require.Equal(t, inventory.ServiceStopped, h.inv.Service("esx-o", "TSM-SSH"))
}

func TestRun_EndpointNotSupported(t *testing.T) {
	f := memory.SimpleFleet("prod-a", hosts...)
	f.About.Build = "2063318"
	h := newHarness(t, f, true)

	run, err := h.orch.Run(context.Background(), request(t, protocol.Enable), nil)
	require.NoError(t, err)
	require.Error(t, run.EndpointErr)
	require.Equal(t, StateSkipped, run.Outcomes[0].State)
	require.Empty(t, h.inv.Calls().SetOptions)
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	h := newHarness(t, memory.SimpleFleet("prod-a", hosts...), false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var seen []string
	run, err := h.orch.Run(ctx, request(t, protocol.Enable), SinkFunc(func(oc ClusterOutcome) { seen = append(seen, oc.Cluster) }))
	require.NoError(t, err)
	require.Equal(t, StateSkipped, run.Outcomes[0].State)
	require.Equal(t, []string{"prod-a"}, seen)
	require.Empty(t, h.inv.Calls().SetOptions)
}

func TestRun_ScanFailureBeforeChange(t *testing.T) {
	h := newHarness(t, memory.SimpleFleet("prod-a", hosts...), false)
	h.inv.FailScan("esx-b", errors.New("handshake timeout"))

	oc := runOne(t, h, request(t, protocol.Enable))
	require.Equal(t, StateDoneFailed, oc.State)
	require.Equal(t, errs.Scan, oc.ErrKind())
	require.Empty(t, h.inv.Calls().SetOptions)
}

func TestCheck_ClassifiesWithoutMutation(t *testing.T) {
	f := memory.SimpleFleet("prod-a", hosts...)
	f.Clusters[0].Hosts[2].Protocols = []string{"SSLv3", "TLSv1.0", "TLSv1.1", "TLSv1.2"}
	h := newHarness(t, f, false)

	run, err := h.orch.Check(context.Background(), request(t, protocol.Disable), nil)
	require.NoError(t, err)
	require.Equal(t, consistency.Mixed, run.Outcomes[0].Classification)
	require.Empty(t, h.inv.Calls().SetOptions)
	require.Empty(t, h.inv.Calls().Reconfigure)
}

// cancellingInventory cancela la corrida en el primer envío de reconfiguración.
type cancellingInventory struct {
	*memory.Inventory
	once   sync.Once
	cancel context.CancelFunc
}

func (c *cancellingInventory) ReconfigureHost(ctx context.Context, name string) (task.Handle, error) {
	c.once.Do(c.cancel)
	return c.Inventory.ReconfigureHost(ctx, name)
}

func TestRun_CancelledDuringReconfigureStillRollsBack(t *testing.T) {
	inv, err := memory.New(memory.Config{Port: port, OptionKey: key, Values: values}, memory.SimpleFleet("prod-a", hosts...))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wrapped := &cancellingInventory{Inventory: inv, cancel: cancel}
	orch := New(testDeps(wrapped, inv, task.NewFakeClock(time.Unix(1700000000, 0))))

	run, err := orch.Run(ctx, request(t, protocol.Enable), nil)
	require.NoError(t, err)
	require.Len(t, run.Outcomes, 1)
	oc := run.Outcomes[0]

	require.Equal(t, StateDoneRolledBack, oc.State)
	require.True(t, errors.Is(oc.Err, errs.ErrTaskTimeout))
	require.NotNil(t, oc.Rollback)
	require.True(t, oc.Rollback.OptionRestored)
	require.True(t, oc.Rollback.Verified)
	require.Equal(t, []inventory.Option{{Key: key, Value: "50479104"}}, inv.Options("prod-a"))
	for _, name := range hosts {
		require.Equal(t, 2, inv.Calls().Reconfigure[name], name)
		require.True(t, inv.Protocols(name).Equal(protocol.Baseline()), name)
	}
}
