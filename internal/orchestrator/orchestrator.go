// Package orchestrator recorre los clusters de a uno y lleva cada cluster por
// la máquina de estados: snapshot, clasificación, mutación, reconfiguración
// de hosts, verificación y rollback.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/secproto/internal/clusterconfig"
	"github.com/dropDatabas3/secproto/internal/consistency"
	"github.com/dropDatabas3/secproto/internal/credentials"
	"github.com/dropDatabas3/secproto/internal/errs"
	"github.com/dropDatabas3/secproto/internal/inventory"
	"github.com/dropDatabas3/secproto/internal/metrics"
	"github.com/dropDatabas3/secproto/internal/observability/logger"
	"github.com/dropDatabas3/secproto/internal/protocol"
	"github.com/dropDatabas3/secproto/internal/reconfig"
	"github.com/dropDatabas3/secproto/internal/rollback"
	"github.com/dropDatabas3/secproto/internal/scanner"
	"github.com/dropDatabas3/secproto/internal/snapshot"
	"github.com/dropDatabas3/secproto/internal/task"
	"github.com/dropDatabas3/secproto/internal/versiongate"
)

// Request es el pedido de una corrida.
type Request struct {
	Change protocol.ChangeRequest
	Port   int
}

// Deps son los colaboradores. Gate y Credentials son opcionales.
type Deps struct {
	Inventory     inventory.Client
	Scanner       scanner.Scanner
	Gate          *versiongate.Gate
	Credentials   credentials.Store
	Clock         task.Clock
	ClusterBudget task.Budget
	HostBudget    task.Budget
}

// Orchestrator no procesa dos clusters en paralelo.
type Orchestrator struct {
	inv   inventory.Client
	gate  *versiongate.Gate
	creds credentials.Store
	snap  *snapshot.Snapshotter

	mutator *clusterconfig.Mutator
	hosts   *reconfig.Reconfigurer

	now func() time.Time
}

func New(d Deps) *Orchestrator {
	clock := d.Clock
	if clock == nil {
		clock = task.RealClock{}
	}
	snap := snapshot.New(d.Scanner)
	mut := clusterconfig.New(d.Inventory, task.NewPoller(d.Inventory, clock, "cluster"), d.ClusterBudget)
	hosts := reconfig.New(d.Inventory, task.NewPoller(d.Inventory, clock, "host"), d.HostBudget)
	return &Orchestrator{
		inv:     d.Inventory,
		gate:    d.Gate,
		creds:   d.Credentials,
		snap:    snap,
		mutator: mut,
		hosts:   hosts,
		now:     clock.Now,
	}
}

// compensator se arma por corrida porque depende del puerto pedido.
func (o *Orchestrator) compensator(port int) *rollback.Compensator {
	return rollback.New(o.inv, o.mutator, o.hosts, o.snap, port)
}

// Run procesa todos los clusters en orden. Sólo devuelve error si no se pudo
// empezar (endpoint o listado de clusters); las fallas de cada cluster
// quedan en su outcome. sink puede ser nil.
func (o *Orchestrator) Run(ctx context.Context, req Request, sink Sink) (Run, error) {
	run := Run{ID: uuid.NewString(), StartedAt: o.now()}
	log := logger.From(ctx).With(logger.RunID(run.ID))
	ctx = logger.ToContext(ctx, log)
	if sink == nil {
		sink = SinkFunc(func(ClusterOutcome) {})
	}
	comp := o.compensator(req.Port)

	if o.gate != nil {
		defer func() {
			if err := o.gate.Release(context.WithoutCancel(ctx)); err != nil {
				log.Error("remote access service left running on some hosts", logger.Err(err))
			}
		}()
	}

	clusters, err := o.discover(ctx, &run)
	if err != nil {
		return run, err
	}

	log.Info("run started", logger.String("intent", req.Change.Intent.String()),
		logger.Protocols(req.Change.Requested.String()), logger.Port(req.Port), logger.Count(len(clusters)))

	for _, c := range clusters {
		var oc ClusterOutcome
		switch {
		case run.EndpointErr != nil:
			oc = o.skipped(run.ID, c.Name, "endpoint version not supported", run.EndpointErr)
		case ctx.Err() != nil:
			oc = o.skipped(run.ID, c.Name, "run cancelled", ctx.Err())
		default:
			cctx := logger.ToContext(ctx, log.With(logger.Cluster(c.Name)))
			oc = o.processCluster(cctx, run.ID, c, req, comp)
		}
		metrics.ClusterOutcomes.WithLabelValues(string(oc.State)).Inc()
		run.Outcomes = append(run.Outcomes, oc)
		sink.Record(oc)
	}
	run.FinishedAt = o.now()
	log.Info("run finished", logger.Count(len(run.Outcomes)), logger.Duration(run.FinishedAt.Sub(run.StartedAt)))
	return run, nil
}

// discover chequea el endpoint y lista clusters. Un endpoint no soportado no
// es error: se anota en run y cada cluster sale salteado.
func (o *Orchestrator) discover(ctx context.Context, run *Run) ([]inventory.Cluster, error) {
	log := logger.From(ctx)
	if o.gate != nil {
		about, err := o.inv.About(ctx)
		if err != nil {
			return nil, errs.E(errs.Transport, "orchestrator.about", "", err)
		}
		if err := o.gate.Endpoint(ctx, about); err != nil {
			log.Warn("inventory endpoint not supported, no cluster will be changed",
				logger.String("version", about.Version), logger.String("build", about.Build), logger.Err(err))
			run.EndpointErr = err
		}
	}
	clusters, err := o.inv.ListClusters(ctx)
	if err != nil {
		return nil, errs.E(errs.Transport, "orchestrator.list_clusters", "", err)
	}
	return clusters, nil
}

func (o *Orchestrator) skipped(runID, cluster, reason string, err error) ClusterOutcome {
	now := o.now()
	return ClusterOutcome{
		RunID:      runID,
		Cluster:    cluster,
		State:      StateSkipped,
		Trail:      []State{StateSkipped},
		SkipReason: reason,
		Err:        err,
		StartedAt:  now,
	}
}

// prepared es el resultado de DISCOVER + SNAPSHOT_BEFORE para un cluster.
type prepared struct {
	hosts  []string
	before snapshot.Snapshot
	class  consistency.Classification
}

// prepare corre DISCOVER y SNAPSHOT_BEFORE; si el cluster termina acá deja
// oc en un estado terminal y devuelve ok=false.
func (o *Orchestrator) prepare(ctx context.Context, oc *ClusterOutcome, c inventory.Cluster, req Request) (prepared, bool) {
	log := logger.From(ctx)
	oc.enter(StateDiscover)

	skip := func(reason string, err error) (prepared, bool) {
		log.Warn("cluster skipped", logger.String("reason", reason), logger.Err(err))
		oc.enter(StateSkipped)
		oc.State, oc.SkipReason, oc.Err = StateSkipped, reason, err
		return prepared{}, false
	}

	if !c.HAEnabled {
		return skip("not enabled", nil)
	}
	members, err := o.inv.ListMemberHosts(ctx, c.Name)
	if err != nil {
		oc.enter(StateDoneFailed)
		oc.State, oc.Err = StateDoneFailed, errs.E(errs.Transport, "orchestrator.discover", c.Name, err)
		log.Error("could not list cluster hosts", logger.Err(err))
		return prepared{}, false
	}
	names := inventory.HostNames(members)
	oc.Hosts = names
	if len(names) == 0 {
		return skip("no connected hosts", nil)
	}
	if o.creds != nil && !o.creds.Covers(names) {
		return skip("credentials missing for some hosts", errs.E(errs.Config, "orchestrator.credentials", c.Name, fmt.Errorf("%d hosts without credentials", len(names))))
	}
	if o.gate != nil {
		if err := o.gate.CheckAll(ctx, names); err != nil {
			if rerr := o.gate.Release(context.WithoutCancel(ctx), names...); rerr != nil {
				log.Error("remote access service left running", logger.Err(rerr))
			}
			return skip("version not supported", err)
		}
	}

	oc.enter(StateSnapshotBefore)
	before, err := o.snap.Take(ctx, names, req.Port)
	if err != nil {
		oc.enter(StateDoneFailed)
		oc.State, oc.Err = StateDoneFailed, err
		log.Error("before snapshot failed", logger.Err(err))
		return prepared{}, false
	}
	oc.Before = before
	class := consistency.Classify(names, before, req.Change.Requested)
	oc.Classification = class
	return prepared{hosts: names, before: before, class: class}, true
}

// processCluster lleva un cluster hasta un estado terminal. El RestorePoint
// vive sólo dentro de esta llamada.
func (o *Orchestrator) processCluster(ctx context.Context, runID string, c inventory.Cluster, req Request, comp *rollback.Compensator) (oc ClusterOutcome) {
	log := logger.From(ctx)
	oc = ClusterOutcome{RunID: runID, Cluster: c.Name, StartedAt: o.now()}
	defer func() {
		oc.Elapsed = o.now().Sub(oc.StartedAt)
		log.Info("cluster finished", logger.State(string(oc.State)), logger.Duration(oc.Elapsed))
	}()

	p, ok := o.prepare(ctx, &oc, c, req)
	if !ok {
		return oc
	}

	switch p.class {
	case consistency.AllSatisfied:
		oc.enter(StateAlreadySatisfied)
		oc.After = p.before.Clone()
		oc.enter(StateDoneSuccess)
		oc.State = StateDoneSuccess
		log.Info("cluster already in requested state", logger.Protocols(req.Change.Requested.String()))
		return oc
	case consistency.Mixed:
		oc.enter(StateMixedAbort)
		oc.State = StateMixedAbort
		oc.SkipReason = "hosts disagree on current protocols"
		oc.Err = errs.E(errs.PreconditionInconsistent, "orchestrator.classify", c.Name,
			fmt.Errorf("hosts %v differ from %s", consistency.Unsatisfied(p.hosts, p.before, req.Change.Requested), req.Change.Requested))
		log.Warn("cluster hosts are inconsistent, skipping", logger.Err(oc.Err))
		return oc
	}
	oc.enter(StateNeedsChange)

	rp, err := o.change(ctx, &oc, c.Name, req)
	if err == nil {
		oc.enter(StateDoneSuccess)
		oc.State = StateDoneSuccess
		return oc
	}
	oc.Err = err
	if rp == nil {
		oc.enter(StateDoneFailed)
		oc.State = StateDoneFailed
		log.Error("cluster change not submitted", logger.Err(err))
		return oc
	}

	oc.enter(StateRollback)
	log.Warn("cluster change failed, rolling back", logger.Err(err))
	// El rollback corre aunque la corrida se haya cancelado; lo acotan los
	// presupuestos de los pollers.
	rec := comp.Rollback(context.WithoutCancel(ctx), rp, req.Change, p.before)
	oc.Rollback = &rec
	if rec.Verified {
		oc.enter(StateDoneRolledBack)
		oc.State = StateDoneRolledBack
	} else {
		oc.enter(StateDoneRollbackFailed)
		oc.State = StateDoneRollbackFailed
		oc.Err = errors.Join(rec.Err, err)
	}
	return oc
}

// change corre MUTATE_CLUSTER, RECONFIGURE_HOSTS, SNAPSHOT_AFTER y VERIFY.
// Devuelve el RestorePoint cuando algo pudo haber cambiado remotamente; nil
// significa que no hace falta rollback.
func (o *Orchestrator) change(ctx context.Context, oc *ClusterOutcome, cluster string, req Request) (*clusterconfig.RestorePoint, error) {
	log := logger.From(ctx)

	oc.enter(StateMutateCluster)
	applied, err := o.mutator.Apply(ctx, cluster, req.Change)
	oc.OptionChanged = applied.Changed
	if err != nil {
		if applied.Submitted {
			return applied.RestorePoint, err
		}
		return nil, err
	}
	rp := applied.RestorePoint

	// Desde acá los hosts pueden cambiar aunque la opción ya estuviera.
	oc.enter(StateReconfigureHosts)
	members, err := o.inv.ListMemberHosts(ctx, cluster)
	if err != nil {
		return rp, errs.E(errs.Transport, "orchestrator.reconfigure", cluster, err)
	}
	names := inventory.HostNames(members)
	oc.Hosts = names
	res := o.hosts.ReconfigureAll(ctx, names)
	oc.FailedHosts = res.Failed

	oc.enter(StateSnapshotAfter)
	after, snapErr := o.snap.Take(ctx, names, req.Port)
	oc.After = after

	oc.enter(StateVerify)
	if !res.AllSucceeded() {
		return rp, res.Err()
	}
	if snapErr != nil {
		return rp, snapErr
	}
	if bad := consistency.Unsatisfied(names, after, req.Change.Requested); len(bad) > 0 {
		oc.FailedHosts = bad
		return rp, errs.E(errs.VerifyMismatch, "orchestrator.verify", cluster,
			fmt.Errorf("hosts %v do not report %s", bad, req.Change.Requested))
	}
	log.Info("cluster change verified", logger.Count(len(names)), logger.Protocols(req.Change.Requested.String()))
	return rp, nil
}
