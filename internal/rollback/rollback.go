// Package rollback revierte un cluster cuyo cambio no quedó aplicado en
// todos los hosts.
package rollback

import (
	"context"
	"fmt"

	"github.com/dropDatabas3/secproto/internal/clusterconfig"
	"github.com/dropDatabas3/secproto/internal/consistency"
	"github.com/dropDatabas3/secproto/internal/errs"
	"github.com/dropDatabas3/secproto/internal/inventory"
	"github.com/dropDatabas3/secproto/internal/metrics"
	"github.com/dropDatabas3/secproto/internal/observability/logger"
	"github.com/dropDatabas3/secproto/internal/protocol"
	"github.com/dropDatabas3/secproto/internal/reconfig"
	"github.com/dropDatabas3/secproto/internal/snapshot"
)

// Record guarda lo que hizo un rollback, haya salido bien o no.
type Record struct {
	OptionRestored bool
	// OptionUntouched: la opción no se había modificado, no se restauró.
	OptionUntouched bool
	HostsPass      *reconfig.Result
	After          snapshot.Snapshot
	// Unreverted son los hosts cuyo set no volvió a su set previo.
	Unreverted []string
	Verified   bool
	Err        error
}

// Compensator no reintenta: un rollback fallido queda para intervención manual.
type Compensator struct {
	inv     inventory.Client
	mutator *clusterconfig.Mutator
	hosts   *reconfig.Reconfigurer
	snap    *snapshot.Snapshotter
	port    int
}

func New(inv inventory.Client, m *clusterconfig.Mutator, r *reconfig.Reconfigurer, s *snapshot.Snapshotter, port int) *Compensator {
	return &Compensator{inv: inv, mutator: m, hosts: r, snap: s, port: port}
}

// Rollback restaura la opción capturada en rp, vuelve a reconfigurar todos
// los hosts actuales del cluster y verifica que cada uno recuperó su set de
// before. Se asume un set previo uniforme en el cluster.
func (c *Compensator) Rollback(ctx context.Context, rp *clusterconfig.RestorePoint, req protocol.ChangeRequest, before snapshot.Snapshot) Record {
	rec := c.rollback(ctx, rp, req, before)
	result := "verified"
	if !rec.Verified {
		result = "failed"
	}
	metrics.Rollbacks.WithLabelValues(result).Inc()
	return rec
}

func (c *Compensator) rollback(ctx context.Context, rp *clusterconfig.RestorePoint, req protocol.ChangeRequest, before snapshot.Snapshot) Record {
	const op = "rollback"
	var rec Record
	if rp == nil {
		rec.Err = errs.E(errs.RollbackFailed, op, "", fmt.Errorf("no restore point"))
		return rec
	}
	log := logger.From(ctx).With(logger.Component("rollback"))
	fail := func(stage string, err error) Record {
		log.Error("rollback failed, manual intervention required", logger.String("stage", stage), logger.Err(err))
		rec.Err = errs.E(errs.RollbackFailed, op, rp.Cluster, fmt.Errorf("%s: %w", stage, err))
		return rec
	}

	if rp.Mutated {
		log.Warn("rolling back cluster option", logger.Bool("option_added", rp.Added()))
		if err := c.mutator.Remove(ctx, rp, req); err != nil {
			return fail("restore option", err)
		}
		rec.OptionRestored = true
	} else {
		log.Warn("cluster option was not modified, reconfiguring hosts only")
		rec.OptionUntouched = true
	}

	members, err := c.inv.ListMemberHosts(ctx, rp.Cluster)
	if err != nil {
		return fail("list hosts", err)
	}
	names := inventory.HostNames(members)
	pass := c.hosts.ReconfigureAll(ctx, names)
	rec.HostsPass = &pass

	after, err := c.snap.Take(ctx, names, c.port)
	if err != nil {
		return fail("snapshot", err)
	}
	rec.After = after

	if !pass.AllSucceeded() {
		return fail("reconfigure hosts", fmt.Errorf("hosts %v did not finish", pass.Failed))
	}
	if rec.Unreverted = consistency.Reverted(names, before, after); len(rec.Unreverted) > 0 {
		return fail("verify", fmt.Errorf("hosts %v not reverted", rec.Unreverted))
	}
	rec.Verified = true
	log.Info("rollback verified on all hosts", logger.Count(len(names)))
	return rec
}
