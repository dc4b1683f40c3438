// Package reconfig dispara y espera la reconfiguración de todos los hosts de
// un cluster en paralelo.
package reconfig

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/secproto/internal/errs"
	"github.com/dropDatabas3/secproto/internal/inventory"
	"github.com/dropDatabas3/secproto/internal/metrics"
	"github.com/dropDatabas3/secproto/internal/observability/logger"
	"github.com/dropDatabas3/secproto/internal/task"
)

// HostResult es el resultado de un host. Err es nil sólo si la tarea terminó
// en success.
type HostResult struct {
	Host      string
	Submitted bool
	Task      task.Handle
	Outcome   task.Outcome
	Attempts  int
	Err       error
}

// Result agrega los resultados en el orden de entrada.
type Result struct {
	Hosts  []HostResult
	Failed []string
}

// AllSucceeded es true sólo si cada host terminó en success.
func (r Result) AllSucceeded() bool { return len(r.Failed) == 0 }

// Err devuelve el error del primer host fallido, o nil.
func (r Result) Err() error {
	for _, h := range r.Hosts {
		if h.Err != nil {
			return h.Err
		}
	}
	return nil
}

// Reconfigurer usa un worker por host, sin límite: los clusters son chicos.
type Reconfigurer struct {
	inv    inventory.Client
	poller *task.Poller
	budget task.Budget
}

func New(inv inventory.Client, poller *task.Poller, budget task.Budget) *Reconfigurer {
	return &Reconfigurer{inv: inv, poller: poller, budget: budget}
}

// ReconfigureAll envía una tarea por host y recién después espera todas.
// Las dos fases cierran con una barrera; los workers nunca devuelven error al
// grupo, cada uno escribe sólo su propio slot. Un host cuyo envío falla por
// transporte cuenta como fallido y no se reintenta.
func (r *Reconfigurer) ReconfigureAll(ctx context.Context, hosts []string) Result {
	log := logger.From(ctx).With(logger.Component("reconfig"))
	results := make([]HostResult, len(hosts))

	var submit errgroup.Group
	for i, h := range hosts {
		i, h := i, h
		submit.Go(func() error {
			results[i] = HostResult{Host: h}
			hd, err := r.inv.ReconfigureHost(ctx, h)
			if err != nil {
				log.Warn("host reconfiguration not submitted", logger.Host(h), logger.Err(err))
				results[i].Outcome = task.OutcomeFailure
				results[i].Err = errs.E(errs.Transport, "reconfig.submit", h, err)
				return nil
			}
			results[i].Submitted = true
			results[i].Task = hd
			return nil
		})
	}
	_ = submit.Wait()
	log.Info("host reconfigurations submitted", logger.Count(len(hosts)))

	var await errgroup.Group
	for i := range results {
		if !results[i].Submitted {
			continue
		}
		i := i
		await.Go(func() error {
			hr := &results[i]
			hctx := logger.ToContext(ctx, log.With(logger.Host(hr.Host)))
			res := r.poller.Await(hctx, hr.Task, r.budget)
			hr.Outcome = res.Outcome
			hr.Attempts = res.Attempts
			hr.Err = res.AsError("reconfig.await", hr.Host)
			return nil
		})
	}
	_ = await.Wait()

	out := Result{Hosts: results}
	for _, hr := range results {
		if hr.Err != nil {
			out.Failed = append(out.Failed, hr.Host)
		}
	}
	if n := len(out.Failed); n > 0 {
		metrics.HostReconfigFailures.Add(float64(n))
		log.Warn("host reconfiguration failed", logger.Strings("failed_hosts", out.Failed))
	} else {
		log.Info("all hosts reconfigured", logger.Count(len(hosts)))
	}
	return out
}
