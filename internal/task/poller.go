package task

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/dropDatabas3/secproto/internal/errs"
	"github.com/dropDatabas3/secproto/internal/metrics"
	"github.com/dropDatabas3/secproto/internal/observability/logger"
)

// Source consulta el estado de una tarea remota.
type Source interface {
	PollTask(ctx context.Context, h Handle) (State, error)
}

// Result describe cómo terminó una espera.
type Result struct {
	Outcome  Outcome
	State    State // último estado observado
	Attempts int
	Err      error
}

func (r Result) OK() bool { return r.Outcome == OutcomeSuccess }

// AsError traduce un resultado no exitoso a un *errs.Error.
func (r Result) AsError(op, entity string) error {
	switch r.Outcome {
	case OutcomeSuccess:
		return nil
	case OutcomeTimeout:
		return errs.E(errs.TaskTimeout, op, entity, r.Err)
	default:
		if r.Err != nil && errs.KindOf(r.Err) == errs.Transport {
			return errs.E(errs.Transport, op, entity, r.Err)
		}
		return errs.E(errs.TaskError, op, entity, r.Err)
	}
}

// Poller espera tareas con un presupuesto fijo.
type Poller struct {
	src   Source
	clock Clock
	scope string
}

// NewPoller crea un poller; scope etiqueta métricas y logs ("cluster" | "host").
func NewPoller(src Source, clock Clock, scope string) *Poller {
	if clock == nil {
		clock = RealClock{}
	}
	return &Poller{src: src, clock: clock, scope: scope}
}

// Await consulta h hasta un estado terminal o hasta agotar b.
//
// Cada consulta no terminal consume un intento y sólo se duerme si quedan
// intentos, así la espera total nunca supera b.Ceiling(). Un error del
// transporte al consultar se reporta como Failure. Cancelar ctx deja de
// esperar y se reporta como Timeout; la tarea remota no se retracta.
func (p *Poller) Await(ctx context.Context, h Handle, b Budget) Result {
	log := logger.From(ctx).With(logger.TaskID(h.ID), logger.Component("task."+p.scope))
	start := p.clock.Now()
	res := p.await(ctx, h, b, log)
	metrics.ObserveTask(p.scope, res.Outcome.String(), p.clock.Now().Sub(start).Seconds())
	return res
}

func (p *Poller) await(ctx context.Context, h Handle, b Budget, log *zap.Logger) Result {
	if err := b.Validate(); err != nil {
		return Result{Outcome: OutcomeFailure, Err: errs.E(errs.Config, "task.await", h.ID, err)}
	}
	remaining := b.MaxAttempts
	var last State
	for attempt := 1; ; attempt++ {
		st, err := p.src.PollTask(ctx, h)
		if err != nil {
			if ctx.Err() != nil {
				return Result{Outcome: OutcomeTimeout, State: last, Attempts: attempt, Err: ctx.Err()}
			}
			log.Warn("task poll failed", logger.Attempt(attempt), logger.Err(err))
			return Result{Outcome: OutcomeFailure, State: last, Attempts: attempt, Err: err}
		}
		last = st
		log.Debug("task polled", logger.Attempt(attempt), logger.TaskState(string(st)))

		switch st {
		case Success:
			return Result{Outcome: OutcomeSuccess, State: st, Attempts: attempt}
		case Error:
			return Result{Outcome: OutcomeFailure, State: st, Attempts: attempt, Err: errors.New("remote task reported error")}
		}

		remaining--
		if remaining <= 0 {
			log.Warn("task did not finish within budget", logger.Attempt(attempt), logger.TaskState(string(st)))
			return Result{Outcome: OutcomeTimeout, State: st, Attempts: attempt}
		}
		if err := p.clock.Sleep(ctx, b.Interval); err != nil {
			log.Warn("stopped waiting for task", logger.Err(err))
			return Result{Outcome: OutcomeTimeout, State: st, Attempts: attempt, Err: err}
		}
	}
}
