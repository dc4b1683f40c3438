package orchestrator

import (
	"context"

	"github.com/google/uuid"

	"github.com/dropDatabas3/secproto/internal/observability/logger"
)

// Check corre DISCOVER y SNAPSHOT_BEFORE sobre cada cluster y clasifica, sin
// mutar nada. Cada outcome termina en el estado en que se detuvo o con
// Classification cargada y State vacío.
func (o *Orchestrator) Check(ctx context.Context, req Request, sink Sink) (Run, error) {
	run := Run{ID: uuid.NewString(), StartedAt: o.now()}
	log := logger.From(ctx).With(logger.RunID(run.ID), logger.Op("check"))
	ctx = logger.ToContext(ctx, log)
	if sink == nil {
		sink = SinkFunc(func(ClusterOutcome) {})
	}
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
	for _, c := range clusters {
		var oc ClusterOutcome
		switch {
		case run.EndpointErr != nil:
			oc = o.skipped(run.ID, c.Name, "endpoint version not supported", run.EndpointErr)
		case ctx.Err() != nil:
			oc = o.skipped(run.ID, c.Name, "run cancelled", ctx.Err())
		default:
			cctx := logger.ToContext(ctx, log.With(logger.Cluster(c.Name)))
			oc = ClusterOutcome{RunID: run.ID, Cluster: c.Name, StartedAt: o.now()}
			if _, ok := o.prepare(cctx, &oc, c, req); ok {
				oc.After = oc.Before.Clone()
				logger.From(cctx).Info("cluster classified", logger.String("classification", oc.Classification.String()))
			}
			oc.Elapsed = o.now().Sub(oc.StartedAt)
		}
		run.Outcomes = append(run.Outcomes, oc)
		sink.Record(oc)
	}
	run.FinishedAt = o.now()
	return run, nil
}
