package orchestrator

import (
	"time"

	"github.com/dropDatabas3/secproto/internal/consistency"
	"github.com/dropDatabas3/secproto/internal/errs"
	"github.com/dropDatabas3/secproto/internal/rollback"
	"github.com/dropDatabas3/secproto/internal/snapshot"
)

// ClusterOutcome es el registro final de un cluster. Toda falla del cluster
// queda en Err.
type ClusterOutcome struct {
	RunID          string
	Cluster        string
	Hosts          []string
	Before         snapshot.Snapshot
	After          snapshot.Snapshot
	Classification consistency.Classification
	State          State
	Trail          []State
	SkipReason     string
	FailedHosts    []string
	OptionChanged  bool
	Rollback       *rollback.Record
	Err            error
	StartedAt      time.Time
	Elapsed        time.Duration
}

// Success es true sólo para DONE_SUCCESS.
func (o ClusterOutcome) Success() bool { return o.State == StateDoneSuccess }

// ErrKind clasifica Err; Other si no hay error.
func (o ClusterOutcome) ErrKind() errs.Kind {
	if o.Err == nil {
		return errs.Other
	}
	return errs.KindOf(o.Err)
}

// ErrString es "" si no hay error.
func (o ClusterOutcome) ErrString() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Final es el snapshot que refleja el estado al terminar: el posterior al
// rollback si lo hubo.
func (o ClusterOutcome) Final() snapshot.Snapshot {
	if o.Rollback != nil && o.Rollback.After != nil {
		return o.Rollback.After
	}
	return o.After
}

func (o *ClusterOutcome) enter(s State) { o.Trail = append(o.Trail, s) }

// Run es el resultado de una corrida completa.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Outcomes   []ClusterOutcome
	// EndpointErr no es nil si el endpoint no pasó el version gate.
	EndpointErr error
}

// Sink recibe cada outcome apenas se finaliza.
type Sink interface {
	Record(ClusterOutcome)
}

// SinkFunc adapta una función a Sink.
type SinkFunc func(ClusterOutcome)

func (f SinkFunc) Record(o ClusterOutcome) { f(o) }
