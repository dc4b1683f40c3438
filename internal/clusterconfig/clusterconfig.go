// Package clusterconfig agrega, reemplaza y restaura la opción avanzada que
// controla los protocolos de un cluster.
package clusterconfig

import (
	"context"
	"fmt"

	"github.com/dropDatabas3/secproto/internal/errs"
	"github.com/dropDatabas3/secproto/internal/inventory"
	"github.com/dropDatabas3/secproto/internal/observability/logger"
	"github.com/dropDatabas3/secproto/internal/protocol"
	"github.com/dropDatabas3/secproto/internal/task"
)

// RestorePoint es la configuración avanzada del cluster antes de mutarla.
// Pertenece a una sola pasada sobre un cluster y no se reutiliza.
type RestorePoint struct {
	Cluster string
	Key     string
	Options []inventory.Option
	// HadOption indica si la clave existía antes del cambio.
	HadOption bool
	Previous  string
	// Mutated indica que Apply envió la opción nueva. Sin mutación no hay
	// nada que restaurar.
	Mutated bool
}

// Added indica si la opción fue agregada por este cambio.
func (rp *RestorePoint) Added() bool { return !rp.HadOption }

// Applied describe lo que hizo Apply.
type Applied struct {
	RestorePoint *RestorePoint
	// Changed es false cuando la clave ya tenía el valor pedido.
	Changed bool
	// Submitted indica que el inventario aceptó la tarea: la mutación puede
	// haber llegado aunque la tarea falle o no termine.
	Submitted bool
	Task      task.Handle
}

// Mutator nunca corre dos mutaciones a la vez sobre el mismo cluster: los
// clusters se procesan de a uno.
type Mutator struct {
	inv    inventory.Client
	poller *task.Poller
	budget task.Budget
}

func New(inv inventory.Client, poller *task.Poller, budget task.Budget) *Mutator {
	return &Mutator{inv: inv, poller: poller, budget: budget}
}

// Apply lee las opciones, captura el RestorePoint y, si la clave no tiene el
// valor pedido, la reemplaza o agrega y espera la tarea con el presupuesto
// de cluster.
func (m *Mutator) Apply(ctx context.Context, cluster string, req protocol.ChangeRequest) (Applied, error) {
	const op = "clusterconfig.apply"
	log := logger.From(ctx).With(logger.Component("clusterconfig"), logger.Key(req.OptionKey))

	opts, err := m.inv.GetAdvancedOptions(ctx, cluster)
	if err != nil {
		return Applied{}, errs.E(errs.Transport, op, cluster, err)
	}
	prev, had := inventory.Lookup(opts, req.OptionKey)
	rp := &RestorePoint{
		Cluster:   cluster,
		Key:       req.OptionKey,
		Options:   inventory.CloneOptions(opts),
		HadOption: had,
		Previous:  prev,
	}
	out := Applied{RestorePoint: rp}

	want := req.Value()
	if had && prev == want {
		log.Info("cluster option already set", logger.Value(want))
		return out, nil
	}

	next := withOption(opts, req.OptionKey, want)
	h, err := m.inv.SetAdvancedOptions(ctx, cluster, next)
	if err != nil {
		return out, errs.E(errs.Transport, op, cluster, err)
	}
	out.Changed, out.Submitted, out.Task = true, true, h
	rp.Mutated = true
	log.Info("cluster option submitted", logger.Value(want), logger.Bool("replaced", had), logger.TaskID(h.ID))

	res := m.poller.Await(ctx, h, m.budget)
	if err := res.AsError(op, cluster); err != nil {
		return out, err
	}
	return out, nil
}

// Remove restaura la opción capturada en rp. Si la clave existía se
// restaura la lista verbatim; si no, queda explícita con el valor inverso
// del cambio pedido.
func (m *Mutator) Remove(ctx context.Context, rp *RestorePoint, req protocol.ChangeRequest) error {
	const op = "clusterconfig.remove"
	if rp == nil {
		return errs.E(errs.RollbackFailed, op, "", fmt.Errorf("no restore point"))
	}
	log := logger.From(ctx).With(logger.Component("clusterconfig"), logger.Key(rp.Key))

	var restore []inventory.Option
	if rp.HadOption {
		restore = inventory.CloneOptions(rp.Options)
	} else {
		restore = withOption(rp.Options, rp.Key, req.InverseValue())
	}

	h, err := m.inv.SetAdvancedOptions(ctx, rp.Cluster, restore)
	if err != nil {
		return errs.E(errs.Transport, op, rp.Cluster, err)
	}
	log.Info("cluster option restore submitted", logger.Bool("had_option", rp.HadOption), logger.TaskID(h.ID))
	return m.poller.Await(ctx, h, m.budget).AsError(op, rp.Cluster)
}

// withOption devuelve una copia de opts con key=value, reemplazando si existe.
func withOption(opts []inventory.Option, key, value string) []inventory.Option {
	out := make([]inventory.Option, 0, len(opts)+1)
	found := false
	for _, o := range opts {
		if o.Key == key {
			o.Value = value
			found = true
		}
		out = append(out, o)
	}
	if !found {
		out = append(out, inventory.Option{Key: key, Value: value})
	}
	return out
}
