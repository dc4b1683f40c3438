// Package report arma el reporte de la flota a partir de los outcomes de
// cada cluster y lo renderiza como tabla, CSV o JSON.
package report

import (
	"sync"
	"time"

	"golang.org/x/exp/slices"

	"github.com/dropDatabas3/secproto/internal/orchestrator"
	"github.com/dropDatabas3/secproto/internal/protocol"
)

// MissingAfter se muestra cuando un host no tiene snapshot posterior.
const MissingAfter = "NULL (check manually)"

// HostRow es el antes/después de un host.
type HostRow struct {
	Host   string `json:"host"`
	Before string `json:"before"`
	After  string `json:"after"`
	// Match indica si el set final es el pedido.
	Match bool `json:"match"`
}

// ClusterReport es la vista de reporte de un orchestrator.ClusterOutcome.
type ClusterReport struct {
	Cluster          string    `json:"cluster"`
	State            string    `json:"state"`
	Trail            []string  `json:"trail"`
	Classification   string    `json:"classification,omitempty"`
	SkipReason       string    `json:"skip_reason,omitempty"`
	Error            string    `json:"error,omitempty"`
	ErrorKind        string    `json:"error_kind,omitempty"`
	FailedHosts      []string  `json:"failed_hosts,omitempty"`
	OptionChanged    bool      `json:"option_changed"`
	RolledBack       bool      `json:"rolled_back"`
	RollbackVerified bool      `json:"rollback_verified"`
	ManualAction     bool      `json:"manual_action"`
	Hosts            []HostRow `json:"hosts"`
	ElapsedSeconds   float64   `json:"elapsed_seconds"`
}

// Summary cuenta clusters por estado terminal y hosts por coincidencia.
type Summary struct {
	Clusters       int            `json:"clusters"`
	ByState        map[string]int `json:"by_state"`
	Succeeded      int            `json:"succeeded"`
	Skipped        int            `json:"skipped"`
	Failed         int            `json:"failed"`
	RolledBack     int            `json:"rolled_back"`
	RollbackFailed int            `json:"rollback_failed"`
	Hosts          int            `json:"hosts"`
	HostsMatching  int            `json:"hosts_matching"`
	HostsChanged   int            `json:"hosts_changed"`
}

// FleetReport es el reporte de una corrida.
type FleetReport struct {
	RunID       string          `json:"run_id"`
	Intent      string          `json:"intent"`
	Requested   string          `json:"requested"`
	Port        int             `json:"port"`
	ServiceName string          `json:"service_name"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  time.Time       `json:"finished_at"`
	Endpoint    string          `json:"endpoint_error,omitempty"`
	Clusters    []ClusterReport `json:"clusters"`
	Summary     Summary         `json:"summary"`
}

// Meta describe el pedido, para el encabezado del reporte.
type Meta struct {
	Change      protocol.ChangeRequest
	Port        int
	ServiceName string
}

// Aggregator junta outcomes en orden de procesamiento. Implementa
// orchestrator.Sink.
type Aggregator struct {
	meta Meta

	mu       sync.Mutex
	outcomes []orchestrator.ClusterOutcome
}

func NewAggregator(meta Meta) *Aggregator { return &Aggregator{meta: meta} }

func (a *Aggregator) Record(oc orchestrator.ClusterOutcome) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.outcomes = append(a.outcomes, oc)
}

// Outcomes devuelve una copia de lo registrado.
func (a *Aggregator) Outcomes() []orchestrator.ClusterOutcome {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]orchestrator.ClusterOutcome(nil), a.outcomes...)
}

// Report arma el FleetReport con los datos de la corrida.
func (a *Aggregator) Report(run orchestrator.Run) FleetReport {
	fr := FleetReport{
		RunID:       run.ID,
		Intent:      a.meta.Change.Intent.String(),
		Requested:   a.meta.Change.Requested.String(),
		Port:        a.meta.Port,
		ServiceName: a.meta.ServiceName,
		StartedAt:   run.StartedAt,
		FinishedAt:  run.FinishedAt,
		Summary:     Summary{ByState: map[string]int{}},
	}
	if run.EndpointErr != nil {
		fr.Endpoint = run.EndpointErr.Error()
	}
	for _, oc := range a.Outcomes() {
		cr := clusterReport(oc, a.meta.Change.Requested)
		fr.Clusters = append(fr.Clusters, cr)
		fr.Summary.add(oc, cr)
	}
	return fr
}

func clusterReport(oc orchestrator.ClusterOutcome, requested protocol.Set) ClusterReport {
	cr := ClusterReport{
		Cluster:        oc.Cluster,
		State:          string(oc.State),
		SkipReason:     oc.SkipReason,
		Error:          oc.ErrString(),
		FailedHosts:    oc.FailedHosts,
		OptionChanged:  oc.OptionChanged,
		RolledBack:     oc.Rollback != nil,
		ManualAction:   oc.State == orchestrator.StateDoneRollbackFailed,
		ElapsedSeconds: oc.Elapsed.Seconds(),
	}
	if oc.Classification != 0 {
		cr.Classification = oc.Classification.String()
	}
	if oc.Err != nil {
		cr.ErrorKind = oc.ErrKind().String()
	}
	if oc.Rollback != nil {
		cr.RollbackVerified = oc.Rollback.Verified
	}
	for _, s := range oc.Trail {
		cr.Trail = append(cr.Trail, string(s))
	}

	final := oc.Final()
	for _, h := range hostNames(oc) {
		row := HostRow{Host: h, After: MissingAfter}
		if b, ok := oc.Before[h]; ok {
			row.Before = b.String()
		}
		if f, ok := final[h]; ok {
			row.After = f.String()
			row.Match = f.Equal(requested)
		}
		cr.Hosts = append(cr.Hosts, row)
	}
	return cr
}

// hostNames usa el orden de membresía y agrega, ordenados, los hosts que sólo
// aparecen en algún snapshot.
func hostNames(oc orchestrator.ClusterOutcome) []string {
	seen := map[string]bool{}
	out := append([]string(nil), oc.Hosts...)
	for _, h := range out {
		seen[h] = true
	}
	var extra []string
	for _, snap := range []map[string]protocol.Set{oc.Before, oc.Final()} {
		for h := range snap {
			if !seen[h] {
				seen[h] = true
				extra = append(extra, h)
			}
		}
	}
	slices.Sort(extra)
	return append(out, extra...)
}

func (s *Summary) add(oc orchestrator.ClusterOutcome, cr ClusterReport) {
	s.Clusters++
	s.ByState[cr.State]++
	switch oc.State {
	case orchestrator.StateDoneSuccess:
		s.Succeeded++
	case orchestrator.StateDoneRolledBack:
		s.RolledBack++
	case orchestrator.StateDoneRollbackFailed:
		s.RollbackFailed++
	case orchestrator.StateDoneFailed:
		s.Failed++
	default:
		if oc.State.IsSkip() {
			s.Skipped++
		}
	}
	for _, row := range cr.Hosts {
		s.Hosts++
		if row.Match {
			s.HostsMatching++
		}
		if row.After != MissingAfter && row.Before != row.After {
			s.HostsChanged++
		}
	}
}

// ExitCode resume la corrida: 0 si todo terminó bien o salteado, 1 si hubo
// rollback o falla sin mutación, 2 si algún rollback falló.
func (r FleetReport) ExitCode() int {
	switch {
	case r.Summary.RollbackFailed > 0:
		return 2
	case r.Summary.RolledBack > 0 || r.Summary.Failed > 0:
		return 1
	default:
		return 0
	}
}

// NeedsManualAction lista los clusters con rollback fallido.
func (r FleetReport) NeedsManualAction() []ClusterReport {
	var out []ClusterReport
	for _, c := range r.Clusters {
		if c.ManualAction {
			out = append(out, c)
		}
	}
	return out
}
