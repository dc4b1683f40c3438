// Package consistency compara sets observados contra el set pedido.
package consistency

import (
	"github.com/dropDatabas3/secproto/internal/protocol"
	"github.com/dropDatabas3/secproto/internal/snapshot"
)

// Classification de un cluster respecto del set pedido.
type Classification uint8

const (
	AllSatisfied Classification = iota + 1
	NoneSatisfied
	Mixed
)

func (c Classification) String() string {
	switch c {
	case AllSatisfied:
		return "ALL_SATISFIED"
	case NoneSatisfied:
		return "NONE_SATISFIED"
	case Mixed:
		return "MIXED"
	default:
		return "UNKNOWN"
	}
}

// AlreadySatisfied es igualdad de sets, sin importar orden.
func AlreadySatisfied(observed, requested protocol.Set) bool {
	return observed != nil && observed.Equal(requested)
}

// Classify evalúa cada host de hosts. Un host ausente del snapshot cuenta
// como no satisfecho. Sin hosts el resultado es AllSatisfied.
func Classify(hosts []string, observed snapshot.Snapshot, requested protocol.Set) Classification {
	var yes, no int
	for _, h := range hosts {
		if AlreadySatisfied(observed[h], requested) {
			yes++
		} else {
			no++
		}
	}
	switch {
	case no == 0:
		return AllSatisfied
	case yes == 0:
		return NoneSatisfied
	default:
		return Mixed
	}
}

// Unsatisfied lista, en orden, los hosts cuyo set no coincide con requested.
func Unsatisfied(hosts []string, observed snapshot.Snapshot, requested protocol.Set) []string {
	var out []string
	for _, h := range hosts {
		if !AlreadySatisfied(observed[h], requested) {
			out = append(out, h)
		}
	}
	return out
}

// Reverted lista los hosts cuyo set actual difiere de su propio set previo.
// Vacío significa que la reversión quedó verificada en todos.
func Reverted(hosts []string, before, after snapshot.Snapshot) []string {
	var out []string
	for _, h := range hosts {
		b, ok := before[h]
		if !ok || !AlreadySatisfied(after[h], b) {
			out = append(out, h)
		}
	}
	return out
}
