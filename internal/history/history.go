// Package history persiste el reporte de cada corrida. Un fallo al guardar
// nunca cambia el resultado de la corrida; el llamador solo lo registra.
package history

import (
	"context"

	"github.com/dropDatabas3/secproto/internal/report"
)

// Store guarda un FleetReport completo.
type Store interface {
	Save(ctx context.Context, fr report.FleetReport) error
	Close()
}

// Noop se usa cuando no hay DSN configurado.
type Noop struct{}

func (Noop) Save(context.Context, report.FleetReport) error { return nil }
func (Noop) Close()                                         {}
