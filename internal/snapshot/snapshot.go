// Package snapshot captura el set de protocolos activo por host.
package snapshot

import (
	"context"
	"time"

	"github.com/dropDatabas3/secproto/internal/errs"
	"github.com/dropDatabas3/secproto/internal/observability/logger"
	"github.com/dropDatabas3/secproto/internal/protocol"
	"github.com/dropDatabas3/secproto/internal/scanner"
)

// Snapshot mapea nombre de host a su set observado.
type Snapshot map[string]protocol.Set

// Clone copia el snapshot en profundidad.
func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return nil
	}
	out := make(Snapshot, len(s))
	for h, set := range s {
		out[h] = set.Clone()
	}
	return out
}

// Strings renderiza cada set para reportes.
func (s Snapshot) Strings() map[string]string {
	out := make(map[string]string, len(s))
	for h, set := range s {
		out[h] = set.String()
	}
	return out
}

// Snapshotter consulta el scanner una vez por host.
type Snapshotter struct {
	scan scanner.Scanner
}

func New(s scanner.Scanner) *Snapshotter { return &Snapshotter{scan: s} }

// Take escanea hosts en orden. El primer host que falla corta la captura y
// devuelve un error Scan: nunca se entrega un snapshot parcial como completo.
func (s *Snapshotter) Take(ctx context.Context, hosts []string, port int) (Snapshot, error) {
	log := logger.From(ctx)
	out := make(Snapshot, len(hosts))
	for _, h := range hosts {
		if err := ctx.Err(); err != nil {
			return nil, errs.E(errs.Scan, "snapshot", h, err)
		}
		start := time.Now()
		names, err := s.scan.Scan(ctx, h, port)
		if err != nil {
			log.Warn("protocol scan failed", logger.Host(h), logger.Port(port), logger.Err(err))
			return nil, errs.E(errs.Scan, "snapshot", h, err)
		}
		set := protocol.NewSet(names...)
		out[h] = set
		log.Debug("protocols scanned", logger.Host(h), logger.Port(port),
			logger.Protocols(set.String()), logger.Duration(time.Since(start)))
	}
	return out, nil
}
