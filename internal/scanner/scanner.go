// Package scanner define el contrato del inspector de protocolos de un puerto.
package scanner

import "context"

// Scanner devuelve los protocolos que el puerto acepta, con los nombres tal
// como los reporta la herramienta (ej. "TLSv1.0"). La normalización es del
// llamador.
type Scanner interface {
	Scan(ctx context.Context, host string, port int) ([]string, error)
}

// Func adapta una función a Scanner.
type Func func(ctx context.Context, host string, port int) ([]string, error)

func (f Func) Scan(ctx context.Context, host string, port int) ([]string, error) {
	return f(ctx, host, port)
}
