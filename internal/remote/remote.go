// Package remote define el contrato para ejecutar comandos en un host y
// controlar sus servicios.
package remote

import (
	"context"

	"github.com/dropDatabas3/secproto/internal/credentials"
	"github.com/dropDatabas3/secproto/internal/inventory"
)

// Result de un comando remoto.
type Result struct {
	Stdout     string
	ExitStatus int
}

// Executor corre comandos y maneja servicios de un host.
type Executor interface {
	inventory.ServiceController
	Run(ctx context.Context, host, command string, cred credentials.Credential) (Result, error)
}
