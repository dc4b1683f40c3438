// Command secproto habilita o deshabilita protocolos legacy en el puerto de
// HA de cada cluster del inventario, con rollback si la verificación falla.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/secproto/internal/observability/logger"
)

var version = "dev"

// Códigos de salida.
const (
	exitOK             = 0
	exitRolledBack     = 1
	exitRollbackFailed = 2
	exitSetup          = 3
)

// exitError lleva el código de salida hasta main.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func setupErr(err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: exitSetup, err: err}
}

func newRoot() *cobra.Command {
	var f flags
	root := &cobra.Command{
		Use:           "secproto",
		Short:         "Reconfigura los protocolos SSL/TLS del puerto de HA en toda la flota",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	f.register(root)

	root.AddCommand(
		applyCmd(&f),
		checkCmd(&f),
		hostsfileCmd(&f),
		encryptCmd(),
	)
	return root
}

func main() {
	_ = godotenv.Load(".env")

	err := newRoot().Execute()
	_ = logger.Sync()
	if err == nil {
		return
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil && ee.code != exitRolledBack && ee.code != exitRollbackFailed {
			fmt.Fprintln(os.Stderr, "error:", ee.err)
		}
		os.Exit(ee.code)
	}
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(exitSetup)
}
