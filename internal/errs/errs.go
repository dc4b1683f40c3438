// Package errs define las clases de error que el orquestador distingue.
//
// Cada error de componente se envuelve en *Error con su Kind; el outcome de
// cada cluster guarda el Kind para que el reporte final refleje toda falla.
package errs

import (
	"errors"
	"fmt"
)

// Kind clasifica un error por su política de propagación.
type Kind uint8

const (
	Other Kind = iota
	// Transport: conexión/auth contra un host o el endpoint de inventario.
	Transport
	// VersionUnsupported excluye la entidad; no es una falla para el usuario.
	VersionUnsupported
	// PreconditionInconsistent: clasificación MIXED, aborta solo ese cluster.
	PreconditionInconsistent
	TaskTimeout
	TaskError
	// RollbackFailed requiere intervención manual; nunca se reintenta.
	RollbackFailed
	Scan
	Config
	// VerifyMismatch: las tareas terminaron pero el set observado no es el pedido.
	VerifyMismatch
)

func (k Kind) String() string {
	switch k {
	case Transport:
		return "transport"
	case VersionUnsupported:
		return "version_unsupported"
	case PreconditionInconsistent:
		return "precondition_inconsistent"
	case TaskTimeout:
		return "task_timeout"
	case TaskError:
		return "task_error"
	case RollbackFailed:
		return "rollback_failed"
	case Scan:
		return "scan"
	case Config:
		return "config"
	case VerifyMismatch:
		return "verify_mismatch"
	default:
		return "other"
	}
}

// Sentinels para errors.Is: matchean cualquier *Error del mismo Kind.
var (
	ErrTransport                = &Error{Kind: Transport}
	ErrVersionUnsupported       = &Error{Kind: VersionUnsupported}
	ErrPreconditionInconsistent = &Error{Kind: PreconditionInconsistent}
	ErrTaskTimeout              = &Error{Kind: TaskTimeout}
	ErrTaskError                = &Error{Kind: TaskError}
	ErrRollbackFailed           = &Error{Kind: RollbackFailed}
	ErrScan                     = &Error{Kind: Scan}
	ErrConfig                   = &Error{Kind: Config}
	ErrVerifyMismatch           = &Error{Kind: VerifyMismatch}
)

// Error es el error estándar de los componentes.
type Error struct {
	Kind   Kind
	Op     string // operación, ej: "clusterconfig.apply"
	Entity string // cluster u host afectado
	Err    error  // causa
}

// E construye un *Error.
func E(kind Kind, op, entity string, err error) *Error {
	return &Error{Kind: kind, Op: op, Entity: entity, Err: err}
}

// Errorf construye un *Error con un mensaje formateado como causa.
func Errorf(kind Kind, op, entity, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Entity: entity, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Entity != "" {
		msg += " [" + e.Entity + "]"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matchea por Kind contra los sentinels (Op/Entity vacíos).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Op != "" || t.Entity != "" || t.Err != nil {
		return e == t
	}
	return e.Kind == t.Kind
}

// KindOf devuelve el Kind del primer *Error en la cadena, Other si no hay.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Other
}

// IsTaskFailure indica si err es una falla de tarea (timeout o error remoto).
func IsTaskFailure(err error) bool {
	k := KindOf(err)
	return k == TaskTimeout || k == TaskError
}
