// Package task implementa el poller acotado de tareas remotas asíncronas.
//
// Una tarea avanza queued -> running -> {success | error}. Await la consulta
// a intervalo fijo y nunca espera más que el presupuesto: al agotarlo
// devuelve Timeout, que el llamador trata como falla.
package task

import (
	"fmt"
	"strings"
	"time"
)

// State es el estado remoto de una tarea.
type State string

const (
	Queued  State = "queued"
	Running State = "running"
	Success State = "success"
	Error   State = "error"
)

// Terminal indica si el estado no cambia más.
func (s State) Terminal() bool { return s == Success || s == Error }

// ParseState acepta los nombres en cualquier capitalización.
func ParseState(v string) (State, error) {
	switch s := State(strings.ToLower(v)); s {
	case Queued, Running, Success, Error:
		return s, nil
	}
	return "", fmt.Errorf("estado de tarea desconocido %q", v)
}

// Handle es la referencia opaca a una tarea remota.
type Handle struct {
	ID string `json:"id"`
}

func (h Handle) String() string { return h.ID }

// Outcome es el resultado de esperar una tarea.
type Outcome uint8

const (
	OutcomeSuccess Outcome = iota + 1
	OutcomeFailure
	OutcomeTimeout
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Budget acota la espera: como máximo MaxAttempts consultas separadas por Interval.
type Budget struct {
	Interval    time.Duration `yaml:"interval"`
	MaxAttempts int           `yaml:"max_attempts"`
}

// Ceiling es la espera máxima entre la primera y la última consulta.
func (b Budget) Ceiling() time.Duration {
	if b.MaxAttempts <= 1 {
		return 0
	}
	return time.Duration(b.MaxAttempts-1) * b.Interval
}

func (b Budget) Validate() error {
	if b.Interval <= 0 {
		return fmt.Errorf("interval debe ser > 0 (got %s)", b.Interval)
	}
	if b.MaxAttempts <= 0 {
		return fmt.Errorf("max_attempts debe ser > 0 (got %d)", b.MaxAttempts)
	}
	return nil
}
