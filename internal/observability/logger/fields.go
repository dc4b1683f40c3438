package logger

import (
	"time"

	"go.uber.org/zap"
)

// =================================================================================
// CAMPOS ESTÁNDAR - FLOTA
// =================================================================================

// RunID crea un campo para el ID de la corrida.
func RunID(v string) zap.Field {
	return zap.String("run_id", v)
}

// Cluster crea un campo para el nombre del cluster.
func Cluster(v string) zap.Field {
	return zap.String("cluster", v)
}

// Host crea un campo para el nombre del host.
func Host(v string) zap.Field {
	return zap.String("host", v)
}

// Port crea un campo para el puerto monitoreado.
func Port(v int) zap.Field {
	return zap.Int("port", v)
}

// Protocols crea un campo para un set de protocolos ya renderizado.
func Protocols(v string) zap.Field {
	return zap.String("protocols", v)
}

// State crea un campo para el estado de la máquina de estados por cluster.
func State(v string) zap.Field {
	return zap.String("state", v)
}

// =================================================================================
// CAMPOS ESTÁNDAR - TAREAS REMOTAS
// =================================================================================

// TaskID crea un campo para el handle de una tarea asíncrona.
func TaskID(v string) zap.Field {
	return zap.String("task_id", v)
}

// TaskState crea un campo para el estado reportado de una tarea.
func TaskState(v string) zap.Field {
	return zap.String("task_state", v)
}

// Attempt crea un campo para el número de intento de polling.
func Attempt(v int) zap.Field {
	return zap.Int("attempt", v)
}

// Duration crea un campo para una duración.
func Duration(v time.Duration) zap.Field {
	return zap.Duration("duration", v)
}

// =================================================================================
// CAMPOS ESTÁNDAR - SISTEMA
// =================================================================================

// Component crea un campo para el componente/módulo.
func Component(v string) zap.Field {
	return zap.String("component", v)
}

// Op crea un campo para la operación actual.
func Op(v string) zap.Field {
	return zap.String("op", v)
}

// Err crea un campo para un error.
func Err(err error) zap.Field {
	return zap.Error(err)
}

// Count crea un campo para un conteo.
func Count(v int) zap.Field {
	return zap.Int("count", v)
}

// Key crea un campo genérico para una clave.
func Key(v string) zap.Field {
	return zap.String("key", v)
}

// Value crea un campo genérico para un valor (string).
func Value(v string) zap.Field {
	return zap.String("value", v)
}

// Any crea un campo genérico para cualquier tipo.
func Any(key string, v any) zap.Field {
	return zap.Any(key, v)
}

// String crea un campo string genérico.
func String(key, v string) zap.Field {
	return zap.String(key, v)
}

// Strings crea un campo de lista de strings.
func Strings(key string, v []string) zap.Field {
	return zap.Strings(key, v)
}

// Int crea un campo int genérico.
func Int(key string, v int) zap.Field {
	return zap.Int(key, v)
}

// Bool crea un campo bool genérico.
func Bool(key string, v bool) zap.Field {
	return zap.Bool(key, v)
}
