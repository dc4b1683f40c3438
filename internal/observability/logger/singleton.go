package logger

import (
	"sync"

	"go.uber.org/zap"
)

var (
	mu       sync.RWMutex
	once     sync.Once
	instance *zap.Logger
)

// Init inicializa el logger singleton con la configuración dada.
// Es idempotente: solo la primera llamada tiene efecto.
func Init(cfg Config) {
	once.Do(func() {
		l := build(cfg)
		mu.Lock()
		instance = l
		mu.Unlock()
	})
}

// L retorna el logger singleton.
// Si Init() no fue llamado, crea un logger por defecto (dev, info).
func L() *zap.Logger {
	mu.RLock()
	l := instance
	mu.RUnlock()
	if l == nil {
		Init(Config{Env: "dev", Level: "info"})
		mu.RLock()
		l = instance
		mu.RUnlock()
	}
	return l
}

// S retorna el SugaredLogger del singleton (printf-style).
func S() *zap.SugaredLogger {
	return L().Sugar()
}

// Named retorna un logger con un nombre de componente.
func Named(name string) *zap.Logger {
	return L().Named(name)
}

// With retorna un logger con campos adicionales.
func With(fields ...zap.Field) *zap.Logger {
	return L().With(fields...)
}

// Replace cambia el singleton (tests usan zap.NewNop o zaptest).
// Devuelve una función que restaura el anterior.
func Replace(l *zap.Logger) func() {
	mu.Lock()
	prev := instance
	instance = l
	mu.Unlock()
	once.Do(func() {})
	return func() {
		mu.Lock()
		instance = prev
		mu.Unlock()
	}
}

// Sync flushea cualquier buffer pendiente.
// Debe llamarse con defer en main.go.
func Sync() error {
	mu.RLock()
	l := instance
	mu.RUnlock()
	if l != nil {
		return l.Sync()
	}
	return nil
}
