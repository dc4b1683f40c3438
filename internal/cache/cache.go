// Package cache provee un cache clave/valor con soporte multi-backend.
//
// Soporta:
//   - memory (in-process, go-cache)
//   - redis (compartido entre corridas y operadores)
//
// El version gate lo usa para no repetir el probe de versión de cada host.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Client define las operaciones de cache.
type Client interface {
	// Get obtiene un valor. Retorna ErrNotFound si no existe o expiró.
	Get(ctx context.Context, key string) (string, error)

	// Set guarda un valor. Si ttl es 0 se usa el TTL por defecto del driver.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	Delete(ctx context.Context, key string) error

	// Ping verifica la conexión.
	Ping(ctx context.Context) error

	Close() error
}

// Config configuración para crear un cliente de cache.
type Config struct {
	Kind       string        `yaml:"kind"` // "memory" | "redis"
	Addr       string        `yaml:"addr"`
	Password   string        `yaml:"password"`
	DB         int           `yaml:"db"`
	Prefix     string        `yaml:"prefix"` // Prefijo para todas las keys
	DefaultTTL time.Duration `yaml:"default_ttl"`
}

// ErrNotFound se devuelve cuando la key no existe.
var ErrNotFound = errors.New("cache: key not found")

// IsNotFound verifica si el error es porque la key no existe.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// New crea un cliente de cache según la configuración.
func New(ctx context.Context, cfg Config) (Client, error) {
	switch cfg.Kind {
	case "memory", "":
		return NewMemory(cfg.Prefix, cfg.DefaultTTL), nil
	case "redis":
		return NewRedis(ctx, cfg)
	default:
		return nil, fmt.Errorf("cache: kind desconocido %q", cfg.Kind)
	}
}

func prefixed(prefix, k string) string {
	if prefix == "" {
		return k
	}
	return prefix + ":" + k
}
