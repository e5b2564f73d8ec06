// Package cache provee un cache de proyecciones con backend memory o redis.
//
// Solo se cachean lecturas derivadas (proyecciones de userinfo, filas de
// servicio para display). El estado de revocación de tokens NUNCA pasa por
// acá: esa consulta va siempre fresca al storage.
package cache

import (
	"context"
	"time"
)

// Client define las operaciones de cache.
type Client interface {
	// Get obtiene un valor. Retorna ErrNotFound si no existe.
	Get(ctx context.Context, key string) (string, error)

	// Set guarda un valor con TTL. ttl 0 usa el default del backend.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete elimina una key.
	Delete(ctx context.Context, key string) error

	// Ping verifica la conexión.
	Ping(ctx context.Context) error

	// Close cierra la conexión.
	Close() error
}

// Config configuración para crear un cliente de cache.
type Config struct {
	Kind     string // "memory" | "redis"
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "cache: key not found" }

// IsNotFound verifica si el error es porque la key no existe.
func IsNotFound(err error) bool {
	_, ok := err.(errNotFound)
	return ok
}

// New crea un cliente según la configuración. Kind desconocido cae a memory.
func New(cfg Config) (Client, error) {
	switch cfg.Kind {
	case "redis":
		return NewRedis(cfg)
	default:
		return NewMemory(cfg.Prefix, cfg.TTL), nil
	}
}
