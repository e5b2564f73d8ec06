// Package pg implementa core.Store sobre PostgreSQL con pgxpool.
package pg

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/ssohub/internal/observability/logger"
)

// Store es la implementación Postgres de core.Store. Una única struct con el
// pool: los repositorios de usuario/servicio/autorización son métodos sobre
// ella, repartidos por archivo.
type Store struct {
	pool *pgxpool.Pool
}

// Tuning son los límites opcionales del pool que vienen de la config.
type Tuning struct {
	MaxConns        int
	MinConns        int
	ConnMaxLifetime time.Duration
}

// New abre el pool contra el DSN. El ping de arranque es no bloqueante: si la
// base está caída el proceso levanta igual y reintenta en el próximo uso.
func New(ctx context.Context, dsn string, tuning Tuning) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pg: parse dsn: %w", err)
	}

	if tuning.MaxConns > 0 {
		pcfg.MaxConns = int32(tuning.MaxConns)
	}
	if tuning.MinConns > 0 {
		pcfg.MinConns = int32(tuning.MinConns)
	}
	if tuning.ConnMaxLifetime > 0 {
		pcfg.MaxConnLifetime = tuning.ConnMaxLifetime
		pcfg.MaxConnIdleTime = tuning.ConnMaxLifetime
	}
	if pcfg.MaxConns == 0 {
		pcfg.MaxConns = 8
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("pg: new pool: %w", err)
	}

	log := logger.Named("pg")
	if err := pool.Ping(ctx); err != nil {
		log.Warn("ping de arranque falló, el pool reintenta on-demand", logger.Err(err))
	} else {
		log.Info("pool listo", logger.Int("max_conns", int(pcfg.MaxConns)))
	}

	return &Store{pool: pool}, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Close cierra el pool subyacente (idempotente).
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// PoolStats devuelve un snapshot del estado del pool para diagnóstico.
func (s *Store) PoolStats() *pgxpool.Stat {
	if s == nil || s.pool == nil {
		return nil
	}
	return s.pool.Stat()
}

// Migrate aplica los .sql embebidos en orden lexicográfico. Los archivos son
// idempotentes (IF NOT EXISTS), así que correrlo en cada arranque es seguro.
func (s *Store) Migrate(ctx context.Context, files embed.FS) error {
	var names []string
	err := fs.WalkDir(files, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			names = append(names, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("pg: walk migrations: %w", err)
	}
	sort.Strings(names)

	log := logger.Named("pg")
	for _, name := range names {
		b, err := files.ReadFile(name)
		if err != nil {
			return fmt.Errorf("pg: read migration %s: %w", name, err)
		}
		if _, err := s.pool.Exec(ctx, string(b)); err != nil {
			return fmt.Errorf("pg: exec migration %s: %w", name, err)
		}
		log.Info("migración aplicada", logger.String("file", name))
	}
	return nil
}
