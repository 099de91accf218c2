// Package pg is the Postgres store adapter (pgx/v5). Every principal
// mutation is expressed as one conditional UPDATE so two interleaved
// requests can never lose writes.
package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/multipass/internal/store/core"
	"github.com/dropDatabas3/multipass/migrations/postgres"
)

type Adapter struct {
	pool *pgxpool.Pool
}

// New conecta el pool y aplica el schema embebido si hace falta.
func New(ctx context.Context, dsn string) (*Adapter, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pg: parse dsn: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pg: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg: ping: %w", err)
	}
	if err := applySchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Adapter{pool: pool}, nil
}

func (a *Adapter) Close() { a.pool.Close() }

// Ping verifica la conexión; lo usa el readiness probe.
func (a *Adapter) Ping(ctx context.Context) error { return a.pool.Ping(ctx) }

func (a *Adapter) Tenants() core.TenantRepository       { return &tenantRepo{pool: a.pool} }
func (a *Adapter) Principals() core.PrincipalRepository { return &principalRepo{pool: a.pool} }

func applySchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range postgres.Statements() {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("pg: apply schema: %w", err)
		}
	}
	return nil
}
