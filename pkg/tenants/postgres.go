// pkg/tenants/postgres.go
package tenants

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// pgProvider implements Provider backed by PostgreSQL.
type pgProvider struct {
	dbPool *pgxpool.Pool
	log    *zap.SugaredLogger
}

// NewPostgresProvider constructs a PostgreSQL-backed tenant provider.
func NewPostgresProvider(dbPool *pgxpool.Pool, log *zap.SugaredLogger) Provider {
	return &pgProvider{dbPool: dbPool, log: log}
}

// EnsureSchema creates the tenants table. Safe to call repeatedly.
func EnsureSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tenants (
  id integer PRIMARY KEY,
  domain text UNIQUE NOT NULL,
  host text UNIQUE NOT NULL,
  created_at timestamptz NOT NULL DEFAULT NOW()
);
INSERT INTO tenants(id, domain, host) VALUES (-1234, 'carbon.super', 'localhost') ON CONFLICT DO NOTHING;
`)
	return err
}

// SeedFromEnv upserts tenants from TENANT_SEED_JSON:
//
//	[{"id":1,"domain":"acme","host":"auth.acme.com"}]
func SeedFromEnv(ctx context.Context, dbPool *pgxpool.Pool, jsonSeed string) error {
	if jsonSeed == "" {
		return nil
	}
	var entries []seedEntry
	if err := json.Unmarshal([]byte(jsonSeed), &entries); err != nil {
		return err
	}
	for _, e := range entries {
		if _, err := dbPool.Exec(ctx, `INSERT INTO tenants(id, domain, host) VALUES ($1,$2,$3)
		  ON CONFLICT (id) DO UPDATE SET domain=EXCLUDED.domain, host=EXCLUDED.host`, e.ID, e.Domain, e.Host); err != nil {
			return fmt.Errorf("seed tenant %d: %w", e.ID, err)
		}
	}
	return nil
}

func (p *pgProvider) ResolveTenantByHost(ctx context.Context, host string) (Tenant, error) {
	return p.scan(p.dbPool.QueryRow(ctx, `SELECT id, domain, host FROM tenants WHERE host=$1`, host))
}

func (p *pgProvider) ResolveTenantByID(ctx context.Context, id int) (Tenant, error) {
	return p.scan(p.dbPool.QueryRow(ctx, `SELECT id, domain, host FROM tenants WHERE id=$1`, id))
}

func (p *pgProvider) scan(row pgx.Row) (Tenant, error) {
	var t Tenant
	if err := row.Scan(&t.ID, &t.Domain, &t.Host); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tenant{}, ErrTenantNotFound
		}
		return Tenant{}, fmt.Errorf("resolve tenant: %w", err)
	}
	return t, nil
}
