// Package parstore is the durable system of record for admitted pushed
// authorization requests.
package parstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"parsvc/internal/par"
	"parsvc/pkg/db"
)

// Pool is the subset of *pgxpool.Pool the store needs.
type Pool interface {
	db.TxBeginner
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres stores requests in the par_requests table.
type Postgres struct {
	pool Pool
	now  func() time.Time
}

func NewPostgres(pool Pool) *Postgres {
	return &Postgres{pool: pool, now: time.Now}
}

// EnsureSchema creates par_requests. Safe to call repeatedly.
func EnsureSchema(ctx context.Context, pool Pool) error {
	_, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS par_requests (
  id text PRIMARY KEY,
  tenant_id integer NOT NULL,
  client_id text NOT NULL,
  parameters jsonb NOT NULL DEFAULT '{}'::jsonb,
  expires_at bigint NOT NULL,
  created_at timestamptz NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS par_requests_expires_at_idx ON par_requests(expires_at);
`)
	return err
}

// Persist inserts the request inside a tenant-scoped transaction.
func (p *Postgres) Persist(ctx context.Context, id, clientID string, expiresAt int64, params map[string]string, tenantID int) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode parameters: %w", err)
	}
	tx, err := db.BeginTxWithTenant(ctx, p.pool, tenantID)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `INSERT INTO par_requests(id, tenant_id, client_id, parameters, expires_at)
	  VALUES ($1,$2,$3,$4,$5)`, id, tenantID, clientID, body, expiresAt); err != nil {
		return fmt.Errorf("insert par request: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Get loads an unexpired request by id within a tenant.
func (p *Postgres) Get(ctx context.Context, id string, tenantID int) (par.PushedAuthRequest, error) {
	row := p.pool.QueryRow(ctx, `SELECT id, tenant_id, client_id, parameters, expires_at FROM par_requests
	  WHERE id=$1 AND tenant_id=$2 AND expires_at >= $3`, id, tenantID, p.now().UTC().UnixMilli())
	var req par.PushedAuthRequest
	var body []byte
	if err := row.Scan(&req.ID, &req.TenantID, &req.ClientID, &body, &req.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return par.PushedAuthRequest{}, par.ErrRequestNotFound
		}
		return par.PushedAuthRequest{}, fmt.Errorf("load par request: %w", err)
	}
	if err := json.Unmarshal(body, &req.Parameters); err != nil {
		return par.PushedAuthRequest{}, fmt.Errorf("decode parameters: %w", err)
	}
	return req, nil
}

// PurgeExpired deletes requests whose expiry (ms since epoch) is before nowMillis.
func (p *Postgres) PurgeExpired(ctx context.Context, nowMillis int64) (int64, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM par_requests WHERE expires_at < $1`, nowMillis)
	if err != nil {
		return 0, fmt.Errorf("purge par requests: %w", err)
	}
	return tag.RowsAffected(), nil
}
