package clients

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgRegistry struct {
	dbPool *pgxpool.Pool
}

// NewPostgresRegistry reads clients from the oauth_clients table.
func NewPostgresRegistry(dbPool *pgxpool.Pool) Registry {
	return &pgRegistry{dbPool: dbPool}
}

// EnsureSchema creates oauth_clients. Safe to call repeatedly.
func EnsureSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS oauth_clients (
  tenant_id integer NOT NULL,
  client_id text NOT NULL,
  secret_hash text,
  auth_method text NOT NULL DEFAULT 'client_secret_basic',
  jwks_uri text,
  redirect_uris text[] NOT NULL DEFAULT '{}',
  created_at timestamptz NOT NULL DEFAULT NOW(),
  PRIMARY KEY (tenant_id, client_id)
);`)
	return err
}

func (p *pgRegistry) GetClient(ctx context.Context, tenantID int, clientID string) (Client, error) {
	row := p.dbPool.QueryRow(ctx, `SELECT client_id, tenant_id, COALESCE(secret_hash,''), auth_method, COALESCE(jwks_uri,''), redirect_uris
	  FROM oauth_clients WHERE tenant_id=$1 AND client_id=$2`, tenantID, clientID)
	var c Client
	var method string
	if err := row.Scan(&c.ID, &c.TenantID, &c.SecretHash, &method, &c.JWKSURL, &c.RedirectURIs); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Client{}, ErrClientNotFound
		}
		return Client{}, fmt.Errorf("load client: %w", err)
	}
	c.AuthMethod = AuthMethod(method)
	return c, nil
}
