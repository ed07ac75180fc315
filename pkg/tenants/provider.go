package tenants

import (
	"context"
	"errors"
)

var ErrTenantNotFound = errors.New("tenant not found")

type Provider interface {
	// Resolve tenant from incoming host.
	ResolveTenantByHost(ctx context.Context, host string) (Tenant, error)
	ResolveTenantByID(ctx context.Context, id int) (Tenant, error)
}

// seedEntry is the TENANT_SEED_JSON element shape shared by both providers.
type seedEntry struct {
	ID     int    `json:"id"`
	Domain string `json:"domain"`
	Host   string `json:"host"`
}
