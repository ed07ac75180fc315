// pkg/tenants/memory.go
package tenants

import (
	"context"
	"encoding/json"
	"os"

	"go.uber.org/zap"
)

type memProvider struct {
	log    *zap.SugaredLogger
	byHost map[string]Tenant
}

// NewMemoryProvider builds a provider from explicit tenants.
func NewMemoryProvider(log *zap.SugaredLogger, ts ...Tenant) Provider {
	p := &memProvider{log: log, byHost: map[string]Tenant{}}
	for _, t := range ts {
		p.byHost[t.Host] = t
	}
	return p
}

func NewMemoryProviderFromEnv(log *zap.SugaredLogger) Provider {
	p := &memProvider{log: log, byHost: map[string]Tenant{}}
	if seed := os.Getenv("TENANT_SEED_JSON"); seed != "" {
		var entries []seedEntry
		if err := json.Unmarshal([]byte(seed), &entries); err != nil {
			log.Warnw("tenant seed", "err", err)
		}
		for _, e := range entries {
			p.byHost[e.Host] = Tenant{ID: e.ID, Domain: e.Domain, Host: e.Host}
		}
		return p
	}
	// localhost defaults map to the super tenant
	for _, h := range []string{"localhost", "127.0.0.1", "host.docker.internal", "par"} {
		p.byHost[h] = Tenant{ID: SuperTenantID, Domain: "carbon.super", Host: h}
	}
	return p
}

func (m *memProvider) ResolveTenantByHost(_ context.Context, host string) (Tenant, error) {
	if t, ok := m.byHost[host]; ok {
		return t, nil
	}
	return Tenant{}, ErrTenantNotFound
}

func (m *memProvider) ResolveTenantByID(_ context.Context, id int) (Tenant, error) {
	for _, t := range m.byHost {
		if t.ID == id {
			return t, nil
		}
	}
	return Tenant{}, ErrTenantNotFound
}
