package parstore

import (
	"context"
	"maps"
	"sync"
	"time"

	"parsvc/internal/par"
)

// Memory is the single-process durable store used when no database is configured.
type Memory struct {
	mu   sync.RWMutex
	reqs map[string]par.PushedAuthRequest
	now  func() time.Time
}

func NewMemory() *Memory {
	return &Memory{reqs: map[string]par.PushedAuthRequest{}, now: time.Now}
}

func (m *Memory) Persist(_ context.Context, id, clientID string, expiresAt int64, params map[string]string, tenantID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reqs[id] = par.PushedAuthRequest{
		ID:         id,
		ClientID:   clientID,
		Parameters: maps.Clone(params),
		ExpiresAt:  expiresAt,
		TenantID:   tenantID,
	}
	return nil
}

func (m *Memory) Get(_ context.Context, id string, tenantID int) (par.PushedAuthRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	req, ok := m.reqs[id]
	if !ok || req.TenantID != tenantID || req.ExpiresAt < m.now().UTC().UnixMilli() {
		return par.PushedAuthRequest{}, par.ErrRequestNotFound
	}
	req.Parameters = maps.Clone(req.Parameters)
	return req, nil
}

func (m *Memory) PurgeExpired(_ context.Context, nowMillis int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, req := range m.reqs {
		if req.ExpiresAt < nowMillis {
			delete(m.reqs, id)
			n++
		}
	}
	return n, nil
}
