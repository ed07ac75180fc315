package parcache

import (
	"context"
	"maps"
	"strconv"
	"sync"
	"time"

	"parsvc/internal/par"
)

// Memory is the in-process cache used when no Redis is configured. Entries
// are dropped lazily once their expiry has passed.
type Memory struct {
	mu      sync.Mutex
	entries map[string]par.PushedAuthRequest
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{entries: map[string]par.PushedAuthRequest{}, now: time.Now}
}

func memKey(id string, tenantID int) string { return strconv.Itoa(tenantID) + ":" + id }

func (m *Memory) Put(_ context.Context, id string, req par.PushedAuthRequest, tenantID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now().UnixMilli()
	for k, e := range m.entries {
		if e.ExpiresAt <= now {
			delete(m.entries, k)
		}
	}
	req.Parameters = maps.Clone(req.Parameters)
	m.entries[memKey(id, tenantID)] = req
	return nil
}

func (m *Memory) Get(_ context.Context, id string, tenantID int) (par.PushedAuthRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memKey(id, tenantID)
	req, ok := m.entries[k]
	if !ok {
		return par.PushedAuthRequest{}, par.ErrRequestNotFound
	}
	if req.ExpiresAt <= m.now().UnixMilli() {
		delete(m.entries, k)
		return par.PushedAuthRequest{}, par.ErrRequestNotFound
	}
	req.Parameters = maps.Clone(req.Parameters)
	return req, nil
}
