package par

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// DurableStore is the system of record for admitted requests.
type DurableStore interface {
	Persist(ctx context.Context, id, clientID string, expiresAt int64, params map[string]string, tenantID int) error
}

// Cache is the read-optimised copy of admitted requests, scoped by tenant.
type Cache interface {
	Put(ctx context.Context, id string, req PushedAuthRequest, tenantID int) error
}

// Coordinator performs the two writes that admit a request: durable store
// first, cache second. The cache is never written when the durable write
// fails, so a cache entry always has a committed record behind it.
type Coordinator struct {
	store DurableStore
	cache Cache
	log   *zap.SugaredLogger
}

func NewCoordinator(store DurableStore, cache Cache, log *zap.SugaredLogger) *Coordinator {
	return &Coordinator{store: store, cache: cache, log: log}
}

// Admit persists req. Any failure is returned as a server-fault
// AdmissionError wrapping ErrPersistenceFailure and the cause. No retries.
func (c *Coordinator) Admit(ctx context.Context, req PushedAuthRequest) error {
	ctx, span := otel.Tracer("parsvc/internal/par").Start(ctx, "par.admit")
	defer span.End()
	span.SetAttributes(attribute.Int("par.tenant_id", req.TenantID), attribute.String("par.client_id", req.ClientID))

	start := time.Now()
	err := c.store.Persist(ctx, req.ID, req.ClientID, req.ExpiresAt, req.Parameters, req.TenantID)
	observePersist("durable", start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "durable write failed")
		return serverError("durable write failed", fmt.Errorf("%w: durable store: %w", ErrPersistenceFailure, err))
	}

	start = time.Now()
	err = c.cache.Put(ctx, req.ID, req, req.TenantID)
	observePersist("cache", start, err)
	if err != nil {
		// The durable record stays; redemption falls back to it.
		c.log.Warnw("cache write failed after durable commit", "id", req.ID, "tenant_id", req.TenantID, "err", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "cache write failed")
		return serverError("cache write failed", fmt.Errorf("%w: cache: %w", ErrPersistenceFailure, err))
	}
	return nil
}
