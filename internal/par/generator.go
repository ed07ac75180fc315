package par

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ResponseData is the identifier and expiry handed back to the client.
type ResponseData struct {
	ID        string
	ExpiresAt int64
}

// ResponseGenerator issues the identifier and expiry for a new admission.
// The returned ExpiresAt is also the value persisted with the request.
type ResponseGenerator interface {
	Generate(ctx context.Context, now time.Time) (ResponseData, error)
}

// UUIDGenerator issues random UUIDv4 identifiers.
type UUIDGenerator struct {
	Scheduler ExpiryScheduler
}

func (g UUIDGenerator) Generate(_ context.Context, now time.Time) (ResponseData, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return ResponseData{}, err
	}
	return ResponseData{ID: id.String(), ExpiresAt: g.Scheduler.ScheduleExpiry(now)}, nil
}
