package par

import "time"

// ExpiryScheduler computes absolute expiry times from a fixed lifetime.
type ExpiryScheduler struct {
	lifetime time.Duration
}

func NewExpiryScheduler(lifetime time.Duration) ExpiryScheduler {
	return ExpiryScheduler{lifetime: lifetime}
}

// ScheduleExpiry returns now + lifetime in milliseconds since the epoch (UTC).
func (s ExpiryScheduler) ScheduleExpiry(now time.Time) int64 {
	return now.UTC().UnixMilli() + s.lifetime.Milliseconds()
}

func (s ExpiryScheduler) Lifetime() time.Duration { return s.lifetime }
