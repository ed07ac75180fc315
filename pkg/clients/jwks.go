package clients

import (
	"context"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// KeySetFetcher resolves a client's jwks_uri.
type KeySetFetcher interface {
	Fetch(ctx context.Context, url string) (jwk.Set, error)
}

// jwksCache caches JWKS sets per URL.
type jwksCache struct {
	mu   sync.RWMutex
	ttl  time.Duration
	sets map[string]cachedJWKS
}

type cachedJWKS struct {
	set     jwk.Set
	expires time.Time
}

// NewJWKSCache fetches over HTTP and keeps each set for ttl.
func NewJWKSCache(ttl time.Duration) KeySetFetcher {
	return &jwksCache{ttl: ttl, sets: map[string]cachedJWKS{}}
}

func (c *jwksCache) Fetch(ctx context.Context, url string) (jwk.Set, error) {
	c.mu.RLock()
	if e, ok := c.sets[url]; ok && time.Now().Before(e.expires) {
		c.mu.RUnlock()
		return e.set, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.sets[url]; ok && time.Now().Before(e.expires) {
		return e.set, nil
	}
	set, err := jwk.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	c.sets[url] = cachedJWKS{set: set, expires: time.Now().Add(c.ttl)}
	return set, nil
}
