// pkg/middleware/dpop.go
package middleware

import (
	"context"
	"crypto"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"parsvc/pkg/problems"
)

const dpopProofLifetime = 2 * time.Minute

var errReplayStore = errors.New("dpop replay store unavailable")

type ctxDPoPKey struct{}

// ReplayCache remembers DPoP proof jti values for the proof lifetime.
type ReplayCache interface {
	// Claim returns false when jti was already seen.
	Claim(ctx context.Context, jti string, ttl time.Duration) (bool, error)
}

type redisReplay struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisReplayCache stores jti markers with SETNX under prefix+"dpop:".
func NewRedisReplayCache(rdb *redis.Client, prefix string) ReplayCache {
	return &redisReplay{rdb: rdb, prefix: prefix}
}

func (c *redisReplay) Claim(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, c.prefix+"dpop:"+jti, 1, ttl).Result()
}

type memReplay struct {
	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

// NewMemoryReplayCache is the single-node fallback when Redis is not configured.
func NewMemoryReplayCache() ReplayCache {
	return &memReplay{seen: map[string]time.Time{}, now: time.Now}
}

func (c *memReplay) Claim(_ context.Context, jti string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, exp := range c.seen {
		if now.After(exp) {
			delete(c.seen, k)
		}
	}
	if _, ok := c.seen[jti]; ok {
		return false, nil
	}
	c.seen[jti] = now.Add(ttl)
	return true, nil
}

// DPoP verifies an optional DPoP proof on pushed authorization requests and
// exposes the proof key's JWK thumbprint through DPoPJKTFrom.
func DPoP(replay ReplayCache, skew time.Duration, log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			proofs := r.Header.Values("DPoP")
			if len(proofs) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			if len(proofs) > 1 {
				writeDPoPError(w, "multiple DPoP proofs")
				return
			}
			jkt, err := verifyDPoPProof(r, proofs[0], replay, skew)
			if errors.Is(err, errReplayStore) {
				reqID := RequestIDFrom(r.Context())
				log.Errorw("dpop replay check", "request_id", reqID, "err", err)
				problems.Write(w, problems.ServerError(reqID))
				return
			}
			if err != nil {
				log.Debugw("dpop proof rejected", "request_id", RequestIDFrom(r.Context()), "err", err)
				writeDPoPError(w, err.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithDPoPJKT(r.Context(), jkt)))
		})
	}
}

// ContextWithDPoPJKT stores a verified proof key thumbprint; DPoP uses the same key.
func ContextWithDPoPJKT(ctx context.Context, jkt string) context.Context {
	return context.WithValue(ctx, ctxDPoPKey{}, jkt)
}

// DPoPJKTFrom returns the thumbprint of a verified DPoP proof key, or "".
func DPoPJKTFrom(ctx context.Context) string {
	jkt, _ := ctx.Value(ctxDPoPKey{}).(string)
	return jkt
}

func verifyDPoPProof(r *http.Request, proof string, replay ReplayCache, skew time.Duration) (string, error) {
	// Parse JWS to extract header (need jwk before we can verify)
	msg, err := jws.Parse([]byte(proof))
	if err != nil || len(msg.Signatures()) != 1 {
		return "", errors.New("bad DPoP")
	}
	h := msg.Signatures()[0].ProtectedHeaders()
	if h.Type() != "dpop+jwt" {
		return "", errors.New("bad typ")
	}
	key := h.JWK()
	if key == nil {
		return "", errors.New("missing jwk header")
	}
	// The proof key must be asymmetric; a shared secret in the header binds nothing.
	if key.KeyType() == jwa.OctetSeq {
		return "", errors.New("symmetric jwk")
	}
	alg := h.Algorithm()
	if alg == "" || alg == jwa.NoSignature || strings.HasPrefix(string(alg), "HS") {
		return "", errors.New("unsupported alg")
	}

	pt, err := jwt.Parse([]byte(proof), jwt.WithKey(alg, key), jwt.WithValidate(true), jwt.WithAcceptableSkew(skew))
	if err != nil {
		return "", errors.New("bad DPoP")
	}
	// htm/htu binding
	htm, _ := pt.Get("htm")
	if s, _ := htm.(string); s != r.Method {
		return "", errors.New("htm mismatch")
	}
	htu, _ := pt.Get("htu")
	if err := matchHTU(fmt.Sprint(htu), r.URL); err != nil {
		return "", err
	}
	// iat freshness
	iat := pt.IssuedAt()
	if iat.IsZero() || time.Since(iat) > dpopProofLifetime+skew || time.Until(iat) > skew {
		return "", errors.New("stale DPoP")
	}
	jti := pt.JwtID()
	if jti == "" {
		return "", errors.New("missing jti")
	}
	ok, err := replay.Claim(r.Context(), jti, dpopProofLifetime+2*skew)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errReplayStore, err)
	}
	if !ok {
		return "", errors.New("replay")
	}
	thumb, err := key.Thumbprint(crypto.SHA256)
	if err != nil {
		return "", errors.New("bad jwk")
	}
	return base64.RawURLEncoding.EncodeToString(thumb), nil
}

func matchHTU(htu string, u *url.URL) error {
	v, err := url.Parse(htu)
	if err != nil || v.Path == "" {
		return errors.New("bad htu")
	}
	if v.Path != u.Path {
		return errors.New("htu path mismatch")
	}
	return nil
}

func writeDPoPError(w http.ResponseWriter, desc string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             "invalid_dpop_proof",
		"error_description": desc,
	})
}
