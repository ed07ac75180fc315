package middleware

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parsvc/pkg/logger"
)

type proofOpts struct {
	alg jwa.SignatureAlgorithm
	typ string
	htm string
	htu string
	jti string
	iat time.Time
}

func newProofKey(t *testing.T) (jwk.Key, jwk.Key) {
	t.Helper()
	raw, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	priv, err := jwk.FromRaw(raw)
	require.NoError(t, err)
	pub, err := priv.PublicKey()
	require.NoError(t, err)
	return priv, pub
}

func signProof(t *testing.T, priv, pub jwk.Key, o proofOpts) string {
	t.Helper()
	tok, err := jwt.NewBuilder().
		JwtID(o.jti).
		IssuedAt(o.iat).
		Claim("htm", o.htm).
		Claim("htu", o.htu).
		Build()
	require.NoError(t, err)

	hdrs := jws.NewHeaders()
	require.NoError(t, hdrs.Set(jws.TypeKey, o.typ))
	require.NoError(t, hdrs.Set(jws.JWKKey, pub))
	alg := jwa.ES256
	if o.alg != "" {
		alg = o.alg
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(alg, priv, jws.WithProtectedHeaders(hdrs)))
	require.NoError(t, err)
	return string(signed)
}

func validProof() proofOpts {
	return proofOpts{typ: "dpop+jwt", htm: http.MethodPost, htu: "https://auth.example.com/par", jti: "jti-1", iat: time.Now()}
}

func serveDPoP(replay ReplayCache, proofs ...string) (*httptest.ResponseRecorder, string) {
	var jkt string
	h := DPoP(replay, time.Minute, logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jkt = DPoPJKTFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodPost, "/par", nil)
	for _, p := range proofs {
		req.Header.Add("DPoP", p)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, jkt
}

func TestDPoPAbsentPassesThrough(t *testing.T) {
	rec, jkt := serveDPoP(NewMemoryReplayCache())
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, jkt)
}

func TestDPoPValidProofExposesThumbprint(t *testing.T) {
	priv, pub := newProofKey(t)
	thumb, err := pub.Thumbprint(crypto.SHA256)
	require.NoError(t, err)

	rec, jkt := serveDPoP(NewMemoryReplayCache(), signProof(t, priv, pub, validProof()))
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	assert.Equal(t, base64.RawURLEncoding.EncodeToString(thumb), jkt)
}

func TestDPoPRejections(t *testing.T) {
	priv, pub := newProofKey(t)

	tests := []struct {
		name   string
		mutate func(*proofOpts)
	}{
		{name: "wrong typ", mutate: func(o *proofOpts) { o.typ = "JWT" }},
		{name: "wrong method", mutate: func(o *proofOpts) { o.htm = http.MethodGet }},
		{name: "wrong path", mutate: func(o *proofOpts) { o.htu = "https://auth.example.com/token" }},
		{name: "stale", mutate: func(o *proofOpts) { o.iat = time.Now().Add(-10 * time.Minute) }},
		{name: "missing jti", mutate: func(o *proofOpts) { o.jti = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := validProof()
			tt.mutate(&o)
			rec, _ := serveDPoP(NewMemoryReplayCache(), signProof(t, priv, pub, o))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "invalid_dpop_proof")
		})
	}

	t.Run("symmetric key", func(t *testing.T) {
		oct, err := jwk.FromRaw([]byte("0123456789abcdef0123456789abcdef"))
		require.NoError(t, err)
		o := validProof()
		o.alg = jwa.HS256

		rec, jkt := serveDPoP(NewMemoryReplayCache(), signProof(t, oct, oct, o))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid_dpop_proof")
		assert.Empty(t, jkt)
	})
	t.Run("garbage", func(t *testing.T) {
		rec, _ := serveDPoP(NewMemoryReplayCache(), "not-a-jwt")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
	t.Run("two proofs", func(t *testing.T) {
		p := signProof(t, priv, pub, validProof())
		rec, _ := serveDPoP(NewMemoryReplayCache(), p, p)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestDPoPReplayWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	replay := NewRedisReplayCache(rdb, "par:")

	priv, pub := newProofKey(t)
	proof := signProof(t, priv, pub, validProof())

	rec, _ := serveDPoP(replay, proof)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, mr.Exists("par:dpop:jti-1"))

	rec, _ = serveDPoP(replay, proof)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "replay")
}

type failingReplay struct{}

func (failingReplay) Claim(context.Context, string, time.Duration) (bool, error) {
	return false, errors.New("redis down")
}

func TestDPoPReplayStoreFailureIsServerError(t *testing.T) {
	priv, pub := newProofKey(t)
	rec, _ := serveDPoP(failingReplay{}, signProof(t, priv, pub, validProof()))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "redis down")
}
