package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PAR_EXPIRES_IN_SEC", "")
	t.Setenv("PAR_REQUEST_URI_PREFIX", "")
	t.Setenv("PAR_HTTP_ADDR", "")

	cfg := Load()

	assert.Equal(t, 60*time.Second, cfg.ExpiresIn)
	assert.Equal(t, DefaultRequestURIPrefix, cfg.RequestURIPrefix)
	assert.Equal(t, ":8090", cfg.HTTPAddr)
	assert.Equal(t, "par:", cfg.CacheKeyPrefix)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PAR_EXPIRES_IN_SEC", "90")
	t.Setenv("PAR_REQUEST_URI_PREFIX", "urn:example:")
	t.Setenv("DPOP_CLOCK_SKEW_SEC", "5")

	cfg := Load()

	assert.Equal(t, 90*time.Second, cfg.ExpiresIn)
	assert.Equal(t, "urn:example:", cfg.RequestURIPrefix)
	assert.Equal(t, 5*time.Second, cfg.DPoPClockSkew)
}

func TestLoadRejectsNonPositiveLifetime(t *testing.T) {
	t.Setenv("PAR_EXPIRES_IN_SEC", "-3")
	assert.Equal(t, DefaultExpiresInSec*time.Second, Load().ExpiresIn)

	t.Setenv("PAR_EXPIRES_IN_SEC", "abc")
	assert.Equal(t, DefaultExpiresInSec*time.Second, Load().ExpiresIn)
}
