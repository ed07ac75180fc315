package clients

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const registryYAML = `
clients:
  - client_id: web
    tenant_id: -1234
    secret_hash: "$2a$04$abcdefghijklmnopqrstuu"
    redirect_uris: [https://app.example.com/cb]
  - client_id: spa
    tenant_id: 7
    token_endpoint_auth_method: none
    redirect_uris: [https://spa.example.com/cb]
`

func TestParseRegistry(t *testing.T) {
	reg, err := Parse([]byte(registryYAML))
	require.NoError(t, err)

	web, err := reg.GetClient(context.Background(), -1234, "web")
	require.NoError(t, err)
	assert.Equal(t, AuthMethodSecretBasic, web.AuthMethod)
	assert.True(t, web.AllowsRedirect("https://app.example.com/cb"))
	assert.False(t, web.AllowsRedirect("https://evil.example.com/cb"))

	spa, err := reg.GetClient(context.Background(), 7, "spa")
	require.NoError(t, err)
	assert.Equal(t, AuthMethodNone, spa.AuthMethod)

	// clients are partitioned by tenant
	_, err = reg.GetClient(context.Background(), -1234, "spa")
	assert.ErrorIs(t, err, ErrClientNotFound)
}

func TestParseRegistryErrors(t *testing.T) {
	tests := map[string]string{
		"missing id":     "clients:\n  - tenant_id: 1\n",
		"unknown method": "clients:\n  - client_id: a\n    token_endpoint_auth_method: tls_client_auth\n",
		"jwt no jwks":    "clients:\n  - client_id: a\n    token_endpoint_auth_method: private_key_jwt\n",
		"not yaml":       "clients: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clients.yaml")
	require.NoError(t, os.WriteFile(path, []byte(registryYAML), 0o600))

	reg, err := LoadFile(path)
	require.NoError(t, err)
	_, err = reg.GetClient(context.Background(), 7, "spa")
	assert.NoError(t, err)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
