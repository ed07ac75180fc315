package clients

import (
	"context"
	"errors"
	"slices"
)

var ErrClientNotFound = errors.New("client not found")

// AuthMethod is a token_endpoint_auth_method value (RFC 7591).
type AuthMethod string

const (
	AuthMethodSecretBasic   AuthMethod = "client_secret_basic"
	AuthMethodSecretPost    AuthMethod = "client_secret_post"
	AuthMethodPrivateKeyJWT AuthMethod = "private_key_jwt"
	AuthMethodNone          AuthMethod = "none"
)

// Client is a registered OAuth client allowed to push authorization requests.
type Client struct {
	ID           string     `yaml:"client_id"`
	TenantID     int        `yaml:"tenant_id"`
	SecretHash   string     `yaml:"secret_hash"` // bcrypt
	AuthMethod   AuthMethod `yaml:"token_endpoint_auth_method"`
	JWKSURL      string     `yaml:"jwks_uri"`
	RedirectURIs []string   `yaml:"redirect_uris"`
}

func (c Client) AllowsRedirect(uri string) bool {
	return slices.Contains(c.RedirectURIs, uri)
}

// Registry looks up clients inside a tenant partition.
type Registry interface {
	GetClient(ctx context.Context, tenantID int, clientID string) (Client, error)
}
