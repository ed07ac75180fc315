package clients

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type memRegistry struct {
	byKey map[string]Client
}

// NewMemoryRegistry serves a fixed set of clients.
func NewMemoryRegistry(cs ...Client) Registry {
	m := &memRegistry{byKey: make(map[string]Client, len(cs))}
	for _, c := range cs {
		if c.AuthMethod == "" {
			c.AuthMethod = AuthMethodSecretBasic
		}
		m.byKey[key(c.TenantID, c.ID)] = c
	}
	return m
}

func (m *memRegistry) GetClient(_ context.Context, tenantID int, clientID string) (Client, error) {
	if c, ok := m.byKey[key(tenantID, clientID)]; ok {
		return c, nil
	}
	return Client{}, ErrClientNotFound
}

func key(tenantID int, clientID string) string { return strconv.Itoa(tenantID) + ":" + clientID }

// registryFile is the PAR_CLIENTS_FILE layout:
//
//	clients:
//	  - client_id: web
//	    tenant_id: -1234
//	    token_endpoint_auth_method: client_secret_basic
//	    secret_hash: $2a$10$...
//	    redirect_uris: [https://app.example.com/cb]
type registryFile struct {
	Clients []Client `yaml:"clients"`
}

// LoadFile reads a YAML client registry.
func LoadFile(path string) (Registry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read clients file: %w", err)
	}
	return Parse(b)
}

// Parse decodes the YAML client registry layout.
func Parse(b []byte) (Registry, error) {
	var f registryFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse clients file: %w", err)
	}
	for i, c := range f.Clients {
		if c.ID == "" {
			return nil, fmt.Errorf("clients[%d]: client_id is required", i)
		}
		switch c.AuthMethod {
		case "", AuthMethodSecretBasic, AuthMethodSecretPost, AuthMethodNone:
		case AuthMethodPrivateKeyJWT:
			if c.JWKSURL == "" {
				return nil, fmt.Errorf("clients[%d]: jwks_uri is required for private_key_jwt", i)
			}
		default:
			return nil, fmt.Errorf("clients[%d]: unsupported token_endpoint_auth_method %q", i, c.AuthMethod)
		}
	}
	return NewMemoryRegistry(f.Clients...), nil
}
