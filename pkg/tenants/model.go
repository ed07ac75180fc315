package tenants

// SuperTenantID is the partition used when no tenant is configured for a host.
const SuperTenantID = -1234

// Tenant is an isolation partition for clients and pushed requests.
type Tenant struct {
	ID     int    // numeric partition key stored alongside every pushed request
	Domain string // short name (carbon.super, acme)
	Host   string // host the tenant is served on (auth.acme.com)
}
