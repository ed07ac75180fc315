// pkg/middleware/tenant.go
package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"

	"go.uber.org/zap"

	"parsvc/pkg/problems"
	"parsvc/pkg/tenants"
)

type ctxTenantKey struct{}

// WithTenant resolves the tenant from the request host and stores it in the
// request context.
func WithTenant(prov tenants.Provider, log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Allow health/metrics without tenant context
			switch r.URL.Path {
			case "/healthz", "/metrics":
				next.ServeHTTP(w, r)
				return
			}
			host := r.Host
			if h, _, err := net.SplitHostPort(host); err == nil {
				host = h
			}
			// Inside Docker the same local service is reachable under several names.
			tryHosts := []string{host}
			switch host {
			case "127.0.0.1", "host.docker.internal", "par":
				tryHosts = append(tryHosts, "localhost")
			}
			var t tenants.Tenant
			var err error
			for _, h := range tryHosts {
				t, err = prov.ResolveTenantByHost(r.Context(), h)
				if err == nil {
					break
				}
			}
			if err != nil {
				if !errors.Is(err, tenants.ErrTenantNotFound) {
					log.Errorw("tenant lookup", "host", host, "err", err)
					problems.Write(w, problems.ServerError(RequestIDFrom(r.Context())))
					return
				}
				http.Error(w, "unknown tenant", http.StatusNotFound)
				return
			}
			ctx := context.WithValue(r.Context(), ctxTenantKey{}, t)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ContextWithTenant stores t in ctx; WithTenant uses the same key.
func ContextWithTenant(ctx context.Context, t tenants.Tenant) context.Context {
	return context.WithValue(ctx, ctxTenantKey{}, t)
}

func TenantFrom(ctx context.Context) (tenants.Tenant, bool) {
	t, ok := ctx.Value(ctxTenantKey{}).(tenants.Tenant)
	return t, ok
}
