// cmd/par-service/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"parsvc/internal/par"
	"parsvc/internal/parcache"
	"parsvc/internal/parstore"
	"parsvc/pkg/clients"
	"parsvc/pkg/config"
	"parsvc/pkg/db"
	"parsvc/pkg/logger"
	"parsvc/pkg/middleware"
	"parsvc/pkg/tenants"
)

type purger interface {
	PurgeExpired(ctx context.Context, nowMillis int64) (int64, error)
}

func main() {
	// 1. Load configuration & initialize structured logger.
	cfg := config.Load()
	appLog := logger.New(cfg.Env)
	defer func() { _ = appLog.Sync() }()

	// 2. Optional backing services.
	dbPool := db.MustConnect(cfg, appLog)
	rdb := db.MustRedis(cfg, appLog)

	ctx := context.Background()

	// 3. Tenants and clients (DB-backed if pool present, otherwise in-memory).
	tenantProvider := buildTenants(ctx, dbPool, appLog)
	registry := buildClients(ctx, cfg, dbPool, appLog)

	// 4. Durable store & cache.
	var store interface {
		par.DurableStore
		purger
	}
	if dbPool != nil {
		if err := parstore.EnsureSchema(ctx, dbPool); err != nil {
			appLog.Fatalw("par schema", "err", err)
		}
		store = parstore.NewPostgres(dbPool)
	} else {
		store = parstore.NewMemory()
	}
	var cache par.Cache
	var replay middleware.ReplayCache
	if rdb != nil {
		cache = parcache.NewRedis(rdb, cfg.CacheKeyPrefix)
		replay = middleware.NewRedisReplayCache(rdb, cfg.CacheKeyPrefix)
	} else {
		appLog.Warnw("REDIS_URL not set; using in-process cache and DPoP replay store")
		cache = parcache.NewMemory()
		replay = middleware.NewMemoryReplayCache()
	}

	// 5. Admission pipeline.
	issuer := strings.TrimRight(cfg.Issuer, "/")
	validator := clients.NewValidator(registry, clients.NewJWKSCache(10*time.Minute),
		[]string{issuer, issuer + "/par"}, cfg.DPoPClockSkew, appLog)
	endpoint := par.NewEndpoint(
		validator,
		par.UUIDGenerator{Scheduler: par.NewExpiryScheduler(cfg.ExpiresIn)},
		par.NewCoordinator(store, cache, appLog),
		par.NewResponseBuilder(cfg.RequestURIPrefix),
		appLog,
	)

	// 6. Router & middlewares.
	router := chi.NewRouter()
	router.Use(middleware.RequestID())
	router.Use(middleware.Recover(appLog))
	router.Use(middleware.Tracing(appLog))

	router.Get("/healthz", healthz(dbPool, rdb))
	router.Get("/metrics", promhttp.Handler().ServeHTTP)

	router.Group(func(r chi.Router) {
		r.Use(middleware.WithTenant(tenantProvider, appLog))
		par.RegisterRoutes(r, endpoint, middleware.DPoP(replay, cfg.DPoPClockSkew, appLog))
	})

	// 7. Expired-request purge loop.
	purgeCtx, stopPurge := context.WithCancel(ctx)
	go runPurge(purgeCtx, store, cfg.PurgeInterval, appLog)

	// 8. Start HTTP server asynchronously.
	httpServer := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		appLog.Infow("par-service listening", "addr", cfg.HTTPAddr, "expires_in", cfg.ExpiresIn.String())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Fatalw("ListenAndServe", "err", err)
		}
	}()

	// 9. Wait for SIGINT/SIGTERM, then shut down gracefully.
	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM)
	<-stopCh

	stopPurge()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	if rdb != nil {
		_ = rdb.Close()
	}
	if dbPool != nil {
		dbPool.Close()
	}
	appLog.Infow("par-service stopped")
}

func buildTenants(ctx context.Context, dbPool *pgxpool.Pool, log *zap.SugaredLogger) tenants.Provider {
	if dbPool == nil {
		return tenants.NewMemoryProviderFromEnv(log)
	}
	if err := tenants.EnsureSchema(ctx, dbPool); err != nil {
		log.Fatalw("tenant schema", "err", err)
	}
	if err := tenants.SeedFromEnv(ctx, dbPool, os.Getenv("TENANT_SEED_JSON")); err != nil {
		log.Warnw("tenant seed", "err", err)
	}
	return tenants.NewPostgresProvider(dbPool, log)
}

func buildClients(ctx context.Context, cfg config.Config, dbPool *pgxpool.Pool, log *zap.SugaredLogger) clients.Registry {
	if dbPool != nil {
		if err := clients.EnsureSchema(ctx, dbPool); err != nil {
			log.Fatalw("client schema", "err", err)
		}
		return clients.NewPostgresRegistry(dbPool)
	}
	if cfg.ClientsFile == "" {
		log.Warnw("no client registry configured; every push will be rejected as invalid_client")
		return clients.NewMemoryRegistry()
	}
	reg, err := clients.LoadFile(cfg.ClientsFile)
	if err != nil {
		log.Fatalw("load clients", "file", cfg.ClientsFile, "err", err)
	}
	return reg
}

func healthz(dbPool *pgxpool.Pool, rdb *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if dbPool != nil {
			if err := dbPool.Ping(ctx); err != nil {
				http.Error(w, "postgres unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		if rdb != nil {
			if err := rdb.Ping(ctx).Err(); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		_, _ = w.Write([]byte("ok"))
	}
}

func runPurge(ctx context.Context, store purger, every time.Duration, log *zap.SugaredLogger) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := store.PurgeExpired(ctx, now.UTC().UnixMilli())
			if err != nil {
				log.Warnw("purge expired requests", "err", err)
				continue
			}
			if n > 0 {
				log.Infow("purged expired requests", "count", n)
			}
		}
	}
}
