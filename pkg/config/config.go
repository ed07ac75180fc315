// pkg/config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultExpiresInSec     = 60
	DefaultRequestURIPrefix = "urn:ietf:params:oauth:par:request_uri:"
)

type Config struct {
	Env      string
	HTTPAddr string

	// Public base URL of this server; used as the expected audience of client assertions.
	Issuer string

	// PAR admission
	ExpiresIn        time.Duration // fixed default lifetime of an admitted request
	RequestURIPrefix string

	// Client registry seed (YAML); ignored when DATABASE_URL is set
	ClientsFile string

	// Redis & Postgres
	RedisURL       string
	DatabaseURL    string
	CacheKeyPrefix string
	PurgeInterval  time.Duration

	DPoPClockSkew time.Duration
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Env:              env("PAR_ENV", "dev"),
		HTTPAddr:         env("PAR_HTTP_ADDR", ":8090"),
		Issuer:           env("PAR_ISSUER", "http://localhost:8090"),
		ExpiresIn:        envDur("PAR_EXPIRES_IN_SEC", DefaultExpiresInSec) * time.Second,
		RequestURIPrefix: env("PAR_REQUEST_URI_PREFIX", DefaultRequestURIPrefix),
		ClientsFile:      env("PAR_CLIENTS_FILE", ""),
		RedisURL:         env("REDIS_URL", ""),
		DatabaseURL:      env("DATABASE_URL", ""),
		CacheKeyPrefix:   env("PAR_CACHE_KEY_PREFIX", "par:"),
		PurgeInterval:    envDur("PAR_PURGE_INTERVAL_SEC", 300) * time.Second,
		DPoPClockSkew:    envDur("DPOP_CLOCK_SKEW_SEC", 60) * time.Second,
	}
	if cfg.ExpiresIn <= 0 {
		log.Printf("[WARN] PAR_EXPIRES_IN_SEC must be positive; falling back to %ds", DefaultExpiresInSec)
		cfg.ExpiresIn = DefaultExpiresInSec * time.Second
	}
	if cfg.DatabaseURL == "" {
		log.Println("[WARN] DATABASE_URL not set; pushed requests are kept in memory only")
	}
	return cfg
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envDur(k string, def int) time.Duration {
	if v := os.Getenv(k); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			return time.Duration(def)
		}
		return time.Duration(i)
	}
	return time.Duration(def)
}
