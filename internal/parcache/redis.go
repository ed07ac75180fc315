// Package parcache holds the fast, self-expiring copy of admitted pushed
// authorization requests.
package parcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"parsvc/internal/par"
)

// Redis stores each request as JSON under a tenant-scoped key that expires
// at the request's own expiry instant.
type Redis struct {
	rdb    *redis.Client
	prefix string
}

func NewRedis(rdb *redis.Client, prefix string) *Redis {
	return &Redis{rdb: rdb, prefix: prefix}
}

func (c *Redis) key(id string, tenantID int) string {
	return c.prefix + "request:" + strconv.Itoa(tenantID) + ":" + id
}

func (c *Redis) Put(ctx context.Context, id string, req par.PushedAuthRequest, tenantID int) error {
	b, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	key := c.key(id, tenantID)
	_, err = c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, key, b, 0)
		p.PExpireAt(ctx, key, time.UnixMilli(req.ExpiresAt))
		return nil
	})
	return err
}

func (c *Redis) Get(ctx context.Context, id string, tenantID int) (par.PushedAuthRequest, error) {
	b, err := c.rdb.Get(ctx, c.key(id, tenantID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return par.PushedAuthRequest{}, par.ErrRequestNotFound
	}
	if err != nil {
		return par.PushedAuthRequest{}, err
	}
	var req par.PushedAuthRequest
	if err := json.Unmarshal(b, &req); err != nil {
		return par.PushedAuthRequest{}, fmt.Errorf("decode: %w", err)
	}
	return req, nil
}
