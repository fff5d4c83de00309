// Package rediscache wraps a triage.Backend with a Redis read-through cache
// for customer records.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/ticketry/internal/triage"
)

// DefaultTTL applies when New is given a non-positive ttl.
const DefaultTTL = 10 * time.Minute

const keyPrefix = "ticketry:customer:"

// Backend caches GetCustomer results. Every other call goes straight to the
// wrapped backend. Redis failures are logged and fall through.
type Backend struct {
	triage.Backend
	client *redis.Client
	ttl    time.Duration
	logger log.Logger
}

// New connects to redisURL and wraps next.
func New(redisURL string, next triage.Backend, ttl time.Duration, logger log.Logger) (*Backend, error) {
	if next == nil {
		return nil, errors.New("rediscache: nil backend")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Backend{Backend: next, client: redis.NewClient(opts), ttl: ttl, logger: logger}, nil
}

// Ping checks the Redis connection.
func (b *Backend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Close releases the Redis connection pool.
func (b *Backend) Close() error {
	return b.client.Close()
}

// GetCustomer serves from Redis when possible. Misses are filled from the
// wrapped backend; not-found results are not cached.
func (b *Backend) GetCustomer(ctx context.Context, id string) (*triage.Customer, error) {
	key := Key(id)

	raw, err := b.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var c triage.Customer
		jerr := json.Unmarshal(raw, &c)
		if jerr == nil {
			return &c, nil
		}
		b.logger.Warn(ctx, "discarding corrupt cached customer", "key", key, "error", jerr)
	case err != redis.Nil:
		b.logger.Warn(ctx, "customer cache read failed", "key", key, "error", err)
	}

	c, err := b.Backend.GetCustomer(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, jerr := json.Marshal(c); jerr == nil {
		if serr := b.client.Set(ctx, key, data, b.ttl).Err(); serr != nil {
			b.logger.Warn(ctx, "customer cache write failed", "key", key, "error", serr)
		}
	}
	return c, nil
}

// PutCustomer writes c to the wrapped backend, then drops any cached copy so
// the next read sees the new record. A failed invalidation is logged; the
// entry still expires after the TTL.
func (b *Backend) PutCustomer(ctx context.Context, c triage.Customer) error {
	s, ok := b.Backend.(triage.Seeder)
	if !ok {
		return errors.New("rediscache: wrapped backend does not accept writes")
	}
	if err := s.PutCustomer(ctx, c); err != nil {
		return err
	}
	if err := b.Invalidate(ctx, c.ID); err != nil {
		b.logger.Warn(ctx, "customer cache invalidation failed", "key", Key(c.ID), "error", err)
	}
	return nil
}

// Invalidate drops the cached record for id.
func (b *Backend) Invalidate(ctx context.Context, id string) error {
	return b.client.Del(ctx, Key(id)).Err()
}

// Key is the Redis key holding customer id.
func Key(id string) string {
	return keyPrefix + id
}
