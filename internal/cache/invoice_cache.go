package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"billflow/desk/internal/models"
)

// IInvoiceCache keeps recently fetched invoice envelopes so repeated renders skip the backend.
type IInvoiceCache interface {
	Get(ctx context.Context, userKey string, invoiceID int) (*models.InvoiceEnvelope, bool)
	Set(ctx context.Context, userKey string, env *models.InvoiceEnvelope) error
	Invalidate(ctx context.Context, userKey string, invoiceID int) error
}

type invoiceCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewInvoiceCache returns a Redis-backed cache. A nil client or non-positive ttl disables caching.
func NewInvoiceCache(rdb *redis.Client, ttl time.Duration) IInvoiceCache {
	if rdb == nil || ttl <= 0 {
		return noopInvoiceCache{}
	}
	return &invoiceCache{rdb: rdb, ttl: ttl}
}

// InvoiceKey is the Redis key for one user's invoice.
func InvoiceKey(userKey string, invoiceID int) string {
	return fmt.Sprintf("invoice:%s:%d", userKey, invoiceID)
}

// Get treats Redis errors and undecodable entries as misses.
func (c *invoiceCache) Get(ctx context.Context, userKey string, invoiceID int) (*models.InvoiceEnvelope, bool) {
	key := InvoiceKey(userKey, invoiceID)
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("InvoiceCache: Error reading %s: %v", key, err)
		}
		return nil, false
	}
	var env models.InvoiceEnvelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Invoice == nil {
		log.Printf("InvoiceCache: Discarding unreadable entry %s: %v", key, err)
		c.rdb.Del(ctx, key)
		return nil, false
	}
	return &env, true
}

func (c *invoiceCache) Set(ctx context.Context, userKey string, env *models.InvoiceEnvelope) error {
	if env == nil || env.Invoice == nil {
		return fmt.Errorf("cannot cache an empty invoice envelope")
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode invoice %d: %w", env.Invoice.ID, err)
	}
	key := InvoiceKey(userKey, env.Invoice.ID)
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache %s: %w", key, err)
	}
	return nil
}

func (c *invoiceCache) Invalidate(ctx context.Context, userKey string, invoiceID int) error {
	if err := c.rdb.Del(ctx, InvoiceKey(userKey, invoiceID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate invoice %d: %w", invoiceID, err)
	}
	return nil
}

type noopInvoiceCache struct{}

func (noopInvoiceCache) Get(context.Context, string, int) (*models.InvoiceEnvelope, bool) {
	return nil, false
}
func (noopInvoiceCache) Set(context.Context, string, *models.InvoiceEnvelope) error { return nil }
func (noopInvoiceCache) Invalidate(context.Context, string, int) error              { return nil }
