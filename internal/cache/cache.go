// Package cache stores raw backend responses with a uniform time-to-live.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// DefaultExpiration is one week.
const DefaultExpiration = 7 * 24 * time.Hour

// ErrNotFound is returned by a Store for a missing key.
var ErrNotFound = errors.New("cache entry not found")

// Store is the key-value storage behind a Cache.
// Keys passed to a Store already carry the cache's prefix.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Entry is the serialized form of one cached payload.
type Entry struct {
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Cache is a TTL cache over a Store.
type Cache struct {
	store      Store
	prefix     string
	expiration time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

type Option func(*Cache)

// WithExpiration overrides DefaultExpiration. Non-positive values are ignored.
func WithExpiration(expiration time.Duration) Option {
	return func(c *Cache) {
		if expiration > 0 {
			c.expiration = expiration
		}
	}
}

// WithKeyPrefix namespaces every key written by the cache.
func WithKeyPrefix(prefix string) Option {
	return func(c *Cache) {
		c.prefix = prefix
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

func newCache(store Store, opts ...Option) *Cache {
	c := &Cache{
		store:      store,
		expiration: DefaultExpiration,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewTransient returns a cache that lives only as long as the process.
func NewTransient(opts ...Option) *Cache {
	return newCache(NewMemoryStore(), opts...)
}

// NewPersistent returns a cache over durable storage and purges the entries that
// expired while the process was not running.
func NewPersistent(ctx context.Context, store Store, opts ...Option) (*Cache, error) {
	c := newCache(store, opts...)
	if err := c.PurgeExpired(ctx); err != nil {
		return nil, fmt.Errorf("c.PurgeExpired > %w", err)
	}
	return c, nil
}

// Key builds the cache key for a query term within a symbol set.
func Key(symbolSet string, term string) string {
	return symbolSet + ":" + strings.ToLower(strings.TrimSpace(term))
}

// Expiration returns the configured time-to-live.
func (c *Cache) Expiration() time.Duration {
	return c.expiration
}

// Get returns the payload stored under key if it has not expired.
// Expired or unreadable entries are removed and reported as a miss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	storeKey := c.prefix + key
	raw, err := c.store.Get(ctx, storeKey)
	if errors.Is(err, ErrNotFound) {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("Failed to read cache entry", "key", storeKey, "error", err)
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.logger.Warn("Discarding malformed cache entry", "key", storeKey, "error", err)
		c.remove(ctx, storeKey)
		return nil, false
	}
	if !c.valid(entry) {
		c.remove(ctx, storeKey)
		return nil, false
	}
	return entry.Payload, true
}

// Put stores payload under key with the current time.
func (c *Cache) Put(ctx context.Context, key string, payload []byte) error {
	raw, err := json.Marshal(Entry{
		Timestamp: c.now(),
		Payload:   payload,
	})
	if err != nil {
		return fmt.Errorf("json.Marshal > %w", err)
	}
	if err := c.store.Set(ctx, c.prefix+key, raw); err != nil {
		return fmt.Errorf("store.Set > %w", err)
	}
	return nil
}

// PurgeExpired removes every expired or malformed entry under the cache's prefix.
func (c *Cache) PurgeExpired(ctx context.Context) error {
	keys, err := c.store.Keys(ctx, c.prefix)
	if err != nil {
		return fmt.Errorf("store.Keys > %w", err)
	}

	purged := 0
	for _, key := range keys {
		raw, err := c.store.Get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("store.Get(%s) > %w", key, err)
		}

		var entry Entry
		if err := json.Unmarshal(raw, &entry); err == nil && c.valid(entry) {
			continue
		}
		if err := c.store.Delete(ctx, key); err != nil {
			return fmt.Errorf("store.Delete(%s) > %w", key, err)
		}
		purged++
	}
	if purged > 0 {
		c.logger.Info("Purged expired cache entries", "count", purged, "prefix", c.prefix)
	}
	return nil
}

// Clear removes every entry under the cache's prefix and returns how many were removed.
func (c *Cache) Clear(ctx context.Context) (int, error) {
	keys, err := c.store.Keys(ctx, c.prefix)
	if err != nil {
		return 0, fmt.Errorf("store.Keys > %w", err)
	}
	for i, key := range keys {
		if err := c.store.Delete(ctx, key); err != nil {
			return i, fmt.Errorf("store.Delete(%s) > %w", key, err)
		}
	}
	return len(keys), nil
}

func (c *Cache) valid(entry Entry) bool {
	return c.now().Sub(entry.Timestamp) < c.expiration
}

func (c *Cache) remove(ctx context.Context, key string) {
	if err := c.store.Delete(ctx, key); err != nil {
		c.logger.Warn("Failed to remove cache entry", "key", key, "error", err)
	}
}
