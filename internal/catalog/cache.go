package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedCatalog wraps a Catalog with a Redis read-through cache for the menu
// listings. Price deliberately bypasses the cache: the commit-time price
// re-read must always observe the source of truth.
type CachedCatalog struct {
	source  Catalog
	client  *redis.Client
	baseTTL time.Duration
	logf    func(format string, args ...any)
}

// NewCachedCatalog constructs a read-through cache over source.
func NewCachedCatalog(source Catalog, client *redis.Client, ttl time.Duration, logf func(format string, args ...any)) *CachedCatalog {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &CachedCatalog{
		source:  source,
		client:  client,
		baseTTL: ttl,
		logf:    logf,
	}
}

func (c *CachedCatalog) Games(ctx context.Context) ([]string, error) {
	var games []string
	if c.lookup(ctx, gamesKey, &games) {
		return games, nil
	}

	games, err := c.source.Games(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, gamesKey, games)
	return games, nil
}

func (c *CachedCatalog) Packs(ctx context.Context, game string) ([]Entry, error) {
	key := packsKey(game)

	var packs []Entry
	if c.lookup(ctx, key, &packs) {
		return packs, nil
	}

	packs, err := c.source.Packs(ctx, game)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, packs)
	return packs, nil
}

// Price always hits the source (see type comment).
func (c *CachedCatalog) Price(ctx context.Context, game, pack string) (float64, error) {
	return c.source.Price(ctx, game, pack)
}

// lookup reports whether the key was found and decoded. Cache failures are
// logged and treated as misses so Redis outages never break the menu.
func (c *CachedCatalog) lookup(ctx context.Context, key string, dst any) bool {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logf("catalog cache get %s: %v", key, err)
		}
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		c.logf("catalog cache decode %s: %v", key, err)
		return false
	}
	return true
}

func (c *CachedCatalog) store(ctx context.Context, key string, val any) {
	data, err := json.Marshal(val)
	if err != nil {
		c.logf("catalog cache encode %s: %v", key, err)
		return
	}
	ttl := c.baseTTL + time.Duration(rand.Intn(60))*time.Second
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.logf("catalog cache set %s: %v", key, err)
	}
}

const gamesKey = "catalog:games"

func packsKey(game string) string {
	return fmt.Sprintf("catalog:packs:%s", game)
}
