package main

import (
	"context"
	"database/sql"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bunnybrand/My-botinok/cmd/bot/config"
	"github.com/bunnybrand/My-botinok/internal/catalog"
	"github.com/bunnybrand/My-botinok/internal/orders"
)

const storageSetupTimeout = 5 * time.Second

// buildStorage wires the order store and catalog from config. An empty
// DATABASE_URL, or a Postgres that cannot be reached, selects the
// in-memory fallbacks so the bot still runs. The returned cleanup closes
// any external connections.
func buildStorage(ctx context.Context, storage config.StorageConfig, shopCfg config.ShopConfig, logf func(string, ...any)) (orders.Store, catalog.Catalog, func()) {
	cleanup := func() {}
	var store orders.Store = orders.NewInMemoryStore()
	var cat catalog.Catalog = catalog.NewInMemoryCatalog(catalog.Sample())

	if storage.DatabaseURL != "" {
		sqlDB, err := sql.Open("pgx", storage.DatabaseURL)
		if err != nil {
			logf("postgres open failed, falling back to in-memory storage: %v", err)
		} else {
			setupCtx, cancel := context.WithTimeout(ctx, storageSetupTimeout)
			pgStore, storeErr := orders.NewPostgresStoreWithSchema(setupCtx, sqlDB)
			// Schema init seeds the sample catalog into an empty table.
			pgCatalog, catErr := catalog.NewPostgresCatalogWithSchema(setupCtx, sqlDB)
			cancel()

			if storeErr != nil || catErr != nil {
				logf("postgres init failed, falling back to in-memory storage: store=%v catalog=%v", storeErr, catErr)
				_ = sqlDB.Close()
			} else {
				logf("postgres storage enabled")
				store = pgStore
				cat = pgCatalog
				cleanup = func() {
					if err := sqlDB.Close(); err != nil {
						logf("close postgres: %v", err)
					}
				}
			}
		}
	}

	cat, redisCleanup := maybeCacheCatalog(cat, storage.RedisURL, shopCfg.CatalogCacheTTL, logf)
	prev := cleanup
	cleanup = func() {
		redisCleanup()
		prev()
	}

	return store, cat, cleanup
}

// maybeCacheCatalog wraps the catalog in a Redis read-through cache when
// REDIS_URL is set.
func maybeCacheCatalog(cat catalog.Catalog, url string, ttl time.Duration, logf func(string, ...any)) (catalog.Catalog, func()) {
	if url == "" {
		return cat, func() {}
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		logf("redis url invalid, catalog cache disabled: %v", err)
		return cat, func() {}
	}
	client := redis.NewClient(opts)
	logf("redis catalog cache enabled")
	return catalog.NewCachedCatalog(cat, client, ttl, logf), func() {
		if err := client.Close(); err != nil {
			logf("close redis: %v", err)
		}
	}
}
