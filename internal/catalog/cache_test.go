package catalog

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// countingCatalog counts calls through to the wrapped catalog.
type countingCatalog struct {
	Catalog
	games  int
	packs  int
	prices int
}

func (c *countingCatalog) Games(ctx context.Context) ([]string, error) {
	c.games++
	return c.Catalog.Games(ctx)
}

func (c *countingCatalog) Packs(ctx context.Context, game string) ([]Entry, error) {
	c.packs++
	return c.Catalog.Packs(ctx, game)
}

func (c *countingCatalog) Price(ctx context.Context, game, pack string) (float64, error) {
	c.prices++
	return c.Catalog.Price(ctx, game, pack)
}

func setupCache(t *testing.T) (*CachedCatalog, *countingCatalog, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	source := &countingCatalog{Catalog: NewInMemoryCatalog(Sample())}
	cache := NewCachedCatalog(source, client, time.Minute, t.Logf)
	return cache, source, mr
}

func TestCachedCatalog_GamesReadThrough(t *testing.T) {
	cache, source, _ := setupCache(t)
	ctx := context.Background()

	first, err := cache.Games(ctx)
	if err != nil {
		t.Fatalf("first games: %v", err)
	}
	second, err := cache.Games(ctx)
	if err != nil {
		t.Fatalf("second games: %v", err)
	}

	if source.games != 1 {
		t.Fatalf("expected a single source read, got %d", source.games)
	}
	if len(first) != len(second) || first[0] != second[0] {
		t.Fatalf("cache returned different listing: %v vs %v", first, second)
	}
}

func TestCachedCatalog_PacksServedFromRedis(t *testing.T) {
	cache, source, mr := setupCache(t)
	ctx := context.Background()

	seeded, _ := json.Marshal([]Entry{{Pack: "seeded", Price: 9.9}})
	mr.Set(packsKey("Genshin Impact"), string(seeded))

	packs, err := cache.Packs(ctx, "Genshin Impact")
	if err != nil {
		t.Fatalf("packs: %v", err)
	}
	if source.packs != 0 {
		t.Fatalf("expected no source read on cache hit, got %d", source.packs)
	}
	if len(packs) != 1 || packs[0].Pack != "seeded" {
		t.Fatalf("unexpected packs: %v", packs)
	}
}

func TestCachedCatalog_CorruptCacheFallsThrough(t *testing.T) {
	cache, source, mr := setupCache(t)
	ctx := context.Background()

	mr.Set(gamesKey, "{not json")

	games, err := cache.Games(ctx)
	if err != nil {
		t.Fatalf("games: %v", err)
	}
	if source.games != 1 {
		t.Fatalf("expected fallthrough to source, got %d reads", source.games)
	}
	if len(games) == 0 {
		t.Fatalf("expected games from source")
	}
}

func TestCachedCatalog_PriceBypassesCache(t *testing.T) {
	cache, source, _ := setupCache(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		price, err := cache.Price(ctx, "Genshin Impact", "60 Genesis Crystals")
		if err != nil {
			t.Fatalf("price: %v", err)
		}
		if price != 1.1 {
			t.Fatalf("expected 1.1, got %v", price)
		}
	}

	if source.prices != 2 {
		t.Fatalf("price must always hit the source, got %d reads", source.prices)
	}
}
