// Package catalog provides the lookup of sellable (game, pack) pairs and
// their reference-currency prices.
package catalog

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrNotListed signals the (game, pack) pair has no catalog entry.
var ErrNotListed = errors.New("catalog entry not listed")

// Entry is a sellable pack under a game with its price in the reference currency.
type Entry struct {
	Pack  string  `json:"pack"`
	Price float64 `json:"price"`
}

// Catalog resolves games, their packs and prices.
type Catalog interface {
	Games(ctx context.Context) ([]string, error)
	Packs(ctx context.Context, game string) ([]Entry, error)
	Price(ctx context.Context, game, pack string) (float64, error)
}

// Sample returns the demo catalog seeded into empty stores.
func Sample() map[string][]Entry {
	return map[string][]Entry{
		"Genshin Impact": {
			{Pack: "60 Genesis Crystals", Price: 1.1},
			{Pack: "330 Genesis Crystals", Price: 5.5},
		},
		"World of Warcraft": {
			{Pack: "Gold 100k (EU)", Price: 7.0},
		},
	}
}

// NewInMemoryCatalog constructs a catalog over a static entry map.
func NewInMemoryCatalog(entries map[string][]Entry) *InMemoryCatalog {
	c := &InMemoryCatalog{entries: make(map[string][]Entry, len(entries))}
	for game, packs := range entries {
		sorted := append([]Entry(nil), packs...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Price < sorted[j].Price })
		c.entries[game] = sorted
	}
	return c
}

// InMemoryCatalog serves catalog lookups from memory. It backs development
// runs without a database and the flow tests.
type InMemoryCatalog struct {
	mu      sync.RWMutex
	entries map[string][]Entry
}

func (c *InMemoryCatalog) Games(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	games := make([]string, 0, len(c.entries))
	for game := range c.entries {
		games = append(games, game)
	}
	sort.Strings(games)
	return games, nil
}

func (c *InMemoryCatalog) Packs(ctx context.Context, game string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Entry(nil), c.entries[game]...), nil
}

func (c *InMemoryCatalog) Price(ctx context.Context, game, pack string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.entries[game] {
		if e.Pack == pack {
			return e.Price, nil
		}
	}
	return 0, ErrNotListed
}

// Remove drops an entry. Used by tests to simulate a catalog change between
// selection and commit.
func (c *InMemoryCatalog) Remove(game, pack string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	packs := c.entries[game]
	for i, e := range packs {
		if e.Pack == pack {
			c.entries[game] = append(packs[:i], packs[i+1:]...)
			return
		}
	}
}
