package catalog

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresCatalog serves catalog lookups from Postgres.
type PostgresCatalog struct {
	db *sql.DB
}

// NewPostgresCatalog constructs a Catalog backed by Postgres.
func NewPostgresCatalog(db *sql.DB) *PostgresCatalog {
	return &PostgresCatalog{db: db}
}

// NewPostgresCatalogWithSchema initializes the schema, seeds the sample
// catalog into an empty table, then returns the catalog.
func NewPostgresCatalogWithSchema(ctx context.Context, db *sql.DB) (*PostgresCatalog, error) {
	c := NewPostgresCatalog(db)
	if err := c.InitSchema(ctx); err != nil {
		return nil, err
	}
	if err := c.SeedIfEmpty(ctx, Sample()); err != nil {
		return nil, err
	}
	return c, nil
}

// InitSchema creates the catalog table if it does not exist.
func (c *PostgresCatalog) InitSchema(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS catalog (
			game TEXT NOT NULL,
			pack TEXT NOT NULL,
			price DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (game, pack)
		)
	`)
	return err
}

// SeedIfEmpty inserts the given entries when the table has no rows.
func (c *PostgresCatalog) SeedIfEmpty(ctx context.Context, entries map[string][]Entry) error {
	var count int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM catalog`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	for game, packs := range entries {
		for _, e := range packs {
			_, err := c.db.ExecContext(ctx,
				`INSERT INTO catalog (game, pack, price) VALUES ($1, $2, $3) ON CONFLICT (game, pack) DO NOTHING`,
				game, e.Pack, e.Price)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *PostgresCatalog) Games(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT DISTINCT game FROM catalog ORDER BY game`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var games []string
	for rows.Next() {
		var game string
		if err := rows.Scan(&game); err != nil {
			return nil, err
		}
		games = append(games, game)
	}
	return games, rows.Err()
}

func (c *PostgresCatalog) Packs(ctx context.Context, game string) ([]Entry, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT pack, price FROM catalog WHERE game = $1 ORDER BY price`, game)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var packs []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Pack, &e.Price); err != nil {
			return nil, err
		}
		packs = append(packs, e)
	}
	return packs, rows.Err()
}

func (c *PostgresCatalog) Price(ctx context.Context, game, pack string) (float64, error) {
	var price float64
	row := c.db.QueryRowContext(ctx, `SELECT price FROM catalog WHERE game = $1 AND pack = $2`, game, pack)
	switch err := row.Scan(&price); {
	case err == nil:
		return price, nil
	case errors.Is(err, sql.ErrNoRows):
		return 0, ErrNotListed
	default:
		return 0, err
	}
}
