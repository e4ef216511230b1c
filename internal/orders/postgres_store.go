package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresStore persists orders in Postgres.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a Store backed by Postgres.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresStoreWithSchema initializes the schema then returns the store.
func NewPostgresStoreWithSchema(ctx context.Context, db *sql.DB) (*PostgresStore, error) {
	store := NewPostgresStore(db)
	if err := store.InitSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// InitSchema creates the orders table if it does not exist.
func (p *PostgresStore) InitSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			buyer_id BIGINT NOT NULL,
			buyer_name TEXT,
			game TEXT NOT NULL,
			pack TEXT NOT NULL,
			price DOUBLE PRECISION NOT NULL,
			asset TEXT NOT NULL,
			nickname TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			status TEXT NOT NULL,
			invoice_id BIGINT NOT NULL,
			pay_url TEXT NOT NULL
		)
	`)
	return err
}

func (p *PostgresStore) Insert(ctx context.Context, o Order) error {
	if o.ID == "" {
		return fmt.Errorf("order id required")
	}

	res, err := p.db.ExecContext(ctx, `
		INSERT INTO orders (id, buyer_id, buyer_name, game, pack, price, asset, nickname, created_at, status, invoice_id, pay_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING`,
		o.ID, o.BuyerID, o.BuyerName, o.Game, o.Pack, o.Price, o.Asset, o.Nickname, o.CreatedAt, string(o.Status), o.InvoiceID, o.PayURL)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrDuplicateOrder
	}

	return nil
}

func (p *PostgresStore) UpdateStatus(ctx context.Context, orderID string, status Status) error {
	if orderID == "" {
		return fmt.Errorf("order id required")
	}

	res, err := p.db.ExecContext(ctx,
		`UPDATE orders SET status = $2 WHERE id = $1 AND status = $3`,
		orderID, string(status), string(StatusPending))
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	// The conditional update matched nothing: the order is missing, already in
	// the requested status, or locked in another terminal status.
	var current string
	row := p.db.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = $1`, orderID)
	switch scanErr := row.Scan(&current); {
	case scanErr == nil:
		if Status(current) == status {
			return nil
		}
		return ErrStatusFinal
	case errors.Is(scanErr, sql.ErrNoRows):
		return ErrOrderNotFound
	default:
		return scanErr
	}
}

func (p *PostgresStore) Get(ctx context.Context, orderID string) (Order, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, buyer_id, buyer_name, game, pack, price, asset, nickname, created_at, status, invoice_id, pay_url
		FROM orders WHERE id = $1`, orderID)

	var o Order
	var status string
	err := row.Scan(&o.ID, &o.BuyerID, &o.BuyerName, &o.Game, &o.Pack, &o.Price, &o.Asset, &o.Nickname, &o.CreatedAt, &status, &o.InvoiceID, &o.PayURL)
	if errors.Is(err, sql.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	if err != nil {
		return Order{}, err
	}
	o.Status = Status(status)
	return o, nil
}
