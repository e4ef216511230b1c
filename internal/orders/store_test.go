package orders

import (
	"context"
	"errors"
	"testing"
	"time"
)

func sampleOrder(id string) Order {
	return Order{
		ID:        id,
		BuyerID:   1001,
		BuyerName: "alice",
		Game:      "Genshin Impact",
		Pack:      "60 Genesis Crystals",
		Price:     1.1,
		Asset:     "USDT",
		Nickname:  "Player123",
		CreatedAt: time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC),
		Status:    StatusPending,
		InvoiceID: 42,
		PayURL:    "https://pay.example/42",
	}
}

func TestInMemoryStore_InsertThenGet(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	if err := s.Insert(ctx, sampleOrder("order-1")); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := s.Get(ctx, "order-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusPending || got.InvoiceID != 42 {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestInMemoryStore_DuplicateInsert(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	if err := s.Insert(ctx, sampleOrder("order-1")); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := s.Insert(ctx, sampleOrder("order-1")); !errors.Is(err, ErrDuplicateOrder) {
		t.Fatalf("expected ErrDuplicateOrder, got %v", err)
	}
}

func TestInMemoryStore_UpdateStatus(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	if err := s.UpdateStatus(ctx, "missing", StatusPaid); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}

	if err := s.Insert(ctx, sampleOrder("order-1")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.UpdateStatus(ctx, "order-1", StatusPaid); err != nil {
		t.Fatalf("pending -> paid: %v", err)
	}

	// Idempotent no-op.
	if err := s.UpdateStatus(ctx, "order-1", StatusPaid); err != nil {
		t.Fatalf("paid -> paid: %v", err)
	}

	if err := s.UpdateStatus(ctx, "order-1", StatusInvalid); !errors.Is(err, ErrStatusFinal) {
		t.Fatalf("expected ErrStatusFinal, got %v", err)
	}

	got, err := s.Get(ctx, "order-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusPaid {
		t.Fatalf("expected paid, got %s", got.Status)
	}
}
