package orders

import (
	"context"
	"errors"
	"sync"
)

// ErrDuplicateOrder signals an insert with an order id that already exists.
var ErrDuplicateOrder = errors.New("duplicate order id")

// ErrOrderNotFound signals the order id has no row.
var ErrOrderNotFound = errors.New("order not found")

// ErrStatusFinal signals an attempt to overwrite a terminal status.
var ErrStatusFinal = errors.New("order status is final")

// Store persists orders. Insert is insert-if-absent by id; UpdateStatus only
// moves orders out of pending and treats re-applying the current status as a
// no-op success.
type Store interface {
	Insert(ctx context.Context, o Order) error
	UpdateStatus(ctx context.Context, orderID string, status Status) error
	Get(ctx context.Context, orderID string) (Order, error)
}

// NewInMemoryStore constructs an in-memory order store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{orders: make(map[string]Order)}
}

// InMemoryStore keeps orders in a mutex-guarded map. It backs development
// runs without a database and the flow tests.
type InMemoryStore struct {
	mu     sync.Mutex
	orders map[string]Order
}

func (s *InMemoryStore) Insert(ctx context.Context, o Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; ok {
		return ErrDuplicateOrder
	}
	s.orders[o.ID] = o
	return nil
}

func (s *InMemoryStore) UpdateStatus(ctx context.Context, orderID string, status Status) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	if !CanTransition(o.Status, status) {
		return ErrStatusFinal
	}
	o.Status = status
	s.orders[orderID] = o
	return nil
}

func (s *InMemoryStore) Get(ctx context.Context, orderID string) (Order, error) {
	if err := ctx.Err(); err != nil {
		return Order{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return o, nil
}
