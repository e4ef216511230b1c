// Package realtime streams order lifecycle events to operator WebSocket
// clients. Delivery of the purchased goods is manual, so operators watch this
// feed for orders turning paid.
package realtime

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bunnybrand/My-botinok/internal/orders"
)

// OrderEvent is the wire form of one order lifecycle change.
type OrderEvent struct {
	OrderID   string    `json:"order_id"`
	BuyerID   int64     `json:"buyer_id"`
	BuyerName string    `json:"buyer_name,omitempty"`
	Game      string    `json:"game"`
	Pack      string    `json:"pack"`
	Price     float64   `json:"price"`
	Asset     string    `json:"asset"`
	Nickname  string    `json:"nickname"`
	Status    string    `json:"status"`
	At        time.Time `json:"at"`
}

// Hub manages operator WebSocket clients and broadcasts order events to them.
type Hub struct {
	connections map[*websocket.Conn]struct{}
	register    chan *websocket.Conn
	unregister  chan *websocket.Conn
	broadcast   chan []byte
	done        chan struct{}
	mu          sync.Mutex
	now         func() time.Time
	logf        func(format string, args ...any)
}

// NewHub constructs a Hub.
func NewHub(logf func(format string, args ...any)) *Hub {
	if logf == nil {
		logf = log.Printf
	}
	return &Hub{
		connections: make(map[*websocket.Conn]struct{}),
		register:    make(chan *websocket.Conn),
		unregister:  make(chan *websocket.Conn),
		broadcast:   make(chan []byte, 16),
		done:        make(chan struct{}),
		now:         time.Now,
		logf:        logf,
	}
}

// NotifyOrder broadcasts the order's current state to all operators. It never
// blocks the order path: when the feed is saturated the event is dropped.
func (h *Hub) NotifyOrder(o orders.Order) {
	ev := OrderEvent{
		OrderID:   o.ID,
		BuyerID:   o.BuyerID,
		BuyerName: o.BuyerName,
		Game:      o.Game,
		Pack:      o.Pack,
		Price:     o.Price,
		Asset:     o.Asset,
		Nickname:  o.Nickname,
		Status:    string(o.Status),
		At:        h.now().UTC(),
	}
	msg, err := json.Marshal(ev)
	if err != nil {
		h.logf("encode order event %s: %v", o.ID, err)
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		h.logf("operator feed saturated, dropping event for order %s", o.ID)
	}
}

// Run processes register/unregister/broadcast events until ctx ends. After
// it returns, late-arriving connections are closed instead of attached.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for conn := range h.connections {
				conn.Close()
				delete(h.connections, conn)
			}
			h.mu.Unlock()
			return
		case conn := <-h.register:
			h.mu.Lock()
			h.connections[conn] = struct{}{}
			h.mu.Unlock()
		case conn := <-h.unregister:
			h.mu.Lock()
			delete(h.connections, conn)
			h.mu.Unlock()
			conn.Close()
		case msg := <-h.broadcast:
			h.mu.Lock()
			for conn := range h.connections {
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					conn.Close()
					delete(h.connections, conn)
				}
			}
			h.mu.Unlock()
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Handler upgrades operator connections and attaches them to the hub.
func (h *Hub) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logf("operator feed upgrade: %v", err)
			return
		}
		select {
		case h.register <- conn:
		case <-h.done:
			conn.Close()
			return
		}

		// Drain reads so close frames are processed; operators only listen.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					select {
					case h.unregister <- conn:
					case <-h.done:
						conn.Close()
					}
					return
				}
			}
		}()
	})
}
