// Package websocket pushes order status changes to browsers waiting on the payment-return page.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"ticketpay/pkg/contracts"
)

type StatusUpdate struct {
	OrderShortID  string `json:"order_short_id"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
}

type Client struct {
	hub     *Hub
	conn    *Conn
	send    chan []byte
	orderID string
}

// Hub fans status updates out to the clients watching each order short id.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	broadcast  chan StatusUpdate
	done       chan struct{}
	clients    map[string]map[*Client]bool
	logger     *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan StatusUpdate, 64),
		done:       make(chan struct{}),
		clients:    make(map[string]map[*Client]bool),
		logger:     logger,
	}
}

func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			set, ok := h.clients[c.orderID]
			if !ok {
				set = make(map[*Client]bool)
				h.clients[c.orderID] = set
			}
			set[c] = true
		case c := <-h.unregister:
			h.drop(c)
		case upd := <-h.broadcast:
			msg, err := json.Marshal(upd)
			if err != nil {
				continue
			}
			for c := range h.clients[upd.OrderShortID] {
				select {
				case c.send <- msg:
				default:
					// slow consumer
					h.drop(c)
				}
			}
		case <-ctx.Done():
			for _, set := range h.clients {
				for c := range set {
					close(c.send)
				}
			}
			h.clients = map[string]map[*Client]bool{}
			return nil
		}
	}
}

func (h *Hub) drop(c *Client) {
	set, ok := h.clients[c.orderID]
	if !ok {
		return
	}
	if _, exists := set[c]; exists {
		delete(set, c)
		close(c.send)
	}
	if len(set) == 0 {
		delete(h.clients, c.orderID)
	}
}

// Broadcast queues u for delivery. It returns once the hub has accepted it or stopped.
func (h *Hub) Broadcast(u StatusUpdate) {
	select {
	case h.broadcast <- u:
	case <-h.done:
	}
}

// HandleStatusMessage decodes an order.status_changed message and broadcasts it.
func (h *Hub) HandleStatusMessage(_ context.Context, body []byte) error {
	var evt contracts.OrderStatusChangedEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return fmt.Errorf("decode status message: %w", err)
	}
	if evt.OrderShortID == "" {
		return fmt.Errorf("status message %s has no order short id", evt.ID)
	}
	h.Broadcast(StatusUpdate{
		OrderShortID:  evt.OrderShortID,
		Status:        evt.Status,
		PaymentStatus: evt.PaymentStatus,
	})
	return nil
}

func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
