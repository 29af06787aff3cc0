package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	gw "github.com/gorilla/websocket"

	"ticketpay/internal/domain"
)

type Conn = gw.Conn

var upgrader = gw.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type OrderLookup interface {
	FindOrderByShortID(ctx context.Context, shortID string) (*domain.Order, error)
}

type Handler struct {
	hub    *Hub
	orders OrderLookup
	logger *slog.Logger
}

func NewHandler(hub *Hub, orders OrderLookup, logger *slog.Logger) *Handler {
	return &Handler{hub: hub, orders: orders, logger: logger}
}

// ServeWS streams status updates of /events/{eventID}/order/{orderShortID}/ws,
// starting with the order's current status.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	eventID, err := strconv.ParseInt(r.PathValue("eventID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid event id", http.StatusBadRequest)
		return
	}
	shortID := r.PathValue("orderShortID")

	o, err := h.orders.FindOrderByShortID(r.Context(), shortID)
	if err != nil {
		h.logger.Error("load order for websocket", "order_short_id", shortID, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if o == nil || o.EventID != eventID {
		http.Error(w, "order not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := &Client{
		hub:     h.hub,
		conn:    conn,
		send:    make(chan []byte, 16),
		orderID: shortID,
	}

	// The snapshot is queued before the hub can see the client, so it always goes out first.
	upd := StatusUpdate{OrderShortID: shortID, Status: string(o.Status), PaymentStatus: string(o.PaymentStatus)}
	if b, err := json.Marshal(upd); err == nil {
		client.send <- b
	}

	if !h.hub.join(client) {
		_ = conn.Close()
		return
	}
	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		_ = c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	defer func() { _ = c.conn.Close() }()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteMessage(gw.TextMessage, msg); err != nil {
			return
		}
	}
}
