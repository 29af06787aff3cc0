package payment

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"ticketpay/internal/clock"
	"ticketpay/internal/domain"
	"ticketpay/internal/gateway"
)

// CreateOrderResponse is what the checkout page needs to open the provider's payment widget.
type CreateOrderResponse struct {
	OrderID  string `json:"order_id"`
	KeyID    string `json:"key_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type OrderCreator struct {
	orders  OrderRepository
	records PaymentRecordStore
	gateway GatewayFactory
	clock   clock.Clock
	timeout time.Duration
	logger  *slog.Logger
}

func NewOrderCreator(orders OrderRepository, records PaymentRecordStore, gw GatewayFactory, clk clock.Clock, timeout time.Duration, logger *slog.Logger) *OrderCreator {
	return &OrderCreator{
		orders:  orders,
		records: records,
		gateway: gw,
		clock:   clk,
		timeout: timeout,
		logger:  logger,
	}
}

// CreateProviderOrder opens a provider order for a reserved order owned by sessionID.
func (c *OrderCreator) CreateProviderOrder(ctx context.Context, orderShortID, sessionID string) (*CreateOrderResponse, error) {
	order, err := c.orders.FindOrderByShortID(ctx, orderShortID)
	if err != nil {
		return nil, err
	}
	if order == nil || !sessionMatches(order.SessionID, sessionID) {
		return nil, domain.ErrUnauthorized
	}
	if order.Status != domain.OrderStatusReserved || order.IsReservationExpired(c.clock.Now()) {
		return nil, domain.ErrResourceConflict
	}

	resp, err := c.createOrder(ctx, order)
	if err != nil {
		c.logger.Error("razorpay order creation failed", "order_id", order.ID,
			"order_short_id", order.ShortID, "err", err)
		return nil, fmt.Errorf("%w: %w", domain.ErrCreateOrderFailed, err)
	}
	return resp, nil
}

func (c *OrderCreator) createOrder(ctx context.Context, order *domain.Order) (*CreateOrderResponse, error) {
	client, err := c.gateway.CreateClient()
	if err != nil {
		return nil, err
	}

	currency := strings.ToUpper(order.Currency)
	amount := domain.ToMinorUnit(order.TotalGross, currency)

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	providerOrder, err := client.CreateOrder(callCtx, gateway.CreateOrderRequest{
		AmountMinor: amount,
		Currency:    currency,
		Receipt:     order.ShortID,
		Notes: map[string]string{
			"order_id":       strconv.FormatInt(order.ID, 10),
			"event_id":       strconv.FormatInt(order.EventID, 10),
			"order_short_id": order.ShortID,
		},
	})
	if err != nil {
		return nil, err
	}

	rec := &domain.PaymentRecord{
		OrderID:         order.ID,
		ExternalOrderID: providerOrder.ID,
		AmountMinor:     amount,
		Currency:        currency,
		Status:          providerOrder.Status,
		Method:          domain.PaymentRecordMethodUnknown,
	}
	if err := c.records.Create(ctx, rec); err != nil {
		return nil, err
	}

	c.logger.Info("razorpay order created", "order_id", order.ID, "razorpay_order_id", providerOrder.ID,
		"amount", amount, "currency", currency)

	return &CreateOrderResponse{
		OrderID:  providerOrder.ID,
		KeyID:    c.gateway.KeyID(),
		Amount:   amount,
		Currency: currency,
	}, nil
}

func sessionMatches(orderSession, claimed string) bool {
	if orderSession == "" || claimed == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(orderSession), []byte(claimed)) == 1
}
