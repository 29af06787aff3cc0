package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ticketpay/internal/clock"
	"ticketpay/internal/domain"
	"ticketpay/pkg/contracts"
)

var errNothingToRefund = errors.New("payment has no refundable balance")

// Refunder issues provider refunds against an order's captured payment.
// The order's own status is left to the caller.
type Refunder struct {
	orders  OrderRepository
	records PaymentRecordStore
	gateway GatewayFactory
	emitter Emitter
	clock   clock.Clock
	timeout time.Duration
	logger  *slog.Logger
}

func NewRefunder(orders OrderRepository, records PaymentRecordStore, gw GatewayFactory, emitter Emitter, clk clock.Clock, timeout time.Duration, logger *slog.Logger) *Refunder {
	return &Refunder{
		orders:  orders,
		records: records,
		gateway: gw,
		emitter: emitter,
		clock:   clk,
		timeout: timeout,
		logger:  logger,
	}
}

// RefundOrder refunds amount (major units) of the order's payment, or the whole remaining
// balance when amount is nil.
func (r *Refunder) RefundOrder(ctx context.Context, orderID int64, amount *decimal.Decimal) error {
	rec, err := r.records.FindCapturedByOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if rec == nil || rec.ExternalPaymentID == nil || *rec.ExternalPaymentID == "" {
		return fmt.Errorf("%w: no razorpay payment found for order %d", domain.ErrRefundNotPossible, orderID)
	}
	if amount != nil && !amount.IsPositive() {
		return fmt.Errorf("%w: refund amount must be positive", domain.ErrInvalidInput)
	}

	refunded, currency, err := r.refund(ctx, *rec.ExternalPaymentID, amount, rec.Currency)
	if err != nil {
		r.logger.Error("razorpay refund failed", "order_id", orderID,
			"payment_id", *rec.ExternalPaymentID, "err", err)
		r.recordFailure(ctx, rec, err)
		return fmt.Errorf("%w: %w", domain.ErrRefundNotPossible, err)
	}

	r.logger.Info("razorpay refund successful", "order_id", orderID, "refund_id", refunded.ID,
		"amount_minor", refunded.AmountMinor, "currency", currency)

	if refunded.Full {
		status := domain.PaymentRecordStatusRefunded
		if err := r.records.Update(ctx, rec.ID, domain.PaymentRecordUpdate{Status: &status}); err != nil {
			r.logger.Error("failed to mark payment record refunded", "order_id", orderID, "err", err)
		}
	}

	if err := r.emitter.Emit(ctx, contracts.OrderRefundedEvent{
		ID:          uuid.NewString(),
		OrderID:     orderID,
		RefundID:    refunded.ID,
		AmountMinor: refunded.AmountMinor,
		Currency:    currency,
		FullRefund:  refunded.Full,
		OccurredAt:  r.clock.Now(),
	}); err != nil {
		r.logger.Error("failed to queue refund event", "order_id", orderID, "err", err)
	}
	return nil
}

// Refund refunds the order of eventID and returns it in its current state.
func (r *Refunder) Refund(ctx context.Context, eventID, orderID int64, amount *decimal.Decimal) (*domain.Order, error) {
	order, err := r.orders.FindOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil || order.EventID != eventID {
		return nil, fmt.Errorf("%w: order %d for event %d", domain.ErrOrderNotFound, orderID, eventID)
	}

	if err := r.RefundOrder(ctx, orderID, amount); err != nil {
		return nil, err
	}
	return r.orders.FindOrder(ctx, orderID)
}

type refundResult struct {
	ID          string
	AmountMinor int64
	// Full is set when the refund settles the whole remaining balance.
	Full bool
}

func (r *Refunder) refund(ctx context.Context, paymentID string, amount *decimal.Decimal, fallbackCurrency string) (*refundResult, string, error) {
	client, err := r.gateway.CreateClient()
	if err != nil {
		return nil, "", err
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	payment, err := client.FetchPayment(callCtx, paymentID)
	if err != nil {
		return nil, "", fmt.Errorf("fetch payment: %w", err)
	}
	currency := payment.Currency
	if currency == "" {
		currency = fallbackCurrency
	}

	remaining := payment.RefundableMinor()
	minor := remaining
	if amount != nil {
		minor = domain.ToMinorUnit(*amount, currency)
	}
	if minor <= 0 {
		return nil, currency, errNothingToRefund
	}

	refund, err := client.RefundPayment(callCtx, paymentID, &minor)
	if err != nil {
		return nil, currency, fmt.Errorf("refund payment: %w", err)
	}
	refunded := refund.AmountMinor
	if refunded == 0 {
		refunded = minor
	}
	return &refundResult{ID: refund.ID, AmountMinor: refunded, Full: minor == remaining}, currency, nil
}

func (r *Refunder) recordFailure(ctx context.Context, rec *domain.PaymentRecord, cause error) {
	details, err := json.Marshal(map[string]string{
		"operation": "refund",
		"error":     cause.Error(),
		"at":        r.clock.Now().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	if err := r.records.Update(ctx, rec.ID, domain.PaymentRecordUpdate{ErrorDetails: details}); err != nil {
		r.logger.Error("failed to store refund error", "payment_record_id", rec.ID, "err", err)
	}
}
