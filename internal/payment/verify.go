package payment

import (
	"context"
	"fmt"
	"log/slog"

	"ticketpay/internal/domain"
)

// VerifyPaymentInput is the proof of payment the provider's checkout widget hands the browser.
type VerifyPaymentInput struct {
	ExternalPaymentID string `json:"razorpay_payment_id" validate:"required"`
	ExternalOrderID   string `json:"razorpay_order_id" validate:"required"`
	Signature         string `json:"razorpay_signature" validate:"required"`
}

// ClientVerifier completes an order from a client-submitted payment proof.
type ClientVerifier struct {
	verifier SignatureVerifier
	orders   OrderRepository
	records  PaymentRecordStore
	payer    OrderPayer
	logger   *slog.Logger
}

func NewClientVerifier(verifier SignatureVerifier, orders OrderRepository, records PaymentRecordStore, payer OrderPayer, logger *slog.Logger) *ClientVerifier {
	return &ClientVerifier{
		verifier: verifier,
		orders:   orders,
		records:  records,
		payer:    payer,
		logger:   logger,
	}
}

// Verify checks the signature and that the provider order belongs to this order before
// reconciling it.
func (v *ClientVerifier) Verify(ctx context.Context, eventID int64, orderShortID string, in VerifyPaymentInput) (*domain.Order, error) {
	order, err := v.orders.FindOrderByShortID(ctx, orderShortID)
	if err != nil {
		return nil, err
	}
	if order == nil || order.EventID != eventID {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderShortID)
	}

	if err := v.verifier.VerifyPayment(in.ExternalOrderID, in.ExternalPaymentID, in.Signature); err != nil {
		v.logger.Warn("razorpay payment signature rejected", "order_id", order.ID, "err", err)
		return nil, err
	}

	rec, err := v.records.FindByOrder(ctx, order.ID, in.ExternalOrderID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		v.logger.Warn("razorpay order does not belong to order", "order_id", order.ID,
			"razorpay_order_id", in.ExternalOrderID)
		return nil, fmt.Errorf("%w: razorpay order %s is not linked to order %d",
			domain.ErrSignatureInvalid, in.ExternalOrderID, order.ID)
	}

	v.logger.Info("handling successful razorpay payment", "order_id", order.ID, "event_id", eventID)

	return v.payer.MarkOrderAsPaid(ctx, MarkOrderAsPaidInput{
		OrderID:         order.ID,
		EventID:         eventID,
		PaymentID:       in.ExternalPaymentID,
		Signature:       in.Signature,
		ExternalOrderID: in.ExternalOrderID,
	})
}
