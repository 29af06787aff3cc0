package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"ticketpay/internal/domain"
)

const (
	webhookOrderPaid       = "order.paid"
	webhookPaymentCaptured = "payment.captured"
)

// WebhookDelivery is one provider callback as received over HTTP.
type WebhookDelivery struct {
	Body       []byte
	Signature  string
	DeliveryID string
}

type webhookPayload struct {
	Event   string `json:"event"`
	Payload struct {
		Payment *struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
			} `json:"entity"`
		} `json:"payment"`
		Order *struct {
			Entity struct {
				ID string `json:"id"`
			} `json:"entity"`
		} `json:"order"`
	} `json:"payload"`
}

func (p webhookPayload) externalOrderID() string {
	if p.Payload.Order != nil && p.Payload.Order.Entity.ID != "" {
		return p.Payload.Order.Entity.ID
	}
	if p.Payload.Payment != nil {
		return p.Payload.Payment.Entity.OrderID
	}
	return ""
}

func (p webhookPayload) paymentID() string {
	if p.Payload.Payment != nil {
		return p.Payload.Payment.Entity.ID
	}
	return ""
}

type WebhookProcessor struct {
	verifier SignatureVerifier
	records  PaymentRecordStore
	orders   OrderRepository
	payer    OrderPayer
	inbox    WebhookInbox
	logger   *slog.Logger
}

func NewWebhookProcessor(verifier SignatureVerifier, records PaymentRecordStore, orders OrderRepository, payer OrderPayer, inbox WebhookInbox, logger *slog.Logger) *WebhookProcessor {
	return &WebhookProcessor{
		verifier: verifier,
		records:  records,
		orders:   orders,
		payer:    payer,
		inbox:    inbox,
		logger:   logger,
	}
}

// Handle returns an error only when the delivery fails verification or cannot be parsed.
// Processing failures are logged and the delivery is acknowledged.
func (w *WebhookProcessor) Handle(ctx context.Context, d WebhookDelivery) error {
	if err := w.verifier.VerifyWebhook(d.Body, d.Signature); err != nil {
		w.logger.Error("razorpay webhook rejected", "delivery_id", d.DeliveryID, "err", err)
		return err
	}

	var payload webhookPayload
	if err := json.Unmarshal(d.Body, &payload); err != nil {
		w.logger.Error("razorpay webhook body is not valid json", "delivery_id", d.DeliveryID, "err", err)
		return fmt.Errorf("%w: malformed webhook body", domain.ErrInvalidInput)
	}

	w.logger.Info("received razorpay webhook", "event", payload.Event, "delivery_id", d.DeliveryID)

	switch payload.Event {
	case webhookOrderPaid, webhookPaymentCaptured:
	default:
		w.logger.Debug("ignoring razorpay webhook event", "event", payload.Event)
		return nil
	}

	if d.DeliveryID != "" {
		seen, err := w.inbox.Seen(ctx, d.DeliveryID)
		if err != nil {
			w.logger.Warn("webhook inbox lookup failed", "delivery_id", d.DeliveryID, "err", err)
		} else if seen {
			w.logger.Info("razorpay webhook already processed", "delivery_id", d.DeliveryID)
			return nil
		}
	}

	if err := w.handlePaid(ctx, payload); err != nil {
		w.logger.Error("failed to process razorpay webhook", "event", payload.Event,
			"delivery_id", d.DeliveryID, "err", err)
		return nil
	}

	if d.DeliveryID != "" {
		if _, err := w.inbox.Record(ctx, d.DeliveryID, payload.Event); err != nil {
			w.logger.Warn("failed to record webhook delivery", "delivery_id", d.DeliveryID, "err", err)
		}
	}
	return nil
}

func (w *WebhookProcessor) handlePaid(ctx context.Context, payload webhookPayload) error {
	externalOrderID := payload.externalOrderID()
	if externalOrderID == "" {
		w.logger.Error("razorpay webhook has no order id", "event", payload.Event)
		return nil
	}

	rec, err := w.records.FindByExternalOrderID(ctx, externalOrderID)
	if err != nil {
		return err
	}
	if rec == nil {
		w.logger.Warn("no payment record for razorpay order", "razorpay_order_id", externalOrderID)
		return nil
	}

	order, err := w.orders.FindOrder(ctx, rec.OrderID)
	if err != nil {
		return err
	}
	if order == nil {
		w.logger.Error("order for razorpay payment record not found", "order_id", rec.OrderID,
			"razorpay_order_id", externalOrderID)
		return nil
	}

	_, err = w.payer.MarkOrderAsPaid(ctx, MarkOrderAsPaidInput{
		OrderID:         order.ID,
		EventID:         order.EventID,
		PaymentID:       payload.paymentID(),
		ExternalOrderID: externalOrderID,
	})
	return err
}
