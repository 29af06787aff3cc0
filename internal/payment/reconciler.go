// Package payment reconciles provider payments with ticket orders.
package payment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"ticketpay/internal/clock"
	"ticketpay/internal/domain"
	"ticketpay/pkg/contracts"
)

type MarkOrderAsPaidInput struct {
	OrderID         int64
	EventID         int64
	PaymentID       string
	Signature       string
	ExternalOrderID string
}

type ReconcilerDeps struct {
	Tx        TxRunner
	Orders    OrderRepository
	Records   PaymentRecordStore
	Inventory InventoryUpdater
	Fees      FeeCalculator
	Ledger    FeeLedger
	Emitter   Emitter
	Gateway   GatewayFactory
	Clock     clock.Clock
	Timeout   time.Duration
	Logger    *slog.Logger
}

// Reconciler moves a paid order from RESERVED to COMPLETED together with everything that
// depends on it, exactly once per order.
type Reconciler struct {
	ReconcilerDeps
}

func NewReconciler(deps ReconcilerDeps) *Reconciler {
	if deps.Clock == nil {
		deps.Clock = clock.NewSystem()
	}
	if deps.Timeout <= 0 {
		deps.Timeout = 10 * time.Second
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Reconciler{ReconcilerDeps: deps}
}

// MarkOrderAsPaid completes the order and returns it reloaded. The order row stays locked until
// commit, so a concurrent call for the same order waits and then sees it COMPLETED.
func (r *Reconciler) MarkOrderAsPaid(ctx context.Context, in MarkOrderAsPaidInput) (*domain.Order, error) {
	var result *domain.Order

	err := r.Tx.WithTx(ctx, func(ctx context.Context) error {
		order, err := r.Orders.FindOrderForUpdate(ctx, in.OrderID, in.EventID)
		if err != nil {
			return err
		}
		if order == nil {
			return fmt.Errorf("%w: order %d for event %d", domain.ErrOrderNotFound, in.OrderID, in.EventID)
		}

		event, err := r.Orders.FindEvent(ctx, order.EventID)
		if err != nil {
			return err
		}
		if event == nil {
			return fmt.Errorf("event %d of order %d not found", order.EventID, order.ID)
		}

		if order.Status == domain.OrderStatusCompleted {
			r.Logger.Info("order already completed, skipping reconciliation",
				"order_id", order.ID, "event_id", order.EventID)
			result = order
			return nil
		}

		if err := r.Orders.CompleteOrder(ctx, order.ID, domain.PaymentProviderRazorpay); err != nil {
			return err
		}
		if err := r.Orders.MarkLatestInvoicePaid(ctx, order.ID); err != nil {
			return err
		}

		updated, err := r.Orders.FindOrder(ctx, order.ID)
		if err != nil {
			return err
		}
		if updated == nil {
			return fmt.Errorf("%w: order %d vanished", domain.ErrOrderNotFound, order.ID)
		}

		if updated.AffiliateID != nil {
			if err := r.Orders.IncrementAffiliateSales(ctx, *updated.AffiliateID, updated.TotalGross); err != nil {
				return err
			}
		}
		if _, err := r.Orders.ActivateAttendees(ctx, updated.ID); err != nil {
			return err
		}
		if err := r.Inventory.UpdateQuantitiesFromOrder(ctx, updated); err != nil {
			return fmt.Errorf("update inventory: %w", err)
		}

		now := r.Clock.Now()
		if err := r.Emitter.Emit(ctx, contracts.OrderStatusChangedEvent{
			ID:            uuid.NewString(),
			OrderID:       updated.ID,
			OrderShortID:  updated.ShortID,
			EventID:       updated.EventID,
			Status:        string(updated.Status),
			PaymentStatus: string(updated.PaymentStatus),
			SendEmails:    false,
			OccurredAt:    now,
		}); err != nil {
			return err
		}
		if err := r.Emitter.Emit(ctx, contracts.OrderCreatedEvent{
			ID:         uuid.NewString(),
			OrderID:    updated.ID,
			OccurredAt: now,
		}); err != nil {
			return err
		}

		if err := r.storeApplicationFee(ctx, updated); err != nil {
			return err
		}

		if err := r.Emitter.Emit(ctx, orderSummary(updated, event, order.LatestInvoice(), now)); err != nil {
			return err
		}

		if in.PaymentID != "" {
			r.updatePaymentRecord(ctx, updated.ID, in)
		}

		r.Logger.Info("order marked as paid", "order_id", updated.ID, "event_id", updated.EventID,
			"payment_id", in.PaymentID)
		result = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *Reconciler) storeApplicationFee(ctx context.Context, order *domain.Order) error {
	cfg, err := r.Orders.FindAccountConfiguration(ctx, order.EventID)
	if err != nil {
		return err
	}

	fee := r.Fees.Calculate(cfg, order)
	if fee == nil {
		r.Logger.Info("no application fee for order", "order_id", order.ID)
		return nil
	}

	_, err = r.Ledger.CreateOrderApplicationFee(ctx, domain.OrderApplicationFee{
		OrderID:        order.ID,
		AmountMinor:    fee.NetApplicationFee.MinorUnit(),
		VATRate:        fee.VATRate,
		VATAmountMinor: fee.VATAmount.MinorUnit(),
		Currency:       order.Currency,
		Status:         domain.OrderApplicationFeeStatusPaid,
		Method:         domain.PaymentProviderRazorpay,
		PaidAt:         r.Clock.Now(),
	})
	if err != nil {
		return fmt.Errorf("store application fee: %w", err)
	}
	return nil
}

// updatePaymentRecord copies the provider's view of the payment onto the record. It runs in its
// own savepoint and never fails the reconciliation.
func (r *Reconciler) updatePaymentRecord(ctx context.Context, orderID int64, in MarkOrderAsPaidInput) {
	err := r.Tx.WithTx(ctx, func(ctx context.Context) error {
		rec, err := r.Records.FindByOrder(ctx, orderID, in.ExternalOrderID)
		if err != nil {
			return err
		}
		if rec == nil {
			return nil
		}

		upd := domain.PaymentRecordUpdate{ExternalPaymentID: &in.PaymentID}
		if in.Signature != "" {
			upd.Signature = &in.Signature
		}

		client, err := r.Gateway.CreateClient()
		if err != nil {
			return err
		}
		callCtx, cancel := context.WithTimeout(ctx, r.Timeout)
		defer cancel()
		payment, err := client.FetchPayment(callCtx, in.PaymentID)
		if err != nil {
			return fmt.Errorf("fetch payment %s: %w", in.PaymentID, err)
		}
		upd.Status = &payment.Status
		upd.Method = &payment.Method

		return r.Records.Update(ctx, rec.ID, upd)
	})
	if err != nil {
		r.Logger.Error("failed to update razorpay payment record", "order_id", orderID,
			"payment_id", in.PaymentID, "err", err)
	}
}

func orderSummary(order *domain.Order, event *domain.Event, invoice *domain.Invoice, now time.Time) contracts.OrderSummaryRequestedEvent {
	msg := contracts.OrderSummaryRequestedEvent{
		ID:                  uuid.NewString(),
		OrderID:             order.ID,
		OrderShortID:        order.ShortID,
		EventID:             event.ID,
		EventTitle:          event.Title,
		OrganizerID:         event.Organizer.ID,
		OrganizerName:       event.Organizer.Name,
		OrganizerEmail:      event.Organizer.Email,
		SupportEmail:        event.Settings.SupportEmail,
		PostCheckoutMessage: event.Settings.PostCheckoutMessage,
		TotalGross:          order.TotalGross.StringFixed(domain.MinorUnitExponent(order.Currency)),
		Currency:            order.Currency,
		AttendeeCount:       len(order.Attendees),
		OccurredAt:          now,
	}
	if invoice != nil {
		id := invoice.ID
		msg.InvoiceID = &id
	}
	return msg
}
