package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketpay/internal/clock"
	"ticketpay/internal/domain"
	"ticketpay/internal/gateway"
	"ticketpay/pkg/contracts"
)

func refundFixture(t *testing.T) (*memStore, *fakeGateway, *Refunder, *domain.PaymentRecord) {
	t.Helper()
	store := newMemStore()
	seeded := store.seed()
	store.orders[seeded.ID].Status = domain.OrderStatusCompleted
	paymentID := "pay_XYZ"
	rec := store.addRecord(domain.PaymentRecord{
		OrderID: seeded.ID, ExternalOrderID: "order_ABC", ExternalPaymentID: &paymentID,
		AmountMinor: 10000, Currency: "INR", Status: "captured", Method: "upi",
	})
	gw := newFakeGateway()
	gw.payments[paymentID] = &gateway.ProviderPayment{
		ID: paymentID, OrderID: "order_ABC", AmountMinor: 10000, AmountRefundedMinor: 2000,
		Currency: "INR", Status: "captured", Method: "upi",
	}
	r := NewRefunder(store, store, gw, store, clock.NewFixed(testNow), time.Second, discardLogger())
	return store, gw, r, rec
}

func TestRefundPartialAmount(t *testing.T) {
	store, gw, r, rec := refundFixture(t)

	amount := decimal.RequireFromString("25.00")
	require.NoError(t, r.RefundOrder(context.Background(), 1, &amount))

	require.Len(t, gw.refunds, 1)
	assert.Equal(t, refundCall{PaymentID: "pay_XYZ", AmountMinor: 2500}, gw.refunds[0])
	assert.Equal(t, "captured", store.record(rec.ID).Status)
	assert.Equal(t, domain.OrderStatusCompleted, store.order(1).Status)

	refunded := store.messages(contracts.TypeOrderRefunded)
	require.Len(t, refunded, 1)
	evt := refunded[0].(contracts.OrderRefundedEvent)
	assert.Equal(t, int64(2500), evt.AmountMinor)
	assert.False(t, evt.FullRefund)
}

func TestRefundFullRemainingBalance(t *testing.T) {
	store, gw, r, rec := refundFixture(t)

	require.NoError(t, r.RefundOrder(context.Background(), 1, nil))

	require.Len(t, gw.refunds, 1)
	assert.Equal(t, int64(8000), gw.refunds[0].AmountMinor)
	assert.Equal(t, domain.PaymentRecordStatusRefunded, store.record(rec.ID).Status)
}

func TestRefundExplicitAmountCoveringBalanceIsFull(t *testing.T) {
	store, gw, r, rec := refundFixture(t)

	amount := decimal.RequireFromString("80.00")
	require.NoError(t, r.RefundOrder(context.Background(), 1, &amount))

	require.Len(t, gw.refunds, 1)
	assert.Equal(t, int64(8000), gw.refunds[0].AmountMinor)
	assert.Equal(t, domain.PaymentRecordStatusRefunded, store.record(rec.ID).Status)

	refunded := store.messages(contracts.TypeOrderRefunded)
	require.Len(t, refunded, 1)
	assert.True(t, refunded[0].(contracts.OrderRefundedEvent).FullRefund)
}

func TestRefundUsesCapturedRecordAfterRetriedCheckout(t *testing.T) {
	store, gw, r, rec := refundFixture(t)
	retry := store.addRecord(domain.PaymentRecord{
		OrderID: 1, ExternalOrderID: "order_RETRY", AmountMinor: 10000,
		Currency: "INR", Status: "created", Method: domain.PaymentRecordMethodUnknown,
	})

	require.NoError(t, r.RefundOrder(context.Background(), 1, nil))

	require.Len(t, gw.refunds, 1)
	assert.Equal(t, "pay_XYZ", gw.refunds[0].PaymentID)
	assert.Equal(t, domain.PaymentRecordStatusRefunded, store.record(rec.ID).Status)
	assert.Equal(t, "created", store.record(retry.ID).Status)
}

func TestRefundNotPossibleWithoutCapturedPayment(t *testing.T) {
	t.Run("no record", func(t *testing.T) {
		store := newMemStore()
		store.seed()
		gw := newFakeGateway()
		r := NewRefunder(store, store, gw, store, clock.NewFixed(testNow), time.Second, discardLogger())

		err := r.RefundOrder(context.Background(), 1, nil)
		require.ErrorIs(t, err, domain.ErrRefundNotPossible)
		assert.Empty(t, gw.fetched)
	})

	t.Run("record without payment id", func(t *testing.T) {
		store := newMemStore()
		store.seed()
		store.addRecord(domain.PaymentRecord{OrderID: 1, ExternalOrderID: "order_ABC", Status: "created"})
		gw := newFakeGateway()
		r := NewRefunder(store, store, gw, store, clock.NewFixed(testNow), time.Second, discardLogger())

		err := r.RefundOrder(context.Background(), 1, nil)
		require.ErrorIs(t, err, domain.ErrRefundNotPossible)
		assert.Empty(t, gw.refunds)
	})
}

func TestRefundProviderFailureIsRecorded(t *testing.T) {
	store, gw, r, rec := refundFixture(t)
	gw.refundErr = errors.New("BAD_REQUEST_ERROR: The refund amount provided is greater than amount captured")

	amount := decimal.RequireFromString("500")
	err := r.RefundOrder(context.Background(), 1, &amount)
	require.ErrorIs(t, err, domain.ErrRefundNotPossible)
	assert.Contains(t, err.Error(), "greater than amount captured")

	stored := store.record(rec.ID)
	assert.Contains(t, string(stored.ErrorDetails), "greater than amount captured")
	assert.Equal(t, "captured", stored.Status)
	assert.Empty(t, store.messages(contracts.TypeOrderRefunded))
}

func TestRefundReturnsCurrentOrder(t *testing.T) {
	_, _, r, _ := refundFixture(t)

	order, err := r.Refund(context.Background(), 10, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCompleted, order.Status)

	_, err = r.Refund(context.Background(), 11, 1, nil)
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}
