package payment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketpay/internal/domain"
	"ticketpay/internal/gateway"
)

func newTestClientVerifier(store *memStore, gw *fakeGateway) *ClientVerifier {
	return NewClientVerifier(gateway.NewVerifier(testKeySecret, testWebhookSecret), store, store,
		newTestReconciler(store, gw), discardLogger())
}

func TestClientVerifyCompletesOrder(t *testing.T) {
	store := newMemStore()
	seeded := store.seed()
	store.addRecord(domain.PaymentRecord{OrderID: seeded.ID, ExternalOrderID: "order_ABC", Status: "created"})
	gw := newFakeGateway()
	gw.payments["pay_XYZ"] = &gateway.ProviderPayment{ID: "pay_XYZ", Status: "captured", Method: "upi"}

	sig := sign(testKeySecret, "order_ABC|pay_XYZ")
	order, err := newTestClientVerifier(store, gw).Verify(context.Background(), 10, "o_abc123", VerifyPaymentInput{
		ExternalPaymentID: "pay_XYZ", ExternalOrderID: "order_ABC", Signature: sig,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCompleted, order.Status)

	rec, err := store.FindByExternalOrderID(context.Background(), "order_ABC")
	require.NoError(t, err)
	require.NotNil(t, rec.Signature)
	assert.Equal(t, sig, *rec.Signature)
	assert.Equal(t, "upi", rec.Method)
}

func TestClientVerifyRejects(t *testing.T) {
	cases := []struct {
		name    string
		eventID int64
		shortID string
		in      VerifyPaymentInput
		wantErr error
	}{
		{
			name: "unknown order", eventID: 10, shortID: "o_missing",
			in:      VerifyPaymentInput{ExternalPaymentID: "pay_XYZ", ExternalOrderID: "order_ABC", Signature: sign(testKeySecret, "order_ABC|pay_XYZ")},
			wantErr: domain.ErrOrderNotFound,
		},
		{
			name: "other event", eventID: 11, shortID: "o_abc123",
			in:      VerifyPaymentInput{ExternalPaymentID: "pay_XYZ", ExternalOrderID: "order_ABC", Signature: sign(testKeySecret, "order_ABC|pay_XYZ")},
			wantErr: domain.ErrOrderNotFound,
		},
		{
			name: "forged signature", eventID: 10, shortID: "o_abc123",
			in:      VerifyPaymentInput{ExternalPaymentID: "pay_XYZ", ExternalOrderID: "order_ABC", Signature: sign("guess", "order_ABC|pay_XYZ")},
			wantErr: domain.ErrSignatureInvalid,
		},
		{
			name: "provider order of another order", eventID: 10, shortID: "o_abc123",
			in:      VerifyPaymentInput{ExternalPaymentID: "pay_OTHER", ExternalOrderID: "order_OTHER", Signature: sign(testKeySecret, "order_OTHER|pay_OTHER")},
			wantErr: domain.ErrSignatureInvalid,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newMemStore()
			seeded := store.seed()
			store.addRecord(domain.PaymentRecord{OrderID: seeded.ID, ExternalOrderID: "order_ABC", Status: "created"})
			store.addRecord(domain.PaymentRecord{OrderID: 2, ExternalOrderID: "order_OTHER", Status: "created"})

			_, err := newTestClientVerifier(store, newFakeGateway()).Verify(context.Background(), tc.eventID, tc.shortID, tc.in)
			require.ErrorIs(t, err, tc.wantErr)
			assert.Equal(t, domain.OrderStatusReserved, store.order(seeded.ID).Status)
			assert.Empty(t, store.feeRows())
		})
	}
}
