// Package gateway talks to the Razorpay payment provider.
package gateway

import (
	"context"
	"errors"
)

var ErrMissingCredentials = errors.New("gateway credentials not configured")

// Client is an authenticated connection to the payment provider.
type Client interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*ProviderOrder, error)
	FetchPayment(ctx context.Context, paymentID string) (*ProviderPayment, error)
	// RefundPayment refunds amountMinor of the payment. A nil amount refunds the
	// whole remaining balance.
	RefundPayment(ctx context.Context, paymentID string, amountMinor *int64) (*ProviderRefund, error)
}

type CreateOrderRequest struct {
	AmountMinor int64
	Currency    string
	Receipt     string
	Notes       map[string]string
}

type ProviderOrder struct {
	ID          string
	AmountMinor int64
	Currency    string
	Status      string
	Receipt     string
}

type ProviderPayment struct {
	ID                  string
	OrderID             string
	AmountMinor         int64
	AmountRefundedMinor int64
	Currency            string
	Status              string
	Method              string
}

// RefundableMinor is what is left to refund on the payment.
func (p *ProviderPayment) RefundableMinor() int64 {
	return p.AmountMinor - p.AmountRefundedMinor
}

type ProviderRefund struct {
	ID          string
	PaymentID   string
	AmountMinor int64
	Status      string
}
