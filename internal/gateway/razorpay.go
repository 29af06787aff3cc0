package gateway

import (
	"context"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"
)

type razorpayClient struct {
	api *razorpay.Client
}

func newRazorpayClient(creds Credentials) Client {
	return &razorpayClient{api: razorpay.NewClient(creds.KeyID, creds.KeySecret)}
}

func (c *razorpayClient) CreateOrder(ctx context.Context, req CreateOrderRequest) (*ProviderOrder, error) {
	notes := make(map[string]interface{}, len(req.Notes))
	for k, v := range req.Notes {
		notes[k] = v
	}
	data := map[string]interface{}{
		"amount":   req.AmountMinor,
		"currency": req.Currency,
		"receipt":  req.Receipt,
		"notes":    notes,
	}

	body, err := call(ctx, func() (map[string]interface{}, error) {
		return c.api.Order.Create(data, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("razorpay create order: %w", err)
	}

	return &ProviderOrder{
		ID:          stringField(body, "id"),
		AmountMinor: intField(body, "amount"),
		Currency:    stringField(body, "currency"),
		Status:      stringField(body, "status"),
		Receipt:     stringField(body, "receipt"),
	}, nil
}

func (c *razorpayClient) FetchPayment(ctx context.Context, paymentID string) (*ProviderPayment, error) {
	body, err := call(ctx, func() (map[string]interface{}, error) {
		return c.api.Payment.Fetch(paymentID, nil, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("razorpay fetch payment %s: %w", paymentID, err)
	}
	return paymentFromBody(body), nil
}

func (c *razorpayClient) RefundPayment(ctx context.Context, paymentID string, amountMinor *int64) (*ProviderRefund, error) {
	amount := int64(0)
	if amountMinor != nil {
		amount = *amountMinor
	} else {
		payment, err := c.FetchPayment(ctx, paymentID)
		if err != nil {
			return nil, err
		}
		amount = payment.RefundableMinor()
	}

	body, err := call(ctx, func() (map[string]interface{}, error) {
		return c.api.Payment.Refund(paymentID, int(amount), map[string]interface{}{}, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("razorpay refund payment %s: %w", paymentID, err)
	}

	return &ProviderRefund{
		ID:          stringField(body, "id"),
		PaymentID:   stringField(body, "payment_id"),
		AmountMinor: intField(body, "amount"),
		Status:      stringField(body, "status"),
	}, nil
}

// call runs a blocking SDK request and gives up when ctx is done.
// The SDK has no context support, so an abandoned request finishes in the background.
func call(ctx context.Context, fn func() (map[string]interface{}, error)) (map[string]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type result struct {
		body map[string]interface{}
		err  error
	}
	done := make(chan result, 1)
	go func() {
		body, err := fn()
		done <- result{body: body, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		return res.body, res.err
	}
}

func paymentFromBody(body map[string]interface{}) *ProviderPayment {
	return &ProviderPayment{
		ID:                  stringField(body, "id"),
		OrderID:             stringField(body, "order_id"),
		AmountMinor:         intField(body, "amount"),
		AmountRefundedMinor: intField(body, "amount_refunded"),
		Currency:            stringField(body, "currency"),
		Status:              stringField(body, "status"),
		Method:              stringField(body, "method"),
	}
}

func stringField(body map[string]interface{}, key string) string {
	if v, ok := body[key].(string); ok {
		return v
	}
	return ""
}

func intField(body map[string]interface{}, key string) int64 {
	switch v := body[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}
