package gateway

import (
	"fmt"

	"github.com/razorpay/razorpay-go/utils"

	"ticketpay/internal/domain"
)

// Verifier authenticates provider callbacks before anything acts on them.
type Verifier struct {
	keySecret     string
	webhookSecret string
}

func NewVerifier(keySecret, webhookSecret string) *Verifier {
	return &Verifier{keySecret: keySecret, webhookSecret: webhookSecret}
}

// VerifyWebhook checks the X-Razorpay-Signature header against the raw request body.
func (v *Verifier) VerifyWebhook(body []byte, signature string) error {
	if v.webhookSecret == "" {
		return domain.ErrWebhookSecretMissing
	}
	if signature == "" {
		return fmt.Errorf("%w: missing webhook signature", domain.ErrSignatureInvalid)
	}
	if !utils.VerifyWebhookSignature(string(body), signature, v.webhookSecret) {
		return fmt.Errorf("%w: webhook signature mismatch", domain.ErrSignatureInvalid)
	}
	return nil
}

// VerifyPayment checks the checkout signature, an HMAC of "order_id|payment_id"
// keyed by the account secret.
func (v *Verifier) VerifyPayment(externalOrderID, externalPaymentID, signature string) error {
	if v.keySecret == "" || externalOrderID == "" || externalPaymentID == "" || signature == "" {
		return fmt.Errorf("%w: incomplete payment signature", domain.ErrSignatureInvalid)
	}
	attributes := map[string]interface{}{
		"razorpay_order_id":   externalOrderID,
		"razorpay_payment_id": externalPaymentID,
	}
	if !utils.VerifyPaymentSignature(attributes, signature, v.keySecret) {
		return fmt.Errorf("%w: payment signature mismatch", domain.ErrSignatureInvalid)
	}
	return nil
}
