package domain

import "errors"

var (
	ErrSignatureInvalid       = errors.New("signature invalid")
	ErrWebhookSecretMissing   = errors.New("webhook secret not set")
	ErrOrderNotFound          = errors.New("order not found")
	ErrResourceConflict       = errors.New("order is expired or not in a valid state")
	ErrUnauthorized           = errors.New("could not verify session")
	ErrCreateOrderFailed      = errors.New("there was an error communicating with the payment provider, please try again later")
	ErrRefundNotPossible      = errors.New("refund not possible")
	ErrDuplicateExternalOrder = errors.New("external order already recorded")
	ErrPaymentRecordNotFound  = errors.New("payment record not found")
	ErrInvalidInput           = errors.New("invalid input")
)
