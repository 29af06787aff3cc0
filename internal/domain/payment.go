package domain

import (
	"encoding/json"
	"time"
)

// PaymentRecord mirrors one provider order/payment attempt for an internal order.
// Status and Method hold the provider's own vocabulary.
type PaymentRecord struct {
	ID                int64
	OrderID           int64
	ExternalOrderID   string
	ExternalPaymentID *string
	Signature         *string
	AmountMinor       int64
	Currency          string
	Status            string
	Method            string
	ErrorDetails      json.RawMessage
	CreatedAt         time.Time
	UpdatedAt         time.Time
	DeletedAt         *time.Time
}

// PaymentRecordUpdate is a partial update; nil fields are left untouched.
type PaymentRecordUpdate struct {
	ExternalPaymentID *string
	Signature         *string
	Status            *string
	Method            *string
	ErrorDetails      json.RawMessage
}

// Empty reports whether the update would change nothing.
func (u PaymentRecordUpdate) Empty() bool {
	return u.ExternalPaymentID == nil && u.Signature == nil && u.Status == nil &&
		u.Method == nil && u.ErrorDetails == nil
}

const (
	PaymentRecordMethodUnknown  = "unknown"
	PaymentRecordStatusRefunded = "refunded"
)
