package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountConfiguration carries an account's application fee schedule.
// Nil components fall back to system-wide defaults.
type AccountConfiguration struct {
	ID                    int64
	AccountID             int64
	FeePercentage         *decimal.Decimal
	FeeFixed              *decimal.Decimal
	ApplicationFeeVATRate *decimal.Decimal
}

// ApplicationFee is the platform's cut of a completed order.
type ApplicationFee struct {
	GrossApplicationFee Money
	VATAmount           Money
	NetApplicationFee   Money
	VATRate             *decimal.Decimal
}

type OrderApplicationFeeStatus string

const (
	OrderApplicationFeeStatusPaid OrderApplicationFeeStatus = "PAID"
)

// OrderApplicationFee is an immutable ledger row, one per completed order.
// AmountMinor is the net fee; VAT is charged on top of it.
type OrderApplicationFee struct {
	ID             int64
	OrderID        int64
	AmountMinor    int64
	VATRate        *decimal.Decimal
	VATAmountMinor int64
	Currency       string
	Status         OrderApplicationFeeStatus
	Method         PaymentProvider
	PaidAt         time.Time
}
