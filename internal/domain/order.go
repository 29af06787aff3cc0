package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusReserved               OrderStatus = "RESERVED"
	OrderStatusCompleted              OrderStatus = "COMPLETED"
	OrderStatusCancelled              OrderStatus = "CANCELLED"
	OrderStatusExpired                OrderStatus = "EXPIRED"
	OrderStatusAwaitingOfflinePayment OrderStatus = "AWAITING_OFFLINE_PAYMENT"
)

type OrderPaymentStatus string

const (
	PaymentStatusAwaitingPayment OrderPaymentStatus = "AWAITING_PAYMENT"
	PaymentStatusReceived        OrderPaymentStatus = "PAYMENT_RECEIVED"
	PaymentStatusFailed          OrderPaymentStatus = "PAYMENT_FAILED"
)

type PaymentProvider string

const (
	PaymentProviderRazorpay PaymentProvider = "RAZORPAY"
	PaymentProviderOffline  PaymentProvider = "OFFLINE"
)

type AttendeeStatus string

const (
	AttendeeStatusAwaitingPayment AttendeeStatus = "AWAITING_PAYMENT"
	AttendeeStatusActive          AttendeeStatus = "ACTIVE"
	AttendeeStatusCancelled       AttendeeStatus = "CANCELLED"
)

type InvoiceStatus string

const (
	InvoiceStatusUnpaid InvoiceStatus = "UNPAID"
	InvoiceStatusPaid   InvoiceStatus = "PAID"
	InvoiceStatusVoid   InvoiceStatus = "VOID"
)

// Order is a customer's purchase for a single event.
type Order struct {
	ID              int64              `json:"id"`
	ShortID         string             `json:"short_id"`
	EventID         int64              `json:"event_id"`
	Status          OrderStatus        `json:"status"`
	PaymentStatus   OrderPaymentStatus `json:"payment_status"`
	PaymentProvider *PaymentProvider   `json:"payment_provider,omitempty"`
	TotalGross      decimal.Decimal    `json:"total_gross"`
	Currency        string             `json:"currency"`
	SessionID       string             `json:"-"`
	AffiliateID     *int64             `json:"affiliate_id,omitempty"`
	ReservedUntil   *time.Time         `json:"reserved_until,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`

	Items     []OrderItem `json:"items,omitempty"`
	Attendees []Attendee  `json:"attendees,omitempty"`
	Invoices  []Invoice   `json:"invoices,omitempty"`
}

// IsReservationExpired reports whether a reserved order has passed its hold window.
func (o *Order) IsReservationExpired(now time.Time) bool {
	return o.ReservedUntil != nil && !o.ReservedUntil.After(now)
}

// LatestInvoice returns the invoice with the highest id, or nil.
func (o *Order) LatestInvoice() *Invoice {
	var latest *Invoice
	for i := range o.Invoices {
		if latest == nil || o.Invoices[i].ID > latest.ID {
			latest = &o.Invoices[i]
		}
	}
	return latest
}

type OrderItem struct {
	ID             int64           `json:"id"`
	OrderID        int64           `json:"order_id"`
	ProductID      int64           `json:"product_id"`
	ProductPriceID int64           `json:"product_price_id"`
	Quantity       int             `json:"quantity"`
	Price          decimal.Decimal `json:"price"`
}

type Attendee struct {
	ID      int64          `json:"id"`
	OrderID int64          `json:"order_id"`
	Status  AttendeeStatus `json:"status"`
}

type Invoice struct {
	ID      int64         `json:"id"`
	OrderID int64         `json:"order_id"`
	Status  InvoiceStatus `json:"status"`
}
