package contracts

import "time"

const (
	TypeOrderStatusChanged    = "order.status_changed"
	TypeOrderCreated          = "order.created"
	TypeOrderSummaryRequested = "order.summary_requested"
	TypeOrderRefunded         = "order.refunded"
)

// Message is anything the service publishes through its outbox.
type Message interface {
	MessageID() string
	MessageType() string
}

// OrderStatusChangedEvent informs downstream systems of a new order status.
// SendEmails=false tells subscribers a separate summary message carries the customer email.
type OrderStatusChangedEvent struct {
	ID            string    `json:"message_id"`
	OrderID       int64     `json:"order_id"`
	OrderShortID  string    `json:"order_short_id"`
	EventID       int64     `json:"event_id"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	SendEmails    bool      `json:"send_emails"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func (e OrderStatusChangedEvent) MessageID() string   { return e.ID }
func (e OrderStatusChangedEvent) MessageType() string { return TypeOrderStatusChanged }

// OrderCreatedEvent is the audit/analytics record of a completed order.
type OrderCreatedEvent struct {
	ID         string    `json:"message_id"`
	OrderID    int64     `json:"order_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (e OrderCreatedEvent) MessageID() string   { return e.ID }
func (e OrderCreatedEvent) MessageType() string { return TypeOrderCreated }

// OrderSummaryRequestedEvent asks the mail service to send the customer's order summary.
type OrderSummaryRequestedEvent struct {
	ID                  string    `json:"message_id"`
	OrderID             int64     `json:"order_id"`
	OrderShortID        string    `json:"order_short_id"`
	EventID             int64     `json:"event_id"`
	EventTitle          string    `json:"event_title"`
	OrganizerID         int64     `json:"organizer_id"`
	OrganizerName       string    `json:"organizer_name"`
	OrganizerEmail      string    `json:"organizer_email"`
	SupportEmail        string    `json:"support_email,omitempty"`
	PostCheckoutMessage string    `json:"post_checkout_message,omitempty"`
	InvoiceID           *int64    `json:"invoice_id,omitempty"`
	TotalGross          string    `json:"total_gross"`
	Currency            string    `json:"currency"`
	AttendeeCount       int       `json:"attendee_count"`
	OccurredAt          time.Time `json:"occurred_at"`
}

func (e OrderSummaryRequestedEvent) MessageID() string   { return e.ID }
func (e OrderSummaryRequestedEvent) MessageType() string { return TypeOrderSummaryRequested }

// OrderRefundedEvent records a refund accepted by the payment provider.
type OrderRefundedEvent struct {
	ID          string    `json:"message_id"`
	OrderID     int64     `json:"order_id"`
	RefundID    string    `json:"refund_id"`
	AmountMinor int64     `json:"amount_minor"`
	Currency    string    `json:"currency"`
	FullRefund  bool      `json:"full_refund"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func (e OrderRefundedEvent) MessageID() string   { return e.ID }
func (e OrderRefundedEvent) MessageType() string { return TypeOrderRefunded }
