package payment

import (
	"context"

	"github.com/shopspring/decimal"

	"ticketpay/internal/domain"
	"ticketpay/internal/gateway"
	"ticketpay/pkg/contracts"
)

// TxRunner runs fn inside a unit of work carried by ctx. Nested calls must be isolated
// (savepoints), so an inner failure can be swallowed without aborting the outer work.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderRepository finders return nil, nil when nothing matches.
type OrderRepository interface {
	FindOrderForUpdate(ctx context.Context, orderID, eventID int64) (*domain.Order, error)
	FindOrder(ctx context.Context, orderID int64) (*domain.Order, error)
	FindOrderByShortID(ctx context.Context, shortID string) (*domain.Order, error)
	FindEvent(ctx context.Context, eventID int64) (*domain.Event, error)
	FindAccountConfiguration(ctx context.Context, eventID int64) (*domain.AccountConfiguration, error)
	CompleteOrder(ctx context.Context, orderID int64, provider domain.PaymentProvider) error
	MarkLatestInvoicePaid(ctx context.Context, orderID int64) error
	IncrementAffiliateSales(ctx context.Context, affiliateID int64, amount decimal.Decimal) error
	ActivateAttendees(ctx context.Context, orderID int64) (int64, error)
}

type PaymentRecordStore interface {
	Create(ctx context.Context, rec *domain.PaymentRecord) error
	FindByExternalOrderID(ctx context.Context, externalOrderID string) (*domain.PaymentRecord, error)
	FindByOrder(ctx context.Context, orderID int64, externalOrderID string) (*domain.PaymentRecord, error)
	FindCapturedByOrder(ctx context.Context, orderID int64) (*domain.PaymentRecord, error)
	Update(ctx context.Context, id int64, upd domain.PaymentRecordUpdate) error
}

type InventoryUpdater interface {
	UpdateQuantitiesFromOrder(ctx context.Context, order *domain.Order) error
}

type FeeCalculator interface {
	Calculate(cfg *domain.AccountConfiguration, order *domain.Order) *domain.ApplicationFee
}

type FeeLedger interface {
	CreateOrderApplicationFee(ctx context.Context, fee domain.OrderApplicationFee) (int64, error)
}

// Emitter queues outbound messages; inside a transaction they share its fate.
type Emitter interface {
	Emit(ctx context.Context, msg contracts.Message) error
}

type GatewayFactory interface {
	CreateClient() (gateway.Client, error)
	KeyID() string
}

type SignatureVerifier interface {
	VerifyWebhook(body []byte, signature string) error
	VerifyPayment(externalOrderID, externalPaymentID, signature string) error
}

// WebhookInbox deduplicates provider deliveries.
type WebhookInbox interface {
	Seen(ctx context.Context, deliveryID string) (bool, error)
	Record(ctx context.Context, deliveryID, eventType string) (bool, error)
}

// OrderPayer is the reconciliation entry point shared by the webhook and client paths.
type OrderPayer interface {
	MarkOrderAsPaid(ctx context.Context, in MarkOrderAsPaidInput) (*domain.Order, error)
}
