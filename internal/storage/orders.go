package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"ticketpay/internal/domain"
)

const orderColumns = `
	id, short_id, event_id, status, payment_status, payment_provider,
	total_gross::text, currency, session_id, affiliate_id, reserved_until, created_at, updated_at`

type OrderRepository struct {
	conn
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{conn{pool: pool}}
}

// FindOrderForUpdate locks the order row until the surrounding transaction ends.
// Returns nil when no order matches both ids.
func (r *OrderRepository) FindOrderForUpdate(ctx context.Context, orderID, eventID int64) (*domain.Order, error) {
	query := `SELECT` + orderColumns + ` FROM orders WHERE id = $1 AND event_id = $2 FOR UPDATE`
	return r.loadOrder(ctx, query, orderID, eventID)
}

func (r *OrderRepository) FindOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	query := `SELECT` + orderColumns + ` FROM orders WHERE id = $1`
	return r.loadOrder(ctx, query, orderID)
}

func (r *OrderRepository) FindOrderByShortID(ctx context.Context, shortID string) (*domain.Order, error) {
	query := `SELECT` + orderColumns + ` FROM orders WHERE short_id = $1`
	return r.loadOrder(ctx, query, shortID)
}

func (r *OrderRepository) loadOrder(ctx context.Context, query string, args ...any) (*domain.Order, error) {
	var (
		o        domain.Order
		provider *string
		total    string
	)
	err := r.queryRow(ctx, query, args...).Scan(
		&o.ID, &o.ShortID, &o.EventID, &o.Status, &o.PaymentStatus, &provider,
		&total, &o.Currency, &o.SessionID, &o.AffiliateID, &o.ReservedUntil, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select order: %w", err)
	}
	if provider != nil {
		p := domain.PaymentProvider(*provider)
		o.PaymentProvider = &p
	}
	if o.TotalGross, err = parseDecimal(total); err != nil {
		return nil, err
	}

	if o.Items, err = r.items(ctx, o.ID); err != nil {
		return nil, err
	}
	if o.Attendees, err = r.attendees(ctx, o.ID); err != nil {
		return nil, err
	}
	if o.Invoices, err = r.invoices(ctx, o.ID); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepository) items(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	rows, err := r.query(ctx, `
		SELECT id, order_id, product_id, product_price_id, quantity, price::text
		FROM order_items
		WHERE order_id = $1
		ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var (
			it    domain.OrderItem
			price string
		)
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductPriceID, &it.Quantity, &price); err != nil {
			return nil, err
		}
		if it.Price, err = parseDecimal(price); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *OrderRepository) attendees(ctx context.Context, orderID int64) ([]domain.Attendee, error) {
	rows, err := r.query(ctx, `SELECT id, order_id, status FROM attendees WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("select attendees: %w", err)
	}
	defer rows.Close()

	var out []domain.Attendee
	for rows.Next() {
		var a domain.Attendee
		if err := rows.Scan(&a.ID, &a.OrderID, &a.Status); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *OrderRepository) invoices(ctx context.Context, orderID int64) ([]domain.Invoice, error) {
	rows, err := r.query(ctx, `SELECT id, order_id, status FROM invoices WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("select invoices: %w", err)
	}
	defer rows.Close()

	var out []domain.Invoice
	for rows.Next() {
		var inv domain.Invoice
		if err := rows.Scan(&inv.ID, &inv.OrderID, &inv.Status); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// FindEvent loads the event with its organizer and settings. Returns nil when missing.
func (r *OrderRepository) FindEvent(ctx context.Context, eventID int64) (*domain.Event, error) {
	var ev domain.Event
	err := r.queryRow(ctx, `
		SELECT e.id, e.account_id, e.title, o.id, o.name, o.email,
		       COALESCE(s.support_email, ''), COALESCE(s.post_checkout_message, '')
		FROM events e
		JOIN organizers o ON o.id = e.organizer_id
		LEFT JOIN event_settings s ON s.event_id = e.id
		WHERE e.id = $1`, eventID,
	).Scan(
		&ev.ID, &ev.AccountID, &ev.Title, &ev.Organizer.ID, &ev.Organizer.Name, &ev.Organizer.Email,
		&ev.Settings.SupportEmail, &ev.Settings.PostCheckoutMessage,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select event: %w", err)
	}
	return &ev, nil
}

// FindAccountConfiguration returns the fee schedule of the account owning the event, or nil.
func (r *OrderRepository) FindAccountConfiguration(ctx context.Context, eventID int64) (*domain.AccountConfiguration, error) {
	var (
		cfg                  domain.AccountConfiguration
		percent, fixed, rate *string
	)
	err := r.queryRow(ctx, `
		SELECT c.id, c.account_id, c.application_fee_percentage::text,
		       c.application_fee_fixed::text, c.application_fee_vat_rate::text
		FROM account_configurations c
		JOIN events e ON e.account_id = c.account_id
		WHERE e.id = $1`, eventID,
	).Scan(&cfg.ID, &cfg.AccountID, &percent, &fixed, &rate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select account configuration: %w", err)
	}
	if cfg.FeePercentage, err = parseNullDecimal(percent); err != nil {
		return nil, err
	}
	if cfg.FeeFixed, err = parseNullDecimal(fixed); err != nil {
		return nil, err
	}
	if cfg.ApplicationFeeVATRate, err = parseNullDecimal(rate); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *OrderRepository) CompleteOrder(ctx context.Context, orderID int64, provider domain.PaymentProvider) error {
	tag, err := r.exec(ctx, `
		UPDATE orders
		SET status = $2, payment_status = $3, payment_provider = $4, updated_at = NOW()
		WHERE id = $1`,
		orderID, domain.OrderStatusCompleted, domain.PaymentStatusReceived, provider,
	)
	if err != nil {
		return fmt.Errorf("complete order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

// MarkLatestInvoicePaid is a no-op for orders without invoices.
func (r *OrderRepository) MarkLatestInvoicePaid(ctx context.Context, orderID int64) error {
	_, err := r.exec(ctx, `
		UPDATE invoices
		SET status = $2, updated_at = NOW()
		WHERE id = (SELECT id FROM invoices WHERE order_id = $1 ORDER BY id DESC LIMIT 1)`,
		orderID, domain.InvoiceStatusPaid,
	)
	if err != nil {
		return fmt.Errorf("mark invoice paid: %w", err)
	}
	return nil
}

func (r *OrderRepository) IncrementAffiliateSales(ctx context.Context, affiliateID int64, amount decimal.Decimal) error {
	_, err := r.exec(ctx, `
		UPDATE affiliates
		SET total_sales = total_sales + $2::numeric, total_sales_count = total_sales_count + 1
		WHERE id = $1`,
		affiliateID, amount.String(),
	)
	if err != nil {
		return fmt.Errorf("increment affiliate sales: %w", err)
	}
	return nil
}

// ActivateAttendees moves the order's attendees awaiting payment to active.
func (r *OrderRepository) ActivateAttendees(ctx context.Context, orderID int64) (int64, error) {
	tag, err := r.exec(ctx, `
		UPDATE attendees SET status = $3
		WHERE order_id = $1 AND status = $2`,
		orderID, domain.AttendeeStatusAwaitingPayment, domain.AttendeeStatusActive,
	)
	if err != nil {
		return 0, fmt.Errorf("activate attendees: %w", err)
	}
	return tag.RowsAffected(), nil
}
