package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ticketpay/internal/domain"
)

const paymentRecordColumns = `
	id, order_id, razorpay_order_id, razorpay_payment_id, razorpay_signature,
	amount_minor, currency, status, method, error_details, created_at, updated_at, deleted_at`

// PaymentRecordRepository persists razorpay_payments rows. Soft-deleted rows are never returned.
type PaymentRecordRepository struct {
	conn
}

func NewPaymentRecordRepository(pool *pgxpool.Pool) *PaymentRecordRepository {
	return &PaymentRecordRepository{conn{pool: pool}}
}

func (r *PaymentRecordRepository) Create(ctx context.Context, rec *domain.PaymentRecord) error {
	var details []byte
	if len(rec.ErrorDetails) > 0 {
		details = rec.ErrorDetails
	}
	err := r.queryRow(ctx, `
		INSERT INTO razorpay_payments (
			order_id, razorpay_order_id, razorpay_payment_id, razorpay_signature,
			amount_minor, currency, status, method, error_details
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`,
		rec.OrderID, rec.ExternalOrderID, rec.ExternalPaymentID, rec.Signature,
		rec.AmountMinor, rec.Currency, rec.Status, rec.Method, details,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateExternalOrder, rec.ExternalOrderID)
		}
		return fmt.Errorf("insert payment record: %w", err)
	}
	return nil
}

func (r *PaymentRecordRepository) FindByExternalOrderID(ctx context.Context, externalOrderID string) (*domain.PaymentRecord, error) {
	return r.findOne(ctx, `
		SELECT`+paymentRecordColumns+`
		FROM razorpay_payments
		WHERE razorpay_order_id = $1 AND deleted_at IS NULL`, externalOrderID)
}

// FindByOrder returns the most recent record of the order, narrowed to externalOrderID when set.
func (r *PaymentRecordRepository) FindByOrder(ctx context.Context, orderID int64, externalOrderID string) (*domain.PaymentRecord, error) {
	return r.findOne(ctx, `
		SELECT`+paymentRecordColumns+`
		FROM razorpay_payments
		WHERE order_id = $1 AND deleted_at IS NULL AND ($2 = '' OR razorpay_order_id = $2)
		ORDER BY id DESC
		LIMIT 1`, orderID, externalOrderID)
}

// FindCapturedByOrder returns the most recent record of the order that carries a provider
// payment id. Later checkout attempts that never captured are skipped.
func (r *PaymentRecordRepository) FindCapturedByOrder(ctx context.Context, orderID int64) (*domain.PaymentRecord, error) {
	return r.findOne(ctx, `
		SELECT`+paymentRecordColumns+`
		FROM razorpay_payments
		WHERE order_id = $1 AND deleted_at IS NULL
		  AND razorpay_payment_id IS NOT NULL AND razorpay_payment_id <> ''
		ORDER BY id DESC
		LIMIT 1`, orderID)
}

func (r *PaymentRecordRepository) findOne(ctx context.Context, query string, args ...any) (*domain.PaymentRecord, error) {
	var (
		rec     domain.PaymentRecord
		details []byte
	)
	err := r.queryRow(ctx, query, args...).Scan(
		&rec.ID, &rec.OrderID, &rec.ExternalOrderID, &rec.ExternalPaymentID, &rec.Signature,
		&rec.AmountMinor, &rec.Currency, &rec.Status, &rec.Method, &details,
		&rec.CreatedAt, &rec.UpdatedAt, &rec.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select payment record: %w", err)
	}
	if len(details) > 0 {
		rec.ErrorDetails = details
	}
	return &rec, nil
}

// Update writes only the non-nil fields of upd.
func (r *PaymentRecordRepository) Update(ctx context.Context, id int64, upd domain.PaymentRecordUpdate) error {
	if upd.Empty() {
		return nil
	}

	sets := []string{"updated_at = NOW()"}
	args := []any{id}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if upd.ExternalPaymentID != nil {
		add("razorpay_payment_id", *upd.ExternalPaymentID)
	}
	if upd.Signature != nil {
		add("razorpay_signature", *upd.Signature)
	}
	if upd.Status != nil {
		add("status", *upd.Status)
	}
	if upd.Method != nil {
		add("method", *upd.Method)
	}
	if upd.ErrorDetails != nil {
		add("error_details", []byte(upd.ErrorDetails))
	}

	query := `UPDATE razorpay_payments SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 AND deleted_at IS NULL`
	tag, err := r.exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update payment record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPaymentRecordNotFound
	}
	return nil
}

func (r *PaymentRecordRepository) SoftDelete(ctx context.Context, id int64) error {
	tag, err := r.exec(ctx, `
		UPDATE razorpay_payments SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("soft delete payment record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPaymentRecordNotFound
	}
	return nil
}
