package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"ticketpay/internal/domain"
)

type FeeRepository struct {
	conn
}

func NewFeeRepository(pool *pgxpool.Pool) *FeeRepository {
	return &FeeRepository{conn{pool: pool}}
}

// CreateOrderApplicationFee appends a ledger row. A second row for the same order is rejected
// by the order_id unique constraint.
func (r *FeeRepository) CreateOrderApplicationFee(ctx context.Context, fee domain.OrderApplicationFee) (int64, error) {
	var vatRate *string
	if fee.VATRate != nil {
		v := fee.VATRate.String()
		vatRate = &v
	}
	var id int64
	err := r.queryRow(ctx, `
		INSERT INTO order_application_fees
			(order_id, amount_minor, vat_rate, vat_amount_minor, currency, status, payment_method, paid_at)
		VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, $8)
		RETURNING id`,
		fee.OrderID, fee.AmountMinor, vatRate, fee.VATAmountMinor, fee.Currency, fee.Status, fee.Method, fee.PaidAt,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("application fee for order %d already recorded: %w", fee.OrderID, domain.ErrResourceConflict)
		}
		return 0, fmt.Errorf("insert application fee: %w", err)
	}
	return id, nil
}
