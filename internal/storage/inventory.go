package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"ticketpay/internal/domain"
)

type InventoryRepository struct {
	conn
}

func NewInventoryRepository(pool *pgxpool.Pool) *InventoryRepository {
	return &InventoryRepository{conn{pool: pool}}
}

// UpdateQuantitiesFromOrder adds each item's quantity to its price tier's sold count.
func (r *InventoryRepository) UpdateQuantitiesFromOrder(ctx context.Context, order *domain.Order) error {
	for _, item := range order.Items {
		tag, err := r.exec(ctx, `
			UPDATE product_prices
			SET quantity_sold = quantity_sold + $2
			WHERE id = $1`,
			item.ProductPriceID, item.Quantity,
		)
		if err != nil {
			return fmt.Errorf("update quantity for price %d: %w", item.ProductPriceID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("product price %d not found", item.ProductPriceID)
		}
	}
	return nil
}
