package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// WebhookInbox remembers processed provider deliveries by their event id.
type WebhookInbox struct {
	conn
}

func NewWebhookInbox(pool *pgxpool.Pool) *WebhookInbox {
	return &WebhookInbox{conn{pool: pool}}
}

func (i *WebhookInbox) Seen(ctx context.Context, deliveryID string) (bool, error) {
	var seen bool
	err := i.queryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM razorpay_webhook_inbox WHERE event_id = $1)`, deliveryID,
	).Scan(&seen)
	if err != nil {
		return false, fmt.Errorf("check webhook inbox: %w", err)
	}
	return seen, nil
}

// Record returns false when the delivery was already recorded.
func (i *WebhookInbox) Record(ctx context.Context, deliveryID, eventType string) (bool, error) {
	tag, err := i.exec(ctx, `
		INSERT INTO razorpay_webhook_inbox (event_id, event_type)
		VALUES ($1, $2)
		ON CONFLICT (event_id) DO NOTHING`,
		deliveryID, eventType,
	)
	if err != nil {
		return false, fmt.Errorf("insert webhook inbox: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
