package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"ticketpay/pkg/contracts"
)

// OutboxTable is drained by messaging.OutboxDispatcher.
const OutboxTable = "payment_outbox"

// Outbox stores messages for publication after the surrounding transaction commits.
type Outbox struct {
	conn
}

func NewOutbox(pool *pgxpool.Pool) *Outbox {
	return &Outbox{conn{pool: pool}}
}

func (o *Outbox) Emit(ctx context.Context, msg contracts.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msg.MessageType(), err)
	}
	_, err = o.exec(ctx, `
		INSERT INTO `+OutboxTable+` (message_id, event_type, payload)
		VALUES ($1, $2, $3)`,
		msg.MessageID(), msg.MessageType(), payload,
	)
	if err != nil {
		return fmt.Errorf("insert outbox: %w", err)
	}
	return nil
}
