package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type WebhookRepo struct {
	pool *pgxpool.Pool
}

func NewWebhookRepo(pool *pgxpool.Pool) *WebhookRepo {
	return &WebhookRepo{pool: pool}
}

// Record inserts the idempotency row for an inbound event. Returns
// fresh=false when the (provider, event ID) pair was already recorded and
// fully processed, i.e. the delivery is a replay and must not be processed
// again. An existing but unprocessed row means the previous delivery died
// before MarkProcessed, so the event may run once more.
func (r *WebhookRepo) Record(ctx context.Context, provider, eventID, eventType string, payload json.RawMessage) (fresh bool, err error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO webhook_events (provider, provider_event_id, event_type, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (provider, provider_event_id) DO NOTHING
	`, provider, eventID, eventType, payload)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	var processedAt *time.Time
	err = r.pool.QueryRow(ctx, `
		SELECT processed_at FROM webhook_events
		WHERE provider = $1 AND provider_event_id = $2
	`, provider, eventID).Scan(&processedAt)
	if err != nil {
		return false, err
	}
	return processedAt == nil, nil
}

// MarkProcessed stamps the event after its side effects committed.
func (r *WebhookRepo) MarkProcessed(ctx context.Context, provider, eventID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE webhook_events SET processed_at = $3
		WHERE provider = $1 AND provider_event_id = $2
	`, provider, eventID, time.Now())
	return err
}
