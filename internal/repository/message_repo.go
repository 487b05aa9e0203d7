package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crafted/backend/internal/models"
)

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

func (r *MessageRepo) Create(ctx context.Context, m *models.TaskMessage) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO task_messages (id, task_id, sender_id, body)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, m.ID, m.TaskID, m.SenderID, m.Body).Scan(&m.CreatedAt)
}

func (r *MessageRepo) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*models.TaskMessage, error) {
	return r.list(ctx, `
		SELECT id, task_id, sender_id, body, created_at
		FROM task_messages WHERE task_id = $1 ORDER BY created_at, id
	`, taskID)
}

// ListSince returns messages after the (created_at, id) cursor, in cursor
// order. The SSE stream polls with the last message it sent; keying on the
// pair as well as the timestamp means two messages sharing a created_at
// cannot slip past the cursor.
func (r *MessageRepo) ListSince(ctx context.Context, taskID uuid.UUID, since time.Time, sinceID uuid.UUID) ([]*models.TaskMessage, error) {
	return r.list(ctx, `
		SELECT id, task_id, sender_id, body, created_at
		FROM task_messages WHERE task_id = $1 AND (created_at, id) > ($2, $3)
		ORDER BY created_at, id
	`, taskID, since, sinceID)
}

func (r *MessageRepo) list(ctx context.Context, sql string, args ...any) ([]*models.TaskMessage, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.TaskMessage
	for rows.Next() {
		var m models.TaskMessage
		if err := rows.Scan(&m.ID, &m.TaskID, &m.SenderID, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &m)
	}
	return list, rows.Err()
}
