package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crafted/backend/internal/models"
)

const taskColumns = `id, client_id, freelancer_id, title, description, status, credits_required, revisions_used, max_revisions, deadline, brand_profile_id, category, flagged, created_at, updated_at`

type TaskRepo struct {
	pool *pgxpool.Pool
}

func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

func scanTask(row pgx.Row) (*models.Task, error) {
	var t models.Task
	err := row.Scan(&t.ID, &t.ClientID, &t.FreelancerID, &t.Title, &t.Description, &t.Status, &t.CreditsRequired, &t.RevisionsUsed, &t.MaxRevisions, &t.Deadline, &t.BrandProfileID, &t.Category, &t.Flagged, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TaskRepo) Create(ctx context.Context, t *models.Task) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO tasks (id, client_id, freelancer_id, title, description, status, credits_required, revisions_used, max_revisions, deadline, brand_profile_id, category, flagged)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`, t.ID, t.ClientID, t.FreelancerID, t.Title, t.Description, t.Status, t.CreditsRequired, t.RevisionsUsed, t.MaxRevisions, t.Deadline, t.BrandProfileID, t.Category, t.Flagged).Scan(&t.CreatedAt, &t.UpdatedAt)
}

// CreateTx is Create within the caller's transaction, so the task row and
// the credit deduction commit or roll back together.
func (r *TaskRepo) CreateTx(ctx context.Context, tx pgx.Tx, t *models.Task) error {
	return tx.QueryRow(ctx, `
		INSERT INTO tasks (id, client_id, freelancer_id, title, description, status, credits_required, revisions_used, max_revisions, deadline, brand_profile_id, category, flagged)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`, t.ID, t.ClientID, t.FreelancerID, t.Title, t.Description, t.Status, t.CreditsRequired, t.RevisionsUsed, t.MaxRevisions, t.Deadline, t.BrandProfileID, t.Category, t.Flagged).Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (r *TaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	return scanTask(r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
}

// GetByIDForUpdate locks the task row so concurrent status transitions
// serialize. Call within a transaction.
func (r *TaskRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Task, error) {
	return scanTask(tx.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1 FOR UPDATE`, id))
}

func (r *TaskRepo) Update(ctx context.Context, t *models.Task) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE tasks SET freelancer_id = $2, title = $3, description = $4, status = $5, credits_required = $6, revisions_used = $7, max_revisions = $8, deadline = $9, brand_profile_id = $10, category = $11, flagged = $12, updated_at = now()
		WHERE id = $1
	`, t.ID, t.FreelancerID, t.Title, t.Description, t.Status, t.CreditsRequired, t.RevisionsUsed, t.MaxRevisions, t.Deadline, t.BrandProfileID, t.Category, t.Flagged)
	return err
}

// UpdateTx is Update within the caller's transaction.
func (r *TaskRepo) UpdateTx(ctx context.Context, tx pgx.Tx, t *models.Task) error {
	_, err := tx.Exec(ctx, `
		UPDATE tasks SET freelancer_id = $2, title = $3, description = $4, status = $5, credits_required = $6, revisions_used = $7, max_revisions = $8, deadline = $9, brand_profile_id = $10, category = $11, flagged = $12, updated_at = now()
		WHERE id = $1
	`, t.ID, t.FreelancerID, t.Title, t.Description, t.Status, t.CreditsRequired, t.RevisionsUsed, t.MaxRevisions, t.Deadline, t.BrandProfileID, t.Category, t.Flagged)
	return err
}

func (r *TaskRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	return err
}

func (r *TaskRepo) ListByClient(ctx context.Context, clientID uuid.UUID) ([]*models.Task, error) {
	return r.list(ctx, `SELECT `+taskColumns+` FROM tasks WHERE client_id = $1 ORDER BY created_at DESC`, clientID)
}

func (r *TaskRepo) ListByFreelancer(ctx context.Context, freelancerID uuid.UUID) ([]*models.Task, error) {
	return r.list(ctx, `SELECT `+taskColumns+` FROM tasks WHERE freelancer_id = $1 ORDER BY created_at DESC`, freelancerID)
}

func (r *TaskRepo) ListAll(ctx context.Context) ([]*models.Task, error) {
	return r.list(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY created_at DESC`)
}

func (r *TaskRepo) list(ctx context.Context, sql string, args ...any) ([]*models.Task, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}
