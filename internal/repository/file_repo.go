package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crafted/backend/internal/models"
)

type FileRepo struct {
	pool *pgxpool.Pool
}

func NewFileRepo(pool *pgxpool.Pool) *FileRepo {
	return &FileRepo{pool: pool}
}

func (r *FileRepo) Create(ctx context.Context, f *models.TaskFile) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO task_files (id, task_id, uploader_id, file_name, url, content_type, size_bytes, kind)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, f.ID, f.TaskID, f.UploaderID, f.FileName, f.URL, f.ContentType, f.SizeBytes, f.Kind).Scan(&f.CreatedAt)
}

// CreateTx inserts the file within the caller's transaction, so a
// deliverable row and its status transition commit together.
func (r *FileRepo) CreateTx(ctx context.Context, tx pgx.Tx, f *models.TaskFile) error {
	return tx.QueryRow(ctx, `
		INSERT INTO task_files (id, task_id, uploader_id, file_name, url, content_type, size_bytes, kind)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, f.ID, f.TaskID, f.UploaderID, f.FileName, f.URL, f.ContentType, f.SizeBytes, f.Kind).Scan(&f.CreatedAt)
}

func (r *FileRepo) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*models.TaskFile, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, task_id, uploader_id, file_name, url, content_type, size_bytes, kind, created_at
		FROM task_files WHERE task_id = $1 ORDER BY created_at
	`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.TaskFile
	for rows.Next() {
		var f models.TaskFile
		if err := rows.Scan(&f.ID, &f.TaskID, &f.UploaderID, &f.FileName, &f.URL, &f.ContentType, &f.SizeBytes, &f.Kind, &f.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &f)
	}
	return list, rows.Err()
}
