package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crafted/backend/internal/models"
)

type BrandRepo struct {
	pool *pgxpool.Pool
}

func NewBrandRepo(pool *pgxpool.Pool) *BrandRepo {
	return &BrandRepo{pool: pool}
}

func scanBrand(row pgx.Row) (*models.BrandProfile, error) {
	var b models.BrandProfile
	err := row.Scan(&b.ID, &b.OwnerID, &b.SourceURL, &b.Name, &b.Palette, &b.Assets, &b.Status, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BrandRepo) Create(ctx context.Context, b *models.BrandProfile) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO brand_profiles (id, owner_id, source_url, name, palette, assets, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, b.ID, b.OwnerID, b.SourceURL, b.Name, b.Palette, b.Assets, b.Status).Scan(&b.CreatedAt, &b.UpdatedAt)
}

func (r *BrandRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.BrandProfile, error) {
	return scanBrand(r.pool.QueryRow(ctx, `
		SELECT id, owner_id, source_url, name, palette, assets, status, created_at, updated_at
		FROM brand_profiles WHERE id = $1
	`, id))
}

func (r *BrandRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.BrandProfile, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, owner_id, source_url, name, palette, assets, status, created_at, updated_at
		FROM brand_profiles WHERE owner_id = $1 ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.BrandProfile
	for rows.Next() {
		b, err := scanBrand(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, b)
	}
	return list, rows.Err()
}

// SetResult stores the scrape outcome.
func (r *BrandRepo) SetResult(ctx context.Context, id uuid.UUID, name string, palette, assets []string, status string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE brand_profiles SET name = $2, palette = $3, assets = $4, status = $5, updated_at = now()
		WHERE id = $1
	`, id, name, palette, assets, status)
	return err
}

func (r *BrandRepo) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE brand_profiles SET status = $2, updated_at = now() WHERE id = $1
	`, id, status)
	return err
}

// --- style references ---

type StyleRepo struct {
	pool *pgxpool.Pool
}

func NewStyleRepo(pool *pgxpool.Pool) *StyleRepo {
	return &StyleRepo{pool: pool}
}

func (r *StyleRepo) Create(ctx context.Context, s *models.StyleReference) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO style_references (id, image_url, r, g, b, color_family)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, s.ID, s.ImageURL, s.R, s.G, s.B, s.ColorFamily).Scan(&s.CreatedAt)
}

func (r *StyleRepo) List(ctx context.Context) ([]*models.StyleReference, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, image_url, r, g, b, color_family, created_at
		FROM style_references ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.StyleReference
	for rows.Next() {
		var s models.StyleReference
		if err := rows.Scan(&s.ID, &s.ImageURL, &s.R, &s.G, &s.B, &s.ColorFamily, &s.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &s)
	}
	return list, rows.Err()
}
