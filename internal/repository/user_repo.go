package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crafted/backend/internal/models"
)

const userColumns = `id, email, password_hash, display_name, role, credit_balance, stripe_customer_id, stripe_connect_id, connect_ready, is_system_account, created_at, updated_at`

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &u.Role, &u.CreditBalance, &u.StripeCustomerID, &u.StripeConnectID, &u.ConnectReady, &u.IsSystemAccount, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) Create(ctx context.Context, u *models.User) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO users (id, email, password_hash, display_name, role, credit_balance, stripe_customer_id, stripe_connect_id, connect_ready, is_system_account)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`, u.ID, u.Email, u.PasswordHash, u.DisplayName, u.Role, u.CreditBalance, u.StripeCustomerID, u.StripeConnectID, u.ConnectReady, u.IsSystemAccount).Scan(&u.CreatedAt, &u.UpdatedAt)
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (r *UserRepo) GetByConnectID(ctx context.Context, connectID string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE stripe_connect_id = $1`, connectID))
}

func (r *UserRepo) List(ctx context.Context) ([]*models.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE is_system_account = FALSE ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}

func (r *UserRepo) SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET stripe_customer_id = $2, updated_at = now() WHERE id = $1`, id, customerID)
	return err
}

func (r *UserRepo) SetStripeConnectID(ctx context.Context, id uuid.UUID, connectID string) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET stripe_connect_id = $2, updated_at = now() WHERE id = $1`, id, connectID)
	return err
}

func (r *UserRepo) SetConnectReady(ctx context.Context, id uuid.UUID, ready bool) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET connect_ready = $2, updated_at = now() WHERE id = $1`, id, ready)
	return err
}

// GetByIDForUpdate locks the user row for update. Call within a transaction.
func (r *UserRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.User, error) {
	return scanUser(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
}

// DeductCredits atomically deducts credits if the balance covers them.
// Returns the new balance; scans no row when the balance is short, which
// surfaces as pgx.ErrNoRows.
func (r *UserRepo) DeductCredits(ctx context.Context, tx pgx.Tx, id uuid.UUID, credits int) (newBalance int, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE users SET credit_balance = credit_balance - $1, updated_at = now()
		WHERE id = $2 AND credit_balance >= $1
		RETURNING credit_balance
	`, credits, id).Scan(&newBalance)
	return newBalance, err
}

// AddCredits adds credits to the user and returns the new balance.
func (r *UserRepo) AddCredits(ctx context.Context, tx pgx.Tx, id uuid.UUID, credits int) (newBalance int, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE users SET credit_balance = credit_balance + $1, updated_at = now()
		WHERE id = $2
		RETURNING credit_balance
	`, credits, id).Scan(&newBalance)
	return newBalance, err
}
