package auth

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/crafted/backend/internal/models"
)

type memUsers struct {
	byEmail map[string]*models.User
}

func newMemUsers() *memUsers {
	return &memUsers{byEmail: map[string]*models.User{}}
}

func (m *memUsers) Create(_ context.Context, u *models.User) error {
	if _, ok := m.byEmail[u.Email]; ok {
		return &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}
	}
	m.byEmail[u.Email] = u
	return nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	u, ok := m.byEmail[email]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return u, nil
}

func newService() *Service {
	return NewService(newMemUsers(), "test-secret", time.Hour)
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	user, err := svc.Register(ctx, "maya@example.com", "correct horse", "Maya", models.RoleClient)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.PasswordHash == "correct horse" {
		t.Fatal("password stored in plaintext")
	}

	token, got, err := svc.Login(ctx, "maya@example.com", "correct horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("login returned wrong user %s", got.ID)
	}

	id, role, err := svc.ValidateToken(ctx, token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if id != user.ID || role != models.RoleClient {
		t.Fatalf("claims = (%s, %s)", id, role)
	}
}

func TestRegisterRejectsAdminRole(t *testing.T) {
	svc := newService()
	for _, role := range []string{models.RoleAdmin, "superuser", ""} {
		if _, err := svc.Register(context.Background(), "x@example.com", "password123", "X", role); err != ErrInvalidRole {
			t.Fatalf("role %q: err = %v, want ErrInvalidRole", role, err)
		}
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	if _, err := svc.Register(ctx, "dup@example.com", "password123", "First", models.RoleFreelancer); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := svc.Register(ctx, "dup@example.com", "password123", "Second", models.RoleFreelancer); err != ErrDuplicateEmail {
		t.Fatalf("err = %v, want ErrDuplicateEmail", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	if _, err := svc.Register(ctx, "maya@example.com", "correct horse", "Maya", models.RoleClient); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, _, err := svc.Login(ctx, "maya@example.com", "battery staple"); err != ErrInvalidCredentials {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
	if _, _, err := svc.Login(ctx, "nobody@example.com", "whatever"); err != ErrInvalidCredentials {
		t.Fatalf("unknown email err = %v, want ErrInvalidCredentials", err)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	users := newMemUsers()
	svc := NewService(users, "test-secret", -time.Minute)
	ctx := context.Background()

	user, err := svc.Register(ctx, "maya@example.com", "correct horse", "Maya", models.RoleClient)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	token, err := svc.issueToken(user.ID, user.Role)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, _, err := svc.ValidateToken(ctx, token); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestTamperedTokenRejected(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	user, err := svc.Register(ctx, "maya@example.com", "correct horse", "Maya", models.RoleClient)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	token, err := svc.issueToken(user.ID, user.Role)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	other := NewService(newMemUsers(), "different-secret", time.Hour)
	if _, _, err := other.ValidateToken(ctx, token); err == nil {
		t.Fatal("token signed with another secret accepted")
	}
}
