package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/crafted/backend/internal/models"
)

// --- mocks ---

type mockTokens struct {
	userID uuid.UUID
	role   string
	err    error
}

func (m *mockTokens) ValidateToken(_ context.Context, _ string) (uuid.UUID, string, error) {
	if m.err != nil {
		return uuid.Nil, "", m.err
	}
	return m.userID, m.role, nil
}

type mockUsers struct {
	users map[uuid.UUID]*models.User
}

func (m *mockUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return u, nil
}

func okHandler(t *testing.T, want *models.User) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := UserFromCtx(r.Context())
		if got == nil {
			t.Error("user missing from context")
		} else if want != nil && got.ID != want.ID {
			t.Errorf("context user: got %s, want %s", got.ID, want.ID)
		}
		w.WriteHeader(http.StatusOK)
	})
}

// --- tests ---

func TestAuthMissingHeader(t *testing.T) {
	mw := Auth(&mockTokens{}, &mockUsers{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
	rec := httptest.NewRecorder()

	mw(okHandler(t, nil)).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want 401", rec.Code)
	}
}

func TestAuthInvalidToken(t *testing.T) {
	mw := Auth(&mockTokens{err: errors.New("expired")}, &mockUsers{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
	req.Header.Set("Authorization", "Bearer bad-token")
	rec := httptest.NewRecorder()

	mw(okHandler(t, nil)).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want 401", rec.Code)
	}
}

func TestAuthSetsUserInContext(t *testing.T) {
	user := &models.User{ID: uuid.New(), Role: models.RoleClient}
	tokens := &mockTokens{userID: user.ID, role: user.Role}
	users := &mockUsers{users: map[uuid.UUID]*models.User{user.ID: user}}

	mw := Auth(tokens, users)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()

	mw(okHandler(t, user)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", rec.Code)
	}
}

func TestAuthUnknownUser(t *testing.T) {
	tokens := &mockTokens{userID: uuid.New(), role: models.RoleClient}
	mw := Auth(tokens, &mockUsers{users: map[uuid.UUID]*models.User{}})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()

	mw(okHandler(t, nil)).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want 401", rec.Code)
	}
}

func TestRequireRole(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mw := RequireRole(models.RoleAdmin)

	// Admin passes.
	admin := &models.User{ID: uuid.New(), Role: models.RoleAdmin}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/users", nil)
	req = req.WithContext(WithUser(req.Context(), admin))
	rec := httptest.NewRecorder()
	mw(next).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("admin: got %d, want 200", rec.Code)
	}

	// Client is forbidden.
	client := &models.User{ID: uuid.New(), Role: models.RoleClient}
	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin/users", nil)
	req = req.WithContext(WithUser(req.Context(), client))
	rec = httptest.NewRecorder()
	mw(next).ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("client: got %d, want 403", rec.Code)
	}

	// No user at all.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin/users", nil)
	rec = httptest.NewRecorder()
	mw(next).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous: got %d, want 401", rec.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2)
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := rl.Middleware(next)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
		req.RemoteAddr = "203.0.113.9:4000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: got %d, want 200", i+1, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
	req.RemoteAddr = "203.0.113.9:4000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("burst exceeded: got %d, want 429", rec.Code)
	}

	// A different caller has its own bucket.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
	req.RemoteAddr = "198.51.100.7:4000"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("other caller: got %d, want 200", rec.Code)
	}
}
