// Package dashboard serves the account and admin read endpoints.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/crafted/backend/internal/middleware"
	"github.com/crafted/backend/internal/models"
)

const (
	defaultLedgerLimit = 50
	maxLedgerLimit     = 200
)

type CreditLister interface {
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.CreditTransaction, error)
}

type UserLister interface {
	List(ctx context.Context) ([]*models.User, error)
}

type PayoutLister interface {
	ListAll(ctx context.Context) ([]*models.Payout, error)
}

type TaskAdminStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type Handler struct {
	Credits CreditLister
	Users   UserLister
	Payouts PayoutLister
	Tasks   TaskAdminStore
	Logger  *slog.Logger
}

// Me returns the authenticated user's own account, balance included.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, middleware.UserFromCtx(r.Context()))
}

// ListCredits returns the caller's credit ledger, newest first.
func (h *Handler) ListCredits(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())

	limit := defaultLedgerLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxLedgerLimit {
			http.Error(w, `{"error":"limit must be between 1 and 200"}`, http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries, err := h.Credits.ListByUser(r.Context(), user.ID, limit)
	if err != nil {
		h.Logger.Error("list credit ledger failed", "user_id", user.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []*models.CreditTransaction{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// ListUsers returns every non-system user. Admin only, enforced by routing.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Users.List(r.Context())
	if err != nil {
		h.Logger.Error("list users failed", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if users == nil {
		users = []*models.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

// ListPayouts returns every payout across the platform. Admin only.
func (h *Handler) ListPayouts(w http.ResponseWriter, r *http.Request) {
	payouts, err := h.Payouts.ListAll(r.Context())
	if err != nil {
		h.Logger.Error("list payouts failed", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if payouts == nil {
		payouts = []*models.Payout{}
	}
	writeJSON(w, http.StatusOK, payouts)
}

// DeleteTask removes a finished task. Active tasks must be cancelled through
// the lifecycle first so the escrow is settled.
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid task id"}`, http.StatusBadRequest)
		return
	}

	task, err := h.Tasks.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, `{"error":"task not found"}`, http.StatusNotFound)
			return
		}
		h.Logger.Error("load task failed", "task_id", id, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if task.Status != models.TaskStatusCompleted && task.Status != models.TaskStatusCancelled {
		http.Error(w, `{"error":"only completed or cancelled tasks can be deleted"}`, http.StatusConflict)
		return
	}

	if err := h.Tasks.Delete(r.Context(), id); err != nil {
		h.Logger.Error("delete task failed", "task_id", id, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	h.Logger.Info("task deleted", "task_id", id, "admin_id", middleware.UserFromCtx(r.Context()).ID)
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
