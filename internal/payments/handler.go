package payments

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/crafted/backend/internal/ledger"
	"github.com/crafted/backend/internal/middleware"
	"github.com/crafted/backend/internal/models"
)

// Gateway is the subset of the Stripe wrapper the REST handlers need.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, user *models.User, credits int) (sessionID, url string, err error)
	CreateExpressAccount(ctx context.Context, email string) (string, error)
	CreateAccountLink(ctx context.Context, accountID string) (string, error)
}

// PayoutLedger manages payout availability and records.
type PayoutLedger interface {
	AvailableCredits(ctx context.Context, freelancerID uuid.UUID) (int, error)
	RequestPayout(ctx context.Context, freelancerID uuid.UUID, credits int) (*models.Payout, error)
}

// PayoutStore lists payout rows.
type PayoutStore interface {
	ListByFreelancer(ctx context.Context, freelancerID uuid.UUID) ([]*models.Payout, error)
}

// ConnectStore persists Stripe Connect state on users.
type ConnectStore interface {
	SetStripeConnectID(ctx context.Context, id uuid.UUID, connectID string) error
}

// PayoutEnqueuer hands a requested payout to the background executor.
type PayoutEnqueuer interface {
	ExecutePayout(ctx context.Context, payoutID uuid.UUID) error
}

// MaxCheckoutCredits caps a single purchase.
const MaxCheckoutCredits = 10000

// Handler serves the credits, payouts, and Connect onboarding endpoints.
type Handler struct {
	Stripe           Gateway
	Payouts          PayoutLedger
	PayoutRows       PayoutStore
	Users            ConnectStore
	Jobs             PayoutEnqueuer
	PricePerCredit   float64
	ArtistPercentage float64
	Logger           *slog.Logger
}

// --- POST /api/v1/credits/checkout ---

type checkoutRequest struct {
	Credits int `json:"credits"`
}

// Checkout handles POST /api/v1/credits/checkout. No credits move here: the
// balance only changes when the checkout.session.completed webhook lands.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Credits <= 0 || req.Credits > MaxCheckoutCredits {
		http.Error(w, `{"error":"credits must be between 1 and 10000"}`, http.StatusBadRequest)
		return
	}

	sessionID, url, err := h.Stripe.CreateCheckoutSession(r.Context(), user, req.Credits)
	if err != nil {
		h.Logger.Error("create checkout session", "user_id", user.ID, "error", err)
		http.Error(w, `{"error":"payment provider unavailable"}`, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": sessionID, "url": url})
}

// --- POST /api/v1/connect/onboard ---

// Onboard handles POST /api/v1/connect/onboard. Creates the Express account
// on first call and always returns a fresh onboarding link; Stripe links are
// single-use.
func (h *Handler) Onboard(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())

	connectID := user.StripeConnectID
	if connectID == "" {
		id, err := h.Stripe.CreateExpressAccount(r.Context(), user.Email)
		if err != nil {
			h.Logger.Error("create express account", "user_id", user.ID, "error", err)
			http.Error(w, `{"error":"payment provider unavailable"}`, http.StatusBadGateway)
			return
		}
		if err := h.Users.SetStripeConnectID(r.Context(), user.ID, id); err != nil {
			h.Logger.Error("persist connect id", "user_id", user.ID, "error", err)
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
			return
		}
		connectID = id
	}

	url, err := h.Stripe.CreateAccountLink(r.Context(), connectID)
	if err != nil {
		h.Logger.Error("create account link", "user_id", user.ID, "error", err)
		http.Error(w, `{"error":"payment provider unavailable"}`, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// --- GET /api/v1/payouts/balance ---

// Balance handles GET /api/v1/payouts/balance: the credits past the holding
// period plus a money preview of withdrawing all of them.
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())

	available, err := h.Payouts.AvailableCredits(r.Context(), user.ID)
	if err != nil {
		h.Logger.Error("available credits", "user_id", user.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	amounts := ledger.CalculatePayoutAmounts(available, h.PricePerCredit, h.ArtistPercentage)
	writeJSON(w, http.StatusOK, map[string]any{
		"available_credits": available,
		"gross_cents":       amounts.GrossCents,
		"net_cents":         amounts.NetCents,
		"fee_cents":         amounts.FeeCents,
	})
}

// --- POST /api/v1/payouts ---

type payoutRequest struct {
	Credits int `json:"credits"`
}

// RequestPayout handles POST /api/v1/payouts. The debit commits before the
// transfer job runs, so a crashed worker leaves a requested payout to retry,
// never an unpaid debit.
func (h *Handler) RequestPayout(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if !user.ConnectReady {
		http.Error(w, `{"error":"complete Stripe onboarding first"}`, http.StatusConflict)
		return
	}

	var req payoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Credits <= 0 {
		http.Error(w, `{"error":"credits must be > 0"}`, http.StatusBadRequest)
		return
	}

	payout, err := h.Payouts.RequestPayout(r.Context(), user.ID, req.Credits)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrHoldingPeriod):
			http.Error(w, `{"error":"requested credits exceed the available balance"}`, http.StatusConflict)
		case errors.Is(err, ledger.ErrInsufficientCredits):
			http.Error(w, `{"error":"insufficient credits"}`, http.StatusPaymentRequired)
		default:
			h.Logger.Error("request payout", "user_id", user.ID, "error", err)
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		}
		return
	}

	// The payout row is committed; a failed enqueue leaves it requested for
	// a retry sweep rather than failing the request.
	if err := h.Jobs.ExecutePayout(r.Context(), payout.ID); err != nil {
		h.Logger.Warn("enqueue payout execution", "payout_id", payout.ID, "error", err)
	}

	writeJSON(w, http.StatusCreated, payout)
}

// --- GET /api/v1/payouts ---

// ListPayouts handles GET /api/v1/payouts for the calling freelancer.
func (h *Handler) ListPayouts(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())

	list, err := h.PayoutRows.ListByFreelancer(r.Context(), user.ID)
	if err != nil {
		h.Logger.Error("list payouts", "user_id", user.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*models.Payout{}
	}
	writeJSON(w, http.StatusOK, list)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
