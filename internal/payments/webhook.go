package payments

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/crafted/backend/internal/models"
)

// maxWebhookBody bounds the payload read; Stripe events are small.
const maxWebhookBody = 64 * 1024

// EventVerifier checks the Stripe-Signature header and returns the parsed
// event. Injected so tests can bypass real signatures.
type EventVerifier func(payload []byte, sigHeader string) (stripe.Event, error)

// NewEventVerifier returns a verifier bound to the endpoint's signing
// secret.
func NewEventVerifier(secret string) EventVerifier {
	return func(payload []byte, sigHeader string) (stripe.Event, error) {
		return webhook.ConstructEvent(payload, sigHeader, secret)
	}
}

// WebhookStore is the idempotency ledger for inbound events.
type WebhookStore interface {
	Record(ctx context.Context, provider, eventID, eventType string, payload json.RawMessage) (fresh bool, err error)
	MarkProcessed(ctx context.Context, provider, eventID string) error
}

// PurchaseLedger credits a user after a completed checkout.
type PurchaseLedger interface {
	Purchase(ctx context.Context, userID uuid.UUID, credits int, stripeEventID string) error
}

// WebhookUserStore is the user access the webhook needs.
type WebhookUserStore interface {
	GetByConnectID(ctx context.Context, connectID string) (*models.User, error)
	SetConnectReady(ctx context.Context, id uuid.UUID, ready bool) error
	SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error
}

// PayoutFailer reverses a payout whose transfer bounced.
type PayoutFailer interface {
	MarkFailed(ctx context.Context, payoutID uuid.UUID, reason string) error
}

// WebhookRecorder counts webhook dispositions.
type WebhookRecorder interface {
	RecordWebhook(provider, disposition string)
}

// WebhookHandler serves POST /webhooks/stripe.
type WebhookHandler struct {
	Verify   EventVerifier
	Webhooks WebhookStore
	Ledger   PurchaseLedger
	Users    WebhookUserStore
	Payouts  PayoutFailer
	Metrics  WebhookRecorder
	Logger   *slog.Logger
}

// HandleStripe verifies the signature, dedupes by event ID, and applies the
// event's side effects. A non-2xx response makes Stripe retry, so anything
// transient returns 500 and anything permanently malformed returns 400.
func (h *WebhookHandler) HandleStripe(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	event, err := h.Verify(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.Metrics.RecordWebhook(models.WebhookProviderStripe, "rejected")
		h.Logger.Warn("stripe signature rejected", "error", err)
		http.Error(w, "signature verification failed", http.StatusBadRequest)
		return
	}

	fresh, err := h.Webhooks.Record(r.Context(), models.WebhookProviderStripe, event.ID, string(event.Type), payload)
	if err != nil {
		h.Logger.Error("record webhook event", "event_id", event.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !fresh {
		h.Metrics.RecordWebhook(models.WebhookProviderStripe, "replay")
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := h.handleEvent(r.Context(), event); err != nil {
		h.Metrics.RecordWebhook(models.WebhookProviderStripe, "failed")
		h.Logger.Error("handle stripe event", "event_id", event.ID, "type", event.Type, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if err := h.Webhooks.MarkProcessed(r.Context(), models.WebhookProviderStripe, event.ID); err != nil {
		h.Logger.Error("mark webhook processed", "event_id", event.ID, "error", err)
	}
	h.Metrics.RecordWebhook(models.WebhookProviderStripe, "processed")
	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandler) handleEvent(ctx context.Context, event stripe.Event) error {
	switch event.Type {
	case "checkout.session.completed":
		return h.handleCheckoutCompleted(ctx, event)
	case "account.updated":
		return h.handleAccountUpdated(ctx, event)
	case "transfer.reversed":
		return h.handleTransferReversed(ctx, event)
	default:
		h.Logger.Debug("stripe event ignored", "type", event.Type)
		return nil
	}
}

func (h *WebhookHandler) handleCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	var cs stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
		return err
	}
	userID, err := uuid.Parse(cs.ClientReferenceID)
	if err != nil {
		h.Logger.Warn("checkout session without client_reference_id", "session_id", cs.ID)
		return nil
	}
	credits, err := strconv.Atoi(cs.Metadata["credits"])
	if err != nil || credits <= 0 {
		h.Logger.Warn("checkout session without credits metadata", "session_id", cs.ID)
		return nil
	}

	if err := h.Ledger.Purchase(ctx, userID, credits, event.ID); err != nil {
		return err
	}
	h.Logger.Info("credits purchased", "user_id", userID, "credits", credits, "event_id", event.ID)

	if cs.Customer != nil && cs.Customer.ID != "" {
		if err := h.Users.SetStripeCustomerID(ctx, userID, cs.Customer.ID); err != nil {
			h.Logger.Warn("persist stripe customer id", "user_id", userID, "error", err)
		}
	}
	return nil
}

func (h *WebhookHandler) handleAccountUpdated(ctx context.Context, event stripe.Event) error {
	var acct stripe.Account
	if err := json.Unmarshal(event.Data.Raw, &acct); err != nil {
		return err
	}
	user, err := h.Users.GetByConnectID(ctx, acct.ID)
	if err != nil {
		// Accounts we never created (or webhook ordering races) are not
		// actionable.
		h.Logger.Warn("account.updated for unknown account", "account_id", acct.ID)
		return nil
	}
	ready := acct.PayoutsEnabled && acct.DetailsSubmitted
	if ready == user.ConnectReady {
		return nil
	}
	h.Logger.Info("connect readiness changed", "user_id", user.ID, "ready", ready)
	return h.Users.SetConnectReady(ctx, user.ID, ready)
}

func (h *WebhookHandler) handleTransferReversed(ctx context.Context, event stripe.Event) error {
	var tr stripe.Transfer
	if err := json.Unmarshal(event.Data.Raw, &tr); err != nil {
		return err
	}
	payoutID, err := uuid.Parse(tr.Metadata["payout_id"])
	if err != nil {
		h.Logger.Warn("transfer reversal without payout_id metadata", "transfer_id", tr.ID)
		return nil
	}
	h.Logger.Info("payout transfer reversed", "payout_id", payoutID, "transfer_id", tr.ID)
	return h.Payouts.MarkFailed(ctx, payoutID, "transfer reversed")
}
