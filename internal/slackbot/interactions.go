package slackbot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/slack-go/slack"

	"github.com/crafted/backend/internal/models"
	"github.com/crafted/backend/internal/tasks"
)

// maxInteractionBody bounds the form payload read.
const maxInteractionBody = 256 * 1024

// Reviewer applies admin verdicts to tasks.
type Reviewer interface {
	AdminApprove(ctx context.Context, taskID uuid.UUID) (*models.Task, error)
	AdminRequestRevision(ctx context.Context, taskID uuid.UUID) (*models.Task, error)
}

// InteractionStore dedupes interaction deliveries for the audit trail.
type InteractionStore interface {
	Record(ctx context.Context, provider, eventID, eventType string, payload json.RawMessage) (fresh bool, err error)
	MarkProcessed(ctx context.Context, provider, eventID string) error
}

// InteractionMetrics counts webhook dispositions.
type InteractionMetrics interface {
	RecordWebhook(provider, disposition string)
}

// InteractionHandler serves POST /webhooks/slack/interactions: the callback
// Slack sends when an admin presses a button.
type InteractionHandler struct {
	SigningSecret string
	Reviewer      Reviewer
	Webhooks      InteractionStore
	Metrics       InteractionMetrics
	Logger        *slog.Logger
}

// Handle verifies the request signature (which includes the timestamp
// window), then maps the pressed button onto a lifecycle verdict. The
// response body replaces the original Slack message.
func (h *InteractionHandler) Handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxInteractionBody))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	verifier, err := slack.NewSecretsVerifier(r.Header, h.SigningSecret)
	if err != nil {
		h.Metrics.RecordWebhook(models.WebhookProviderSlack, "rejected")
		h.Logger.Warn("slack verifier init", "error", err)
		http.Error(w, "signature verification failed", http.StatusUnauthorized)
		return
	}
	if _, err := verifier.Write(body); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if err := verifier.Ensure(); err != nil {
		h.Metrics.RecordWebhook(models.WebhookProviderSlack, "rejected")
		h.Logger.Warn("slack signature rejected", "error", err)
		http.Error(w, "signature verification failed", http.StatusUnauthorized)
		return
	}

	form, err := url.ParseQuery(string(body))
	if err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	var callback slack.InteractionCallback
	if err := json.Unmarshal([]byte(form.Get("payload")), &callback); err != nil {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}
	if callback.Type != slack.InteractionTypeBlockActions || len(callback.ActionCallback.BlockActions) == 0 {
		w.WriteHeader(http.StatusOK)
		return
	}
	action := callback.ActionCallback.BlockActions[0]

	taskID, err := uuid.Parse(action.Value)
	if err != nil {
		http.Error(w, "bad action value", http.StatusBadRequest)
		return
	}

	// Interactions land in the audit table like any other webhook; a
	// duplicate delivery of the same trigger is dropped.
	fresh, err := h.Webhooks.Record(r.Context(), models.WebhookProviderSlack, callback.TriggerID, action.ActionID, []byte(form.Get("payload")))
	if err != nil {
		h.Logger.Error("record slack interaction", "trigger_id", callback.TriggerID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !fresh {
		h.Metrics.RecordWebhook(models.WebhookProviderSlack, "replay")
		w.WriteHeader(http.StatusOK)
		return
	}

	reply := h.apply(r.Context(), action.ActionID, taskID, callback.User.Name)
	if err := h.Webhooks.MarkProcessed(r.Context(), models.WebhookProviderSlack, callback.TriggerID); err != nil {
		h.Logger.Error("mark interaction processed", "trigger_id", callback.TriggerID, "error", err)
	}
	h.Metrics.RecordWebhook(models.WebhookProviderSlack, "processed")

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"replace_original": true,
		"text":             reply,
	})
}

// apply runs the verdict and returns the text for the replacement message.
// Verdict failures are reported to the channel, never as HTTP errors: Slack
// retries non-2xx responses and a double-click is not a server fault.
func (h *InteractionHandler) apply(ctx context.Context, actionID string, taskID uuid.UUID, actor string) string {
	switch actionID {
	case ActionApproveTask:
		task, err := h.Reviewer.AdminApprove(ctx, taskID)
		if err != nil {
			return h.verdictError(ctx, "approve", taskID, err)
		}
		return fmt.Sprintf(":white_check_mark: *%s* approved by %s — freelancer credited", task.Title, actor)
	case ActionRequestRevision:
		task, err := h.Reviewer.AdminRequestRevision(ctx, taskID)
		if err != nil {
			return h.verdictError(ctx, "request revision", taskID, err)
		}
		return fmt.Sprintf(":back: *%s* sent back for revision by %s (%d/%d used)", task.Title, actor, task.RevisionsUsed, task.MaxRevisions)
	default:
		h.Logger.Warn("unknown slack action", "action_id", actionID)
		return "Unknown action"
	}
}

func (h *InteractionHandler) verdictError(_ context.Context, verb string, taskID uuid.UUID, err error) string {
	switch {
	case errors.Is(err, tasks.ErrIllegalTransition):
		return fmt.Sprintf("Could not %s: the task has already moved on.", verb)
	case errors.Is(err, tasks.ErrRevisionLimit):
		return "Could not request a revision: the revision budget is exhausted."
	default:
		h.Logger.Error("slack verdict failed", "verb", verb, "task_id", taskID, "error", err)
		return fmt.Sprintf("Could not %s: internal error.", verb)
	}
}
