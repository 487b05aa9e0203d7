package slackbot

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/crafted/backend/internal/models"
	"github.com/crafted/backend/internal/tasks"
)

const testSigningSecret = "8f742231b10e8888abcd99yyyzzz85a5"

type mockReviewer struct {
	approved []uuid.UUID
	revised  []uuid.UUID
	err      error
}

func (m *mockReviewer) AdminApprove(_ context.Context, taskID uuid.UUID) (*models.Task, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.approved = append(m.approved, taskID)
	return &models.Task{ID: taskID, Title: "Landing page hero", Status: models.TaskStatusCompleted}, nil
}

func (m *mockReviewer) AdminRequestRevision(_ context.Context, taskID uuid.UUID) (*models.Task, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.revised = append(m.revised, taskID)
	return &models.Task{ID: taskID, Title: "Landing page hero", Status: models.TaskStatusRevisionRequested, RevisionsUsed: 1, MaxRevisions: 2}, nil
}

type mockInteractionStore struct {
	seen map[string]bool
}

func (m *mockInteractionStore) Record(_ context.Context, provider, eventID, _ string, _ json.RawMessage) (bool, error) {
	if m.seen == nil {
		m.seen = make(map[string]bool)
	}
	key := provider + ":" + eventID
	if m.seen[key] {
		return false, nil
	}
	return true, nil
}

func (m *mockInteractionStore) MarkProcessed(_ context.Context, provider, eventID string) error {
	m.seen[provider+":"+eventID] = true
	return nil
}

type countMetrics struct {
	dispositions []string
}

func (m *countMetrics) RecordWebhook(_, disposition string) {
	m.dispositions = append(m.dispositions, disposition)
}

func interactionBody(t *testing.T, actionID string, taskID uuid.UUID, triggerID string) string {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"type":       "block_actions",
		"trigger_id": triggerID,
		"user":       map[string]string{"name": "ops.jane"},
		"actions": []map[string]any{{
			"block_id":  "task_review",
			"action_id": actionID,
			"value":     taskID.String(),
		}},
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return "payload=" + url.QueryEscape(string(payload))
}

func signedRequest(body string, secret string, ts time.Time) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/webhooks/slack/interactions", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	stamp := strconv.FormatInt(ts.Unix(), 10)
	r.Header.Set("X-Slack-Request-Timestamp", stamp)
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "v0:%s:%s", stamp, body)
	r.Header.Set("X-Slack-Signature", "v0="+hex.EncodeToString(mac.Sum(nil)))
	return r
}

func newInteractionHandler() (*InteractionHandler, *mockReviewer, *countMetrics) {
	reviewer := &mockReviewer{}
	metrics := &countMetrics{}
	h := &InteractionHandler{
		SigningSecret: testSigningSecret,
		Reviewer:      reviewer,
		Webhooks:      &mockInteractionStore{},
		Metrics:       metrics,
		Logger:        slog.New(slog.DiscardHandler),
	}
	return h, reviewer, metrics
}

func TestApproveButtonCompletesTask(t *testing.T) {
	h, reviewer, _ := newInteractionHandler()
	taskID := uuid.New()

	body := interactionBody(t, ActionApproveTask, taskID, "trig_1")
	w := httptest.NewRecorder()
	h.Handle(w, signedRequest(body, testSigningSecret, time.Now()))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if len(reviewer.approved) != 1 || reviewer.approved[0] != taskID {
		t.Fatalf("approved = %v, want [%s]", reviewer.approved, taskID)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["replace_original"] != true {
		t.Errorf("response does not replace the original message: %v", resp)
	}
	if !strings.Contains(resp["text"].(string), "approved by ops.jane") {
		t.Errorf("text = %v", resp["text"])
	}
}

func TestRevisionButton(t *testing.T) {
	h, reviewer, _ := newInteractionHandler()
	taskID := uuid.New()

	body := interactionBody(t, ActionRequestRevision, taskID, "trig_2")
	w := httptest.NewRecorder()
	h.Handle(w, signedRequest(body, testSigningSecret, time.Now()))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if len(reviewer.revised) != 1 {
		t.Fatalf("revised = %v, want one call", reviewer.revised)
	}
}

func TestForgedSignatureRejected(t *testing.T) {
	h, reviewer, metrics := newInteractionHandler()

	body := interactionBody(t, ActionApproveTask, uuid.New(), "trig_3")
	w := httptest.NewRecorder()
	h.Handle(w, signedRequest(body, "wrong-secret", time.Now()))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if len(reviewer.approved) != 0 {
		t.Errorf("verdict applied despite forged signature")
	}
	if len(metrics.dispositions) == 0 || metrics.dispositions[0] != "rejected" {
		t.Errorf("dispositions = %v, want rejected first", metrics.dispositions)
	}
}

func TestStaleTimestampRejected(t *testing.T) {
	h, reviewer, _ := newInteractionHandler()

	body := interactionBody(t, ActionApproveTask, uuid.New(), "trig_4")
	w := httptest.NewRecorder()
	h.Handle(w, signedRequest(body, testSigningSecret, time.Now().Add(-time.Hour)))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if len(reviewer.approved) != 0 {
		t.Errorf("verdict applied despite stale timestamp")
	}
}

func TestDoubleClickReportsAlreadyHandled(t *testing.T) {
	h, reviewer, _ := newInteractionHandler()
	reviewer.err = fmt.Errorf("%w: completed -> completed", tasks.ErrIllegalTransition)

	body := interactionBody(t, ActionApproveTask, uuid.New(), "trig_5")
	w := httptest.NewRecorder()
	h.Handle(w, signedRequest(body, testSigningSecret, time.Now()))

	// Slack retries non-2xx, and a double-click is not a server fault.
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if !strings.Contains(resp["text"].(string), "already moved on") {
		t.Errorf("text = %v", resp["text"])
	}
}

func TestDuplicateTriggerDropped(t *testing.T) {
	h, reviewer, _ := newInteractionHandler()
	taskID := uuid.New()
	body := interactionBody(t, ActionApproveTask, taskID, "trig_6")

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		h.Handle(w, signedRequest(body, testSigningSecret, time.Now()))
		if w.Code != http.StatusOK {
			t.Fatalf("delivery %d: status = %d", i, w.Code)
		}
	}
	if len(reviewer.approved) != 1 {
		t.Errorf("approved %d times, want 1", len(reviewer.approved))
	}
}
