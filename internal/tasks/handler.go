package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/microcosm-cc/bluemonday"

	"github.com/crafted/backend/internal/ledger"
	"github.com/crafted/backend/internal/middleware"
	"github.com/crafted/backend/internal/models"
)

// TaskStore is the subset of the task repository needed by the handler.
type TaskStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, t *models.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Task, error)
	UpdateTx(ctx context.Context, tx pgx.Tx, t *models.Task) error
	ListByClient(ctx context.Context, clientID uuid.UUID) ([]*models.Task, error)
	ListByFreelancer(ctx context.Context, freelancerID uuid.UUID) ([]*models.Task, error)
	ListAll(ctx context.Context) ([]*models.Task, error)
}

// FileStore persists task files.
type FileStore interface {
	Create(ctx context.Context, f *models.TaskFile) error
	CreateTx(ctx context.Context, tx pgx.Tx, f *models.TaskFile) error
	ListByTask(ctx context.Context, taskID uuid.UUID) ([]*models.TaskFile, error)
}

// MessageStore persists task messages.
type MessageStore interface {
	Create(ctx context.Context, m *models.TaskMessage) error
	ListByTask(ctx context.Context, taskID uuid.UUID) ([]*models.TaskMessage, error)
	ListSince(ctx context.Context, taskID uuid.UUID, since time.Time, sinceID uuid.UUID) ([]*models.TaskMessage, error)
}

// UserStore resolves users for assignment checks.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// CreditLedger abstracts the credit movements the lifecycle triggers.
type CreditLedger interface {
	SpendOnTask(ctx context.Context, tx pgx.Tx, clientID, taskID uuid.UUID, credits int) error
	RefundTask(ctx context.Context, tx pgx.Tx, clientID, taskID uuid.UUID, credits int) error
	SettleEarning(ctx context.Context, tx pgx.Tx, freelancerID, taskID uuid.UUID, credits int) error
}

// TxBeginner abstracts transaction creation so tests don't need a
// pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Enqueuer abstracts background job insertion.
type Enqueuer interface {
	Classify(ctx context.Context, taskID uuid.UUID) error
	NotifyReview(ctx context.Context, taskID uuid.UUID) error
}

// messagePolicy strips all markup from chat bodies before they are stored.
var messagePolicy = bluemonday.StrictPolicy()

// Handler serves the /api/v1/tasks endpoints.
type Handler struct {
	Pool      TxBeginner
	Tasks     TaskStore
	Files     FileStore
	Messages  MessageStore
	Users     UserStore
	Ledger    CreditLedger
	Validator *Validator
	Jobs      Enqueuer
	// AdminReviewRequired routes deliverables through an admin gate before
	// the client sees them.
	AdminReviewRequired bool
	// StreamInterval overrides the message stream poll cadence; zero means
	// the default.
	StreamInterval time.Duration
	Logger         *slog.Logger
}

// reviewTarget is the status a deliverable submission moves the task to.
func (h *Handler) reviewTarget() string {
	if h.AdminReviewRequired {
		return models.TaskStatusPendingAdminReview
	}
	return models.TaskStatusInReview
}

// canView reports whether u may read the task at all.
func canView(u *models.User, t *models.Task) bool {
	if u.Role == models.RoleAdmin {
		return true
	}
	if t.ClientID == u.ID {
		return true
	}
	return t.FreelancerID != nil && *t.FreelancerID == u.ID
}

// --- POST /api/v1/tasks ---

type createTaskRequest struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	CreditsRequired int    `json:"credits_required"`
	MaxRevisions    *int   `json:"max_revisions"`
	Deadline        string `json:"deadline"`
	BrandProfileID  string `json:"brand_profile_id"`
}

// Create handles POST /api/v1/tasks.
// Validate -> Deduct Credits + Persist (one tx) -> Enqueue Classify -> 201.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, `{"error":"invalid body"}`, http.StatusBadRequest)
		return
	}
	if err := h.Validator.Validate("create_task", body); err != nil {
		if errors.Is(err, ErrValidation) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
			return
		}
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	var req createTaskRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}

	task := &models.Task{
		ID:              uuid.New(),
		ClientID:        user.ID,
		Title:           req.Title,
		Description:     req.Description,
		Status:          models.TaskStatusPending,
		CreditsRequired: req.CreditsRequired,
		MaxRevisions:    models.DefaultMaxRevisions,
	}
	if req.MaxRevisions != nil {
		task.MaxRevisions = *req.MaxRevisions
	}
	if req.Deadline != "" {
		dl, err := time.Parse(time.RFC3339, req.Deadline)
		if err != nil {
			http.Error(w, `{"error":"deadline must be RFC 3339"}`, http.StatusBadRequest)
			return
		}
		task.Deadline = &dl
	}
	if req.BrandProfileID != "" {
		bid, err := uuid.Parse(req.BrandProfileID)
		if err != nil {
			http.Error(w, `{"error":"invalid brand_profile_id"}`, http.StatusBadRequest)
			return
		}
		task.BrandProfileID = &bid
	}

	tx, err := h.Pool.Begin(r.Context())
	if err != nil {
		h.Logger.Error("begin tx", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	defer tx.Rollback(r.Context())

	if err := h.Ledger.SpendOnTask(r.Context(), tx, user.ID, task.ID, task.CreditsRequired); err != nil {
		if errors.Is(err, ledger.ErrInsufficientCredits) {
			http.Error(w, `{"error":"insufficient credits"}`, http.StatusPaymentRequired)
			return
		}
		h.Logger.Error("spend credits", "error", err)
		http.Error(w, `{"error":"failed to reserve credits"}`, http.StatusInternalServerError)
		return
	}
	if err := h.Tasks.CreateTx(r.Context(), tx, task); err != nil {
		h.Logger.Error("create task", "error", err)
		http.Error(w, `{"error":"failed to create task"}`, http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(r.Context()); err != nil {
		h.Logger.Error("commit tx", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	// Classification is advisory; a failed enqueue never fails the request.
	if err := h.Jobs.Classify(r.Context(), task.ID); err != nil {
		h.Logger.Warn("enqueue classify", "task_id", task.ID, "error", err)
	}

	writeJSON(w, http.StatusCreated, task)
}

// --- GET /api/v1/tasks ---

// List handles GET /api/v1/tasks, scoped to the caller's role.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())

	var (
		list []*models.Task
		err  error
	)
	switch user.Role {
	case models.RoleAdmin:
		list, err = h.Tasks.ListAll(r.Context())
	case models.RoleFreelancer:
		list, err = h.Tasks.ListByFreelancer(r.Context(), user.ID)
	default:
		list, err = h.Tasks.ListByClient(r.Context(), user.ID)
	}
	if err != nil {
		h.Logger.Error("list tasks", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*models.Task{}
	}
	writeJSON(w, http.StatusOK, list)
}

// --- GET /api/v1/tasks/{id} ---

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	user, task, ok := h.loadTask(w, r)
	if !ok {
		return
	}
	_ = user
	writeJSON(w, http.StatusOK, task)
}

// --- POST /api/v1/tasks/{id}/assign ---

type assignRequest struct {
	FreelancerID string `json:"freelancer_id"`
}

// Assign handles POST /api/v1/tasks/{id}/assign (admin only, enforced by the
// router).
func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	taskID, ok := parseTaskID(w, r)
	if !ok {
		return
	}

	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	freelancerID, err := uuid.Parse(req.FreelancerID)
	if err != nil {
		http.Error(w, `{"error":"invalid freelancer_id"}`, http.StatusBadRequest)
		return
	}
	freelancer, err := h.Users.GetByID(r.Context(), freelancerID)
	if err != nil {
		http.Error(w, `{"error":"freelancer not found"}`, http.StatusNotFound)
		return
	}
	if freelancer.Role != models.RoleFreelancer {
		http.Error(w, `{"error":"assignee is not a freelancer"}`, http.StatusBadRequest)
		return
	}

	tx, err := h.Pool.Begin(r.Context())
	if err != nil {
		h.Logger.Error("begin tx", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	defer tx.Rollback(r.Context())

	task, err := h.Tasks.GetByIDForUpdate(r.Context(), tx, taskID)
	if err != nil {
		http.Error(w, `{"error":"task not found"}`, http.StatusNotFound)
		return
	}
	if !models.CanTransition(task.Status, models.TaskStatusAssigned) {
		conflict(w, task.Status, models.TaskStatusAssigned)
		return
	}

	task.FreelancerID = &freelancerID
	task.Status = models.TaskStatusAssigned
	if err := h.finish(w, r, tx, task); err != nil {
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// --- POST /api/v1/tasks/{id}/start ---

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	taskID, ok := parseTaskID(w, r)
	if !ok {
		return
	}

	tx, err := h.Pool.Begin(r.Context())
	if err != nil {
		h.Logger.Error("begin tx", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	defer tx.Rollback(r.Context())

	task, err := h.Tasks.GetByIDForUpdate(r.Context(), tx, taskID)
	if err != nil {
		http.Error(w, `{"error":"task not found"}`, http.StatusNotFound)
		return
	}
	if task.FreelancerID == nil || *task.FreelancerID != user.ID {
		http.Error(w, `{"error":"caller is not the assigned freelancer"}`, http.StatusForbidden)
		return
	}
	if !models.CanTransition(task.Status, models.TaskStatusInProgress) {
		conflict(w, task.Status, models.TaskStatusInProgress)
		return
	}

	task.Status = models.TaskStatusInProgress
	if err := h.finish(w, r, tx, task); err != nil {
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// --- POST /api/v1/tasks/{id}/deliverables ---

type deliverableRequest struct {
	FileName    string `json:"file_name"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

// SubmitDeliverable handles POST /api/v1/tasks/{id}/deliverables. The file
// row and the status move commit in one transaction; where the task lands
// depends on the review mode.
func (h *Handler) SubmitDeliverable(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	taskID, ok := parseTaskID(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, `{"error":"invalid body"}`, http.StatusBadRequest)
		return
	}
	if err := h.Validator.Validate("submit_deliverable", body); err != nil {
		if errors.Is(err, ErrValidation) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
			return
		}
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	var req deliverableRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}

	tx, err := h.Pool.Begin(r.Context())
	if err != nil {
		h.Logger.Error("begin tx", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	defer tx.Rollback(r.Context())

	task, err := h.Tasks.GetByIDForUpdate(r.Context(), tx, taskID)
	if err != nil {
		http.Error(w, `{"error":"task not found"}`, http.StatusNotFound)
		return
	}
	if task.FreelancerID == nil || *task.FreelancerID != user.ID {
		http.Error(w, `{"error":"caller is not the assigned freelancer"}`, http.StatusForbidden)
		return
	}
	if !models.SubmittableStatuses[task.Status] {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "task does not accept deliverables", "status": task.Status})
		return
	}

	file := &models.TaskFile{
		ID:          uuid.New(),
		TaskID:      task.ID,
		UploaderID:  user.ID,
		FileName:    req.FileName,
		URL:         req.URL,
		ContentType: req.ContentType,
		SizeBytes:   req.SizeBytes,
		Kind:        models.FileKindDeliverable,
	}
	if err := h.Files.CreateTx(r.Context(), tx, file); err != nil {
		h.Logger.Error("create deliverable", "error", err)
		http.Error(w, `{"error":"failed to store deliverable"}`, http.StatusInternalServerError)
		return
	}

	task.Status = h.reviewTarget()
	if err := h.finish(w, r, tx, task); err != nil {
		return
	}

	// Review notifications are best-effort.
	if err := h.Jobs.NotifyReview(r.Context(), task.ID); err != nil {
		h.Logger.Warn("enqueue review notification", "task_id", task.ID, "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{"task": task, "file": file})
}

// --- POST /api/v1/tasks/{id}/revisions ---

// RequestRevision handles POST /api/v1/tasks/{id}/revisions. Clients may only
// send work back while it sits in their review; admins may from either review
// state.
func (h *Handler) RequestRevision(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	taskID, ok := parseTaskID(w, r)
	if !ok {
		return
	}

	tx, err := h.Pool.Begin(r.Context())
	if err != nil {
		h.Logger.Error("begin tx", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	defer tx.Rollback(r.Context())

	task, err := h.Tasks.GetByIDForUpdate(r.Context(), tx, taskID)
	if err != nil {
		http.Error(w, `{"error":"task not found"}`, http.StatusNotFound)
		return
	}
	if !canReview(user, task) {
		http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
		return
	}
	if !models.CanTransition(task.Status, models.TaskStatusRevisionRequested) {
		conflict(w, task.Status, models.TaskStatusRevisionRequested)
		return
	}
	if task.RevisionsUsed >= task.MaxRevisions {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "revision limit reached"})
		return
	}

	task.RevisionsUsed++
	task.Status = models.TaskStatusRevisionRequested
	if err := h.finish(w, r, tx, task); err != nil {
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// --- POST /api/v1/tasks/{id}/approve ---

// Approve handles POST /api/v1/tasks/{id}/approve. Approval settles the
// freelancer's earning in the same transaction as the status move.
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	taskID, ok := parseTaskID(w, r)
	if !ok {
		return
	}

	tx, err := h.Pool.Begin(r.Context())
	if err != nil {
		h.Logger.Error("begin tx", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	defer tx.Rollback(r.Context())

	task, err := h.Tasks.GetByIDForUpdate(r.Context(), tx, taskID)
	if err != nil {
		http.Error(w, `{"error":"task not found"}`, http.StatusNotFound)
		return
	}
	if !canReview(user, task) {
		http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
		return
	}
	if !models.CanTransition(task.Status, models.TaskStatusCompleted) {
		conflict(w, task.Status, models.TaskStatusCompleted)
		return
	}
	if task.FreelancerID == nil {
		h.Logger.Error("approving task with no freelancer", "task_id", task.ID)
		http.Error(w, `{"error":"no freelancer assigned"}`, http.StatusInternalServerError)
		return
	}

	if err := h.Ledger.SettleEarning(r.Context(), tx, *task.FreelancerID, task.ID, task.CreditsRequired); err != nil {
		h.Logger.Error("settle earning", "task_id", task.ID, "error", err)
		http.Error(w, `{"error":"settlement failed"}`, http.StatusInternalServerError)
		return
	}

	task.Status = models.TaskStatusCompleted
	if err := h.finish(w, r, tx, task); err != nil {
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// --- POST /api/v1/tasks/{id}/cancel ---

// Cancel handles POST /api/v1/tasks/{id}/cancel. Clients may cancel before
// work starts; admins may cancel any non-terminal task. The client's credits
// come back in full either way.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	taskID, ok := parseTaskID(w, r)
	if !ok {
		return
	}

	tx, err := h.Pool.Begin(r.Context())
	if err != nil {
		h.Logger.Error("begin tx", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	defer tx.Rollback(r.Context())

	task, err := h.Tasks.GetByIDForUpdate(r.Context(), tx, taskID)
	if err != nil {
		http.Error(w, `{"error":"task not found"}`, http.StatusNotFound)
		return
	}
	switch user.Role {
	case models.RoleAdmin:
		// any non-terminal task
	default:
		if task.ClientID != user.ID {
			http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
			return
		}
		if task.Status != models.TaskStatusPending && task.Status != models.TaskStatusAssigned {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "work has started; contact support to cancel", "status": task.Status})
			return
		}
	}
	if !models.CanTransition(task.Status, models.TaskStatusCancelled) {
		conflict(w, task.Status, models.TaskStatusCancelled)
		return
	}

	if err := h.Ledger.RefundTask(r.Context(), tx, task.ClientID, task.ID, task.CreditsRequired); err != nil {
		h.Logger.Error("refund task", "task_id", task.ID, "error", err)
		http.Error(w, `{"error":"refund failed"}`, http.StatusInternalServerError)
		return
	}

	task.Status = models.TaskStatusCancelled
	if err := h.finish(w, r, tx, task); err != nil {
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// --- messages ---

type postMessageRequest struct {
	Body string `json:"body"`
}

// ListMessages handles GET /api/v1/tasks/{id}/messages.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	_, task, ok := h.loadTask(w, r)
	if !ok {
		return
	}
	list, err := h.Messages.ListByTask(r.Context(), task.ID)
	if err != nil {
		h.Logger.Error("list messages", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*models.TaskMessage{}
	}
	writeJSON(w, http.StatusOK, list)
}

// PostMessage handles POST /api/v1/tasks/{id}/messages. Bodies are stripped
// of markup before storage.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	user, task, ok := h.loadTask(w, r)
	if !ok {
		return
	}

	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	body := messagePolicy.Sanitize(req.Body)
	if body == "" {
		http.Error(w, `{"error":"message body is empty"}`, http.StatusBadRequest)
		return
	}

	msg := &models.TaskMessage{
		ID:       uuid.New(),
		TaskID:   task.ID,
		SenderID: user.ID,
		Body:     body,
	}
	if err := h.Messages.Create(r.Context(), msg); err != nil {
		h.Logger.Error("create message", "error", err)
		http.Error(w, `{"error":"failed to store message"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// --- files ---

type uploadFileRequest struct {
	FileName    string `json:"file_name"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

// ListFiles handles GET /api/v1/tasks/{id}/files.
func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	_, task, ok := h.loadTask(w, r)
	if !ok {
		return
	}
	list, err := h.Files.ListByTask(r.Context(), task.ID)
	if err != nil {
		h.Logger.Error("list files", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*models.TaskFile{}
	}
	writeJSON(w, http.StatusOK, list)
}

// UploadFile handles POST /api/v1/tasks/{id}/files. Everything here is a
// reference file; deliverables only enter through the deliverables endpoint
// so they always move the lifecycle.
func (h *Handler) UploadFile(w http.ResponseWriter, r *http.Request) {
	user, task, ok := h.loadTask(w, r)
	if !ok {
		return
	}

	var req uploadFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.FileName == "" || req.URL == "" {
		http.Error(w, `{"error":"file_name and url are required"}`, http.StatusBadRequest)
		return
	}

	file := &models.TaskFile{
		ID:          uuid.New(),
		TaskID:      task.ID,
		UploaderID:  user.ID,
		FileName:    req.FileName,
		URL:         req.URL,
		ContentType: req.ContentType,
		SizeBytes:   req.SizeBytes,
		Kind:        models.FileKindReference,
	}
	if err := h.Files.Create(r.Context(), file); err != nil {
		h.Logger.Error("create file", "error", err)
		http.Error(w, `{"error":"failed to store file"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, file)
}

// --- helpers ---

// canReview reports whether u may issue a review verdict in the task's
// current state. Clients only review their own tasks in in_review; the admin
// gate belongs to admins.
func canReview(u *models.User, t *models.Task) bool {
	if u.Role == models.RoleAdmin {
		return true
	}
	return t.ClientID == u.ID && t.Status == models.TaskStatusInReview
}

// loadTask parses the path id, fetches the task, and enforces visibility.
// On failure it has already written the response.
func (h *Handler) loadTask(w http.ResponseWriter, r *http.Request) (*models.User, *models.Task, bool) {
	user := middleware.UserFromCtx(r.Context())
	taskID, ok := parseTaskID(w, r)
	if !ok {
		return nil, nil, false
	}
	task, err := h.Tasks.GetByID(r.Context(), taskID)
	if err != nil {
		http.Error(w, `{"error":"task not found"}`, http.StatusNotFound)
		return nil, nil, false
	}
	if !canView(user, task) {
		http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
		return nil, nil, false
	}
	return user, task, true
}

// finish persists the mutated task and commits. On failure it has already
// written the response and returns a non-nil error so callers just return.
func (h *Handler) finish(w http.ResponseWriter, r *http.Request, tx pgx.Tx, task *models.Task) error {
	if err := h.Tasks.UpdateTx(r.Context(), tx, task); err != nil {
		h.Logger.Error("update task", "task_id", task.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return err
	}
	if err := tx.Commit(r.Context()); err != nil {
		h.Logger.Error("commit tx", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return err
	}
	return nil
}

func conflict(w http.ResponseWriter, from, to string) {
	writeJSON(w, http.StatusConflict, map[string]string{
		"error":  "illegal status transition",
		"status": from,
		"target": to,
	})
}

func parseTaskID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid task id"}`, http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
