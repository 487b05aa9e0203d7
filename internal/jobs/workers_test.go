package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/crafted/backend/internal/ai"
	"github.com/crafted/backend/internal/models"
)

type mockTasks struct {
	tasks   map[uuid.UUID]*models.Task
	updated *models.Task
}

func (m *mockTasks) GetByID(_ context.Context, id uuid.UUID) (*models.Task, error) {
	t, ok := m.tasks[id]
	if !ok {
		return nil, errors.New("task not found")
	}
	return t, nil
}

func (m *mockTasks) Update(_ context.Context, t *models.Task) error {
	m.updated = t
	return nil
}

type mockUsers struct {
	users map[uuid.UUID]*models.User
}

func (m *mockUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, errors.New("user not found")
	}
	return u, nil
}

type mockNotifier struct {
	reviews int
	flags   []string
	payouts int
	sendErr error
}

func (m *mockNotifier) TaskReadyForReview(_ context.Context, _ *models.Task, _ *models.User) error {
	m.reviews++
	return m.sendErr
}

func (m *mockNotifier) TaskFlagged(_ context.Context, _ *models.Task, flags []string) error {
	m.flags = flags
	return m.sendErr
}

func (m *mockNotifier) PayoutRequested(_ context.Context, _ *models.Payout, _ *models.User) error {
	m.payouts++
	return m.sendErr
}

type mockClassifier struct {
	result *ai.Classification
	err    error
}

func (m *mockClassifier) ClassifyTask(_ context.Context, _, _ string) (*ai.Classification, error) {
	return m.result, m.err
}

type mockPayoutStore struct {
	payouts map[uuid.UUID]*models.Payout
}

func (m *mockPayoutStore) GetByID(_ context.Context, id uuid.UUID) (*models.Payout, error) {
	p, ok := m.payouts[id]
	if !ok {
		return nil, errors.New("payout not found")
	}
	return p, nil
}

func (m *mockPayoutStore) MarkProcessing(_ context.Context, id uuid.UUID) (bool, error) {
	p := m.payouts[id]
	if p.Status != models.PayoutStatusRequested && p.Status != models.PayoutStatusProcessing {
		return false, nil
	}
	p.Status = models.PayoutStatusProcessing
	return true, nil
}

type mockSettler struct {
	paidID     uuid.UUID
	transferID string
	failedID   uuid.UUID
	reason     string
}

func (m *mockSettler) MarkPaid(_ context.Context, payoutID uuid.UUID, transferID string) error {
	m.paidID = payoutID
	m.transferID = transferID
	return nil
}

func (m *mockSettler) MarkFailed(_ context.Context, payoutID uuid.UUID, reason string) error {
	m.failedID = payoutID
	m.reason = reason
	return nil
}

type mockTransfer struct {
	transferID string
	err        error
	calls      int
	connectID  string
}

func (m *mockTransfer) Transfer(_ context.Context, connectID string, _ int64, _ uuid.UUID) (string, error) {
	m.calls++
	m.connectID = connectID
	return m.transferID, m.err
}

type countMetrics struct {
	outcomes map[string]int
}

func (m *countMetrics) RecordJob(kind, outcome string) {
	if m.outcomes == nil {
		m.outcomes = map[string]int{}
	}
	m.outcomes[kind+":"+outcome]++
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedPayout(status string) *models.Payout {
	return &models.Payout{
		ID:           uuid.New(),
		FreelancerID: uuid.New(),
		Credits:      20,
		GrossCents:   10000,
		NetCents:     8500,
		FeeCents:     1500,
		Status:       status,
	}
}

func TestExecutePayoutTransfersAndMarksPaid(t *testing.T) {
	payout := seedPayout(models.PayoutStatusRequested)
	payouts := &mockPayoutStore{payouts: map[uuid.UUID]*models.Payout{payout.ID: payout}}
	settler := &mockSettler{}
	stripe := &mockTransfer{transferID: "tr_123"}
	users := &mockUsers{users: map[uuid.UUID]*models.User{
		payout.FreelancerID: {ID: payout.FreelancerID, StripeConnectID: "acct_1", ConnectReady: true},
	}}
	notifier := &mockNotifier{}
	metrics := &countMetrics{}

	w := &ExecutePayoutWorker{
		Payouts: payouts, Settler: settler, Users: users,
		Stripe: stripe, Notifier: notifier, Metrics: metrics, Logger: discardLogger(),
	}
	err := w.Work(context.Background(), &river.Job[ExecutePayoutArgs]{Args: ExecutePayoutArgs{PayoutID: payout.ID}})
	if err != nil {
		t.Fatalf("work: %v", err)
	}
	if settler.paidID != payout.ID || settler.transferID != "tr_123" {
		t.Fatalf("payout not marked paid: %+v", settler)
	}
	if stripe.connectID != "acct_1" {
		t.Fatalf("transfer hit wrong account %q", stripe.connectID)
	}
	if notifier.payouts != 1 {
		t.Fatalf("expected 1 payout notice, got %d", notifier.payouts)
	}
	if metrics.outcomes["execute_payout:ok"] != 1 {
		t.Fatalf("outcomes = %v", metrics.outcomes)
	}
}

func TestExecutePayoutFinalizedPayoutIsNoOp(t *testing.T) {
	payout := seedPayout(models.PayoutStatusPaid)
	payouts := &mockPayoutStore{payouts: map[uuid.UUID]*models.Payout{payout.ID: payout}}
	settler := &mockSettler{}
	stripe := &mockTransfer{transferID: "tr_dup"}

	w := &ExecutePayoutWorker{
		Payouts: payouts, Settler: settler, Users: &mockUsers{},
		Stripe: stripe, Notifier: &mockNotifier{}, Metrics: &countMetrics{}, Logger: discardLogger(),
	}
	err := w.Work(context.Background(), &river.Job[ExecutePayoutArgs]{Args: ExecutePayoutArgs{PayoutID: payout.ID}})
	if err != nil {
		t.Fatalf("work: %v", err)
	}
	if stripe.calls != 0 {
		t.Fatal("paid payout must not transfer again")
	}
	if settler.paidID != uuid.Nil || settler.failedID != uuid.Nil {
		t.Fatalf("paid payout must not be touched: %+v", settler)
	}
}

// A run that claimed the payout and then died leaves the row in processing.
// The retry must pick it back up and settle it; the transfer call is safe to
// repeat because the payout ID is the Stripe idempotency key.
func TestExecutePayoutResumesStalledProcessing(t *testing.T) {
	payout := seedPayout(models.PayoutStatusProcessing)
	payouts := &mockPayoutStore{payouts: map[uuid.UUID]*models.Payout{payout.ID: payout}}
	settler := &mockSettler{}
	stripe := &mockTransfer{transferID: "tr_retry"}
	users := &mockUsers{users: map[uuid.UUID]*models.User{
		payout.FreelancerID: {ID: payout.FreelancerID, StripeConnectID: "acct_1", ConnectReady: true},
	}}

	w := &ExecutePayoutWorker{
		Payouts: payouts, Settler: settler, Users: users,
		Stripe: stripe, Notifier: &mockNotifier{}, Metrics: &countMetrics{}, Logger: discardLogger(),
	}
	err := w.Work(context.Background(), &river.Job[ExecutePayoutArgs]{Args: ExecutePayoutArgs{PayoutID: payout.ID}})
	if err != nil {
		t.Fatalf("work: %v", err)
	}
	if stripe.calls != 1 {
		t.Fatalf("stalled payout should be retried, transfer calls = %d", stripe.calls)
	}
	if settler.paidID != payout.ID || settler.transferID != "tr_retry" {
		t.Fatalf("stalled payout not settled: %+v", settler)
	}
}

func TestExecutePayoutFailsWithoutConnectAccount(t *testing.T) {
	payout := seedPayout(models.PayoutStatusRequested)
	payouts := &mockPayoutStore{payouts: map[uuid.UUID]*models.Payout{payout.ID: payout}}
	settler := &mockSettler{}
	stripe := &mockTransfer{}
	users := &mockUsers{users: map[uuid.UUID]*models.User{
		payout.FreelancerID: {ID: payout.FreelancerID},
	}}

	w := &ExecutePayoutWorker{
		Payouts: payouts, Settler: settler, Users: users,
		Stripe: stripe, Notifier: &mockNotifier{}, Metrics: &countMetrics{}, Logger: discardLogger(),
	}
	err := w.Work(context.Background(), &river.Job[ExecutePayoutArgs]{Args: ExecutePayoutArgs{PayoutID: payout.ID}})
	if err != nil {
		t.Fatalf("work: %v", err)
	}
	if stripe.calls != 0 {
		t.Fatal("must not transfer without a Connect account")
	}
	if settler.failedID != payout.ID {
		t.Fatal("payout should be marked failed")
	}
}

func TestExecutePayoutTransferErrorMarksFailed(t *testing.T) {
	payout := seedPayout(models.PayoutStatusRequested)
	payouts := &mockPayoutStore{payouts: map[uuid.UUID]*models.Payout{payout.ID: payout}}
	settler := &mockSettler{}
	stripe := &mockTransfer{err: errors.New("balance_insufficient")}
	users := &mockUsers{users: map[uuid.UUID]*models.User{
		payout.FreelancerID: {ID: payout.FreelancerID, StripeConnectID: "acct_1", ConnectReady: true},
	}}

	w := &ExecutePayoutWorker{
		Payouts: payouts, Settler: settler, Users: users,
		Stripe: stripe, Notifier: &mockNotifier{}, Metrics: &countMetrics{}, Logger: discardLogger(),
	}
	err := w.Work(context.Background(), &river.Job[ExecutePayoutArgs]{Args: ExecutePayoutArgs{PayoutID: payout.ID}})
	if err != nil {
		t.Fatalf("work: %v", err)
	}
	if settler.failedID != payout.ID || settler.reason != "balance_insufficient" {
		t.Fatalf("payout not marked failed: %+v", settler)
	}
	if settler.paidID != uuid.Nil {
		t.Fatal("failed payout must not be marked paid")
	}
}

func TestNotifyReviewSkipsTaskThatMovedOn(t *testing.T) {
	task := &models.Task{ID: uuid.New(), Status: models.TaskStatusCompleted}
	tasks := &mockTasks{tasks: map[uuid.UUID]*models.Task{task.ID: task}}
	notifier := &mockNotifier{}

	w := &NotifyReviewWorker{
		Tasks: tasks, Users: &mockUsers{}, Notifier: notifier,
		Metrics: &countMetrics{}, Logger: discardLogger(),
	}
	err := w.Work(context.Background(), &river.Job[NotifyReviewArgs]{Args: NotifyReviewArgs{TaskID: task.ID}})
	if err != nil {
		t.Fatalf("work: %v", err)
	}
	if notifier.reviews != 0 {
		t.Fatal("completed task must not be announced for review")
	}
}

func TestNotifyReviewSwallowsSlackFailure(t *testing.T) {
	freelancerID := uuid.New()
	task := &models.Task{ID: uuid.New(), Status: models.TaskStatusInReview, FreelancerID: &freelancerID}
	tasks := &mockTasks{tasks: map[uuid.UUID]*models.Task{task.ID: task}}
	users := &mockUsers{users: map[uuid.UUID]*models.User{freelancerID: {ID: freelancerID}}}
	notifier := &mockNotifier{sendErr: errors.New("slack down")}
	metrics := &countMetrics{}

	w := &NotifyReviewWorker{Tasks: tasks, Users: users, Notifier: notifier, Metrics: metrics, Logger: discardLogger()}
	err := w.Work(context.Background(), &river.Job[NotifyReviewArgs]{Args: NotifyReviewArgs{TaskID: task.ID}})
	if err != nil {
		t.Fatalf("slack failures must not fail the job: %v", err)
	}
	if metrics.outcomes["notify_review:failed"] != 1 {
		t.Fatalf("outcomes = %v", metrics.outcomes)
	}
}

func TestClassifyStoresCategoryAndFlagsTask(t *testing.T) {
	task := &models.Task{ID: uuid.New(), Title: "Logo refresh", Status: models.TaskStatusPending}
	tasks := &mockTasks{tasks: map[uuid.UUID]*models.Task{task.ID: task}}
	notifier := &mockNotifier{}
	classifier := &mockClassifier{result: &ai.Classification{
		Category: "logo_design", Flags: []string{"trademark_risk"}, Confidence: 0.91,
	}}

	w := &ClassifyTaskWorker{
		Tasks: tasks, AI: classifier, Notifier: notifier,
		Metrics: &countMetrics{}, Logger: discardLogger(),
	}
	err := w.Work(context.Background(), &river.Job[ClassifyTaskArgs]{Args: ClassifyTaskArgs{TaskID: task.ID}})
	if err != nil {
		t.Fatalf("work: %v", err)
	}
	if tasks.updated == nil || tasks.updated.Category != "logo_design" || !tasks.updated.Flagged {
		t.Fatalf("classification not stored: %+v", tasks.updated)
	}
	if len(notifier.flags) != 1 || notifier.flags[0] != "trademark_risk" {
		t.Fatalf("flags not surfaced: %v", notifier.flags)
	}
}

func TestClassifyErrorIsRetried(t *testing.T) {
	task := &models.Task{ID: uuid.New(), Status: models.TaskStatusPending}
	tasks := &mockTasks{tasks: map[uuid.UUID]*models.Task{task.ID: task}}

	w := &ClassifyTaskWorker{
		Tasks: tasks, AI: &mockClassifier{err: errors.New("model timeout")},
		Notifier: &mockNotifier{}, Metrics: &countMetrics{}, Logger: discardLogger(),
	}
	err := w.Work(context.Background(), &river.Job[ClassifyTaskArgs]{Args: ClassifyTaskArgs{TaskID: task.ID}})
	if err == nil {
		t.Fatal("classifier errors must be returned for retry")
	}
	if tasks.updated != nil {
		t.Fatal("no update on classifier failure")
	}
}
