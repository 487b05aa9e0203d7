package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/crafted/backend/internal/ai"
	"github.com/crafted/backend/internal/models"
)

// TaskStore is the task access the workers need.
type TaskStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	Update(ctx context.Context, t *models.Task) error
}

// UserStore resolves users for notifications and transfers.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Notifier is the Slack surface the workers post to.
type Notifier interface {
	TaskReadyForReview(ctx context.Context, task *models.Task, freelancer *models.User) error
	TaskFlagged(ctx context.Context, task *models.Task, flags []string) error
	PayoutRequested(ctx context.Context, payout *models.Payout, freelancer *models.User) error
}

// Classifier is the AI client surface.
type Classifier interface {
	ClassifyTask(ctx context.Context, title, description string) (*ai.Classification, error)
}

// BrandScraper runs one scrape attempt.
type BrandScraper interface {
	Scrape(ctx context.Context, profileID uuid.UUID) error
}

// PayoutStore reads payout rows and claims them for processing.
type PayoutStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Payout, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) (bool, error)
}

// PayoutSettler finalizes a payout one way or the other.
type PayoutSettler interface {
	MarkPaid(ctx context.Context, payoutID uuid.UUID, transferID string) error
	MarkFailed(ctx context.Context, payoutID uuid.UUID, reason string) error
}

// TransferClient sends the Stripe transfer.
type TransferClient interface {
	Transfer(ctx context.Context, connectID string, netCents int64, payoutID uuid.UUID) (string, error)
}

// JobMetrics counts job outcomes.
type JobMetrics interface {
	RecordJob(kind, outcome string)
}

// --- notify_review ---

// NotifyReviewWorker posts the review message with the approve / revision
// buttons. Sends are best-effort: a Slack failure is logged and the job
// completes, because notifications must never gate the lifecycle.
type NotifyReviewWorker struct {
	river.WorkerDefaults[NotifyReviewArgs]
	Tasks    TaskStore
	Users    UserStore
	Notifier Notifier
	Metrics  JobMetrics
	Logger   *slog.Logger
}

func (w *NotifyReviewWorker) Work(ctx context.Context, job *river.Job[NotifyReviewArgs]) error {
	task, err := w.Tasks.GetByID(ctx, job.Args.TaskID)
	if err != nil {
		return fmt.Errorf("load task: %w", err)
	}
	// The task may have moved on between enqueue and run.
	if !models.ReviewStatuses[task.Status] {
		w.Logger.Info("review notification skipped, task moved on", "task_id", task.ID, "status", task.Status)
		w.Metrics.RecordJob("notify_review", "skipped")
		return nil
	}
	if task.FreelancerID == nil {
		w.Metrics.RecordJob("notify_review", "skipped")
		return nil
	}
	freelancer, err := w.Users.GetByID(ctx, *task.FreelancerID)
	if err != nil {
		return fmt.Errorf("load freelancer: %w", err)
	}

	if err := w.Notifier.TaskReadyForReview(ctx, task, freelancer); err != nil {
		w.Logger.Warn("slack review notification failed", "task_id", task.ID, "error", err)
		w.Metrics.RecordJob("notify_review", "failed")
		return nil
	}
	w.Metrics.RecordJob("notify_review", "ok")
	return nil
}

// --- classify_task ---

// ClassifyTaskWorker runs the AI classifier and stores the category. A
// flagged task is surfaced to admins but never blocked here.
type ClassifyTaskWorker struct {
	river.WorkerDefaults[ClassifyTaskArgs]
	Tasks    TaskStore
	AI       Classifier
	Notifier Notifier
	Metrics  JobMetrics
	Logger   *slog.Logger
}

func (w *ClassifyTaskWorker) Work(ctx context.Context, job *river.Job[ClassifyTaskArgs]) error {
	task, err := w.Tasks.GetByID(ctx, job.Args.TaskID)
	if err != nil {
		return fmt.Errorf("load task: %w", err)
	}

	result, err := w.AI.ClassifyTask(ctx, task.Title, task.Description)
	if err != nil {
		w.Metrics.RecordJob("classify_task", "failed")
		// Returning the error lets the queue retry; the task itself is
		// unaffected either way.
		return fmt.Errorf("classify task %s: %w", task.ID, err)
	}

	task.Category = result.Category
	task.Flagged = result.Flagged()
	if err := w.Tasks.Update(ctx, task); err != nil {
		return fmt.Errorf("store classification: %w", err)
	}

	if task.Flagged {
		if err := w.Notifier.TaskFlagged(ctx, task, result.Flags); err != nil {
			w.Logger.Warn("slack flag notification failed", "task_id", task.ID, "error", err)
		}
	}
	w.Metrics.RecordJob("classify_task", "ok")
	return nil
}

// --- scrape_brand ---

type ScrapeBrandWorker struct {
	river.WorkerDefaults[ScrapeBrandArgs]
	Scraper BrandScraper
	Metrics JobMetrics
}

func (w *ScrapeBrandWorker) Work(ctx context.Context, job *river.Job[ScrapeBrandArgs]) error {
	if err := w.Scraper.Scrape(ctx, job.Args.ProfileID); err != nil {
		w.Metrics.RecordJob("scrape_brand", "failed")
		return err
	}
	w.Metrics.RecordJob("scrape_brand", "ok")
	return nil
}

// --- execute_payout ---

// ExecutePayoutWorker claims the payout, runs the Stripe transfer, and
// finalizes the row. The claim re-takes payouts stranded in processing by an
// earlier crashed run; re-running the transfer is safe because the payout ID
// doubles as Stripe's idempotency key. Only finalized payouts are skipped.
type ExecutePayoutWorker struct {
	river.WorkerDefaults[ExecutePayoutArgs]
	Payouts  PayoutStore
	Settler  PayoutSettler
	Users    UserStore
	Stripe   TransferClient
	Notifier Notifier
	Metrics  JobMetrics
	Logger   *slog.Logger
}

func (w *ExecutePayoutWorker) Work(ctx context.Context, job *river.Job[ExecutePayoutArgs]) error {
	payout, err := w.Payouts.GetByID(ctx, job.Args.PayoutID)
	if err != nil {
		return fmt.Errorf("load payout: %w", err)
	}

	claimed, err := w.Payouts.MarkProcessing(ctx, payout.ID)
	if err != nil {
		return fmt.Errorf("claim payout: %w", err)
	}
	if !claimed {
		w.Logger.Info("payout already finalized", "payout_id", payout.ID, "status", payout.Status)
		w.Metrics.RecordJob("execute_payout", "skipped")
		return nil
	}

	freelancer, err := w.Users.GetByID(ctx, payout.FreelancerID)
	if err != nil {
		return fmt.Errorf("load freelancer: %w", err)
	}

	if err := w.Notifier.PayoutRequested(ctx, payout, freelancer); err != nil {
		w.Logger.Warn("slack payout notification failed", "payout_id", payout.ID, "error", err)
	}

	if freelancer.StripeConnectID == "" || !freelancer.ConnectReady {
		w.Metrics.RecordJob("execute_payout", "failed")
		return w.Settler.MarkFailed(ctx, payout.ID, "freelancer has no payable Connect account")
	}

	transferID, err := w.Stripe.Transfer(ctx, freelancer.StripeConnectID, payout.NetCents, payout.ID)
	if err != nil {
		w.Logger.Error("stripe transfer failed", "payout_id", payout.ID, "error", err)
		w.Metrics.RecordJob("execute_payout", "failed")
		return w.Settler.MarkFailed(ctx, payout.ID, err.Error())
	}

	if err := w.Settler.MarkPaid(ctx, payout.ID, transferID); err != nil {
		return fmt.Errorf("mark payout paid: %w", err)
	}
	w.Logger.Info("payout paid", "payout_id", payout.ID, "transfer_id", transferID, "net_cents", payout.NetCents)
	w.Metrics.RecordJob("execute_payout", "ok")
	return nil
}

// AddWorkers registers every worker on the River registry.
func AddWorkers(workers *river.Workers, notify *NotifyReviewWorker, classify *ClassifyTaskWorker, scrape *ScrapeBrandWorker, payout *ExecutePayoutWorker) {
	river.AddWorker(workers, notify)
	river.AddWorker(workers, classify)
	river.AddWorker(workers, scrape)
	river.AddWorker(workers, payout)
}
