package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/crafted/backend/internal/models"
)

// Verdict errors, distinguishable so callers can phrase their own replies.
var (
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrRevisionLimit     = errors.New("revision limit reached")
)

// AdminApprove completes the task and settles the freelancer's earning. It
// backs the ops approval surface, where the actor is the admin team rather
// than an HTTP caller.
func (h *Handler) AdminApprove(ctx context.Context, taskID uuid.UUID) (*models.Task, error) {
	tx, err := h.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	task, err := h.Tasks.GetByIDForUpdate(ctx, tx, taskID)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(task.Status, models.TaskStatusCompleted) {
		return nil, fmt.Errorf("%w: %s -> completed", ErrIllegalTransition, task.Status)
	}
	if task.FreelancerID == nil {
		return nil, errors.New("no freelancer assigned")
	}
	if err := h.Ledger.SettleEarning(ctx, tx, *task.FreelancerID, task.ID, task.CreditsRequired); err != nil {
		return nil, err
	}

	task.Status = models.TaskStatusCompleted
	if err := h.Tasks.UpdateTx(ctx, tx, task); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	h.Logger.Info("task approved by admin", "task_id", task.ID)
	return task, nil
}

// AdminRequestRevision sends the task back to the freelancer, consuming one
// revision from the budget.
func (h *Handler) AdminRequestRevision(ctx context.Context, taskID uuid.UUID) (*models.Task, error) {
	tx, err := h.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	task, err := h.Tasks.GetByIDForUpdate(ctx, tx, taskID)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(task.Status, models.TaskStatusRevisionRequested) {
		return nil, fmt.Errorf("%w: %s -> revision_requested", ErrIllegalTransition, task.Status)
	}
	if task.RevisionsUsed >= task.MaxRevisions {
		return nil, ErrRevisionLimit
	}

	task.RevisionsUsed++
	task.Status = models.TaskStatusRevisionRequested
	if err := h.Tasks.UpdateTx(ctx, tx, task); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	h.Logger.Info("revision requested by admin", "task_id", task.ID, "revisions_used", task.RevisionsUsed)
	return task, nil
}
