package jobs

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
)

// Enqueuer adapts the River client to the narrow interfaces the handlers
// consume, so no handler package imports River.
type Enqueuer struct {
	Client *river.Client[pgx.Tx]
}

func NewEnqueuer(client *river.Client[pgx.Tx]) *Enqueuer {
	return &Enqueuer{Client: client}
}

func (e *Enqueuer) Classify(ctx context.Context, taskID uuid.UUID) error {
	_, err := e.Client.Insert(ctx, ClassifyTaskArgs{TaskID: taskID}, nil)
	return err
}

func (e *Enqueuer) NotifyReview(ctx context.Context, taskID uuid.UUID) error {
	_, err := e.Client.Insert(ctx, NotifyReviewArgs{TaskID: taskID}, nil)
	return err
}

func (e *Enqueuer) ScrapeBrand(ctx context.Context, profileID uuid.UUID) error {
	_, err := e.Client.Insert(ctx, ScrapeBrandArgs{ProfileID: profileID}, nil)
	return err
}

func (e *Enqueuer) ExecutePayout(ctx context.Context, payoutID uuid.UUID) error {
	_, err := e.Client.Insert(ctx, ExecutePayoutArgs{PayoutID: payoutID}, nil)
	return err
}
