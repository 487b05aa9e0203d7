// Package jobs holds the River job definitions and workers for everything
// that runs off the request path: Slack notifications, brand scraping, task
// classification, and payout execution.
package jobs

import "github.com/google/uuid"

// ClassifyTaskArgs runs the AI classifier over a freshly created task.
type ClassifyTaskArgs struct {
	TaskID uuid.UUID `json:"task_id"`
}

func (ClassifyTaskArgs) Kind() string { return "classify_task" }

// NotifyReviewArgs posts the Slack review message for a submitted
// deliverable.
type NotifyReviewArgs struct {
	TaskID uuid.UUID `json:"task_id"`
}

func (NotifyReviewArgs) Kind() string { return "notify_review" }

// ScrapeBrandArgs scrapes a pending brand profile.
type ScrapeBrandArgs struct {
	ProfileID uuid.UUID `json:"profile_id"`
}

func (ScrapeBrandArgs) Kind() string { return "scrape_brand" }

// ExecutePayoutArgs runs the Stripe transfer for a requested payout.
type ExecutePayoutArgs struct {
	PayoutID uuid.UUID `json:"payout_id"`
}

func (ExecutePayoutArgs) Kind() string { return "execute_payout" }
