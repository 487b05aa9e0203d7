package models

import (
	"time"

	"github.com/google/uuid"
)

// Task status lifecycle.
const (
	TaskStatusPending            = "pending"
	TaskStatusAssigned           = "assigned"
	TaskStatusInProgress         = "in_progress"
	TaskStatusInReview           = "in_review"
	TaskStatusPendingAdminReview = "pending_admin_review"
	TaskStatusRevisionRequested  = "revision_requested"
	TaskStatusCompleted          = "completed"
	TaskStatusCancelled          = "cancelled"
)

// Credit bounds for a single task.
const (
	MinTaskCredits = 1
	MaxTaskCredits = 100
)

// DefaultMaxRevisions is applied when a task is created without an explicit
// revision budget.
const DefaultMaxRevisions = 2

type Task struct {
	ID              uuid.UUID  `json:"id"`
	ClientID        uuid.UUID  `json:"client_id"`
	FreelancerID    *uuid.UUID `json:"freelancer_id,omitempty"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Status          string     `json:"status"`
	CreditsRequired int        `json:"credits_required"`
	RevisionsUsed   int        `json:"revisions_used"`
	MaxRevisions    int        `json:"max_revisions"`
	Deadline        *time.Time `json:"deadline,omitempty"`
	BrandProfileID  *uuid.UUID `json:"brand_profile_id,omitempty"`
	Category        string     `json:"category,omitempty"`
	Flagged         bool       `json:"flagged"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// taskTransitions is the single source of truth for legal status changes.
// Every handler (REST and Slack interaction alike) consults this table; no
// handler carries its own allow-list.
var taskTransitions = map[string][]string{
	TaskStatusPending:            {TaskStatusAssigned, TaskStatusCancelled},
	TaskStatusAssigned:           {TaskStatusInProgress, TaskStatusInReview, TaskStatusPendingAdminReview, TaskStatusCancelled},
	TaskStatusInProgress:         {TaskStatusInReview, TaskStatusPendingAdminReview, TaskStatusCancelled},
	TaskStatusInReview:           {TaskStatusRevisionRequested, TaskStatusCompleted, TaskStatusCancelled},
	TaskStatusPendingAdminReview: {TaskStatusRevisionRequested, TaskStatusInReview, TaskStatusCompleted, TaskStatusCancelled},
	TaskStatusRevisionRequested:  {TaskStatusInReview, TaskStatusPendingAdminReview, TaskStatusCancelled},
	TaskStatusCompleted:          {},
	TaskStatusCancelled:          {},
}

// CanTransition reports whether a task may move from one status to another.
func CanTransition(from, to string) bool {
	for _, next := range taskTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// SubmittableStatuses are the states a freelancer may submit a deliverable
// from.
var SubmittableStatuses = map[string]bool{
	TaskStatusAssigned:          true,
	TaskStatusInProgress:        true,
	TaskStatusRevisionRequested: true,
}

// ReviewStatuses are the states a review verdict (approve / request revision)
// applies to.
var ReviewStatuses = map[string]bool{
	TaskStatusInReview:           true,
	TaskStatusPendingAdminReview: true,
}

// IsTerminal reports whether a status admits no further transitions.
func IsTerminal(status string) bool {
	return len(taskTransitions[status]) == 0
}

// KnownStatus reports whether status is part of the lifecycle at all.
func KnownStatus(status string) bool {
	_, ok := taskTransitions[status]
	return ok
}
