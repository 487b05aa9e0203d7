package models

import (
	"time"

	"github.com/google/uuid"
)

// Payout statuses.
const (
	PayoutStatusRequested  = "requested"
	PayoutStatusProcessing = "processing"
	PayoutStatusPaid       = "paid"
	PayoutStatusFailed     = "failed"
)

// Payout records one freelancer withdrawal. Monetary amounts are in cents;
// GrossCents = NetCents + FeeCents always holds.
type Payout struct {
	ID               uuid.UUID  `json:"id"`
	FreelancerID     uuid.UUID  `json:"freelancer_id"`
	Credits          int        `json:"credits"`
	GrossCents       int64      `json:"gross_cents"`
	NetCents         int64      `json:"net_cents"`
	FeeCents         int64      `json:"fee_cents"`
	Status           string     `json:"status"`
	StripeTransferID string     `json:"stripe_transfer_id,omitempty"`
	FailureReason    string     `json:"failure_reason,omitempty"`
	RequestedAt      time.Time  `json:"requested_at"`
	ProcessedAt      *time.Time `json:"processed_at,omitempty"`
}
