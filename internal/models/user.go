package models

import (
	"time"

	"github.com/google/uuid"
)

// User roles. Authorization is a straight string comparison against these.
const (
	RoleAdmin      = "ADMIN"
	RoleClient     = "CLIENT"
	RoleFreelancer = "FREELANCER"
)

type User struct {
	ID               uuid.UUID `json:"id"`
	Email            string    `json:"email"`
	PasswordHash     string    `json:"-"`
	DisplayName      string    `json:"display_name"`
	Role             string    `json:"role"`
	CreditBalance    int       `json:"credit_balance"`
	StripeCustomerID string    `json:"-"`
	StripeConnectID  string    `json:"-"`
	ConnectReady     bool      `json:"connect_ready"`
	IsSystemAccount  bool      `json:"is_system_account"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ValidRole reports whether r is a role a user can self-register with.
// Admins are provisioned out of band.
func ValidRole(r string) bool {
	return r == RoleClient || r == RoleFreelancer
}
