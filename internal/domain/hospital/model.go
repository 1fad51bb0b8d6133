// Package hospital implements hospital registration and the
// super-admin approval machine, including the cascade that approves a
// matching pending admin account together with the hospital.
package hospital

import (
	"time"

	"github.com/google/uuid"
)

// Status is the hospital lifecycle state. Suspension is reversible;
// approval and rejection of a pending hospital are terminal decisions.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusSuspended Status = "suspended"
)

func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusSuspended:
		return true
	}
	return false
}

type Hospital struct {
	ID              uuid.UUID  `json:"id"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	Status          Status     `json:"status"`
	Address         string     `json:"address,omitempty"`
	Phone           string     `json:"phone,omitempty"`
	Specialty       string     `json:"specialty,omitempty"`
	Capacity        int        `json:"capacity,omitempty"`
	RejectionReason *string    `json:"rejection_reason,omitempty"`
	ApprovedBy      *uuid.UUID `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
