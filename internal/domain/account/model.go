// Package account implements user accounts and the approval state
// machine that gates doctors and hospital admins into the system.
package account

import (
	"time"

	"github.com/google/uuid"

	"github.com/carelink/carelink/internal/platform/policy"
)

// Account is a user of the system. Role is fixed at creation and never
// changes. A doctor is affiliated with exactly one of HospitalID or
// ClinicID once onboarding completes.
type Account struct {
	ID              uuid.UUID             `json:"id"`
	Name            string                `json:"name"`
	Email           string                `json:"email"`
	PasswordHash    string                `json:"-"`
	Role            policy.Role           `json:"role"`
	ApprovalStatus  policy.ApprovalStatus `json:"approval_status"`
	IsActive        bool                  `json:"is_active"`
	HospitalID      *uuid.UUID            `json:"hospital_id,omitempty"`
	ClinicID        *uuid.UUID            `json:"clinic_id,omitempty"`
	PracticeType    policy.PracticeType   `json:"practice_type,omitempty"`
	Specialty       string                `json:"specialty,omitempty"`
	Phone           string                `json:"phone,omitempty"`
	RejectionReason *string               `json:"rejection_reason,omitempty"`
	ApprovedBy      *uuid.UUID            `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time            `json:"approved_at,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// Ref projects the account into the slice the policy package decides on.
func (a *Account) Ref() policy.AccountRef {
	return policy.AccountRef{
		ID:             a.ID,
		Role:           a.Role,
		HospitalID:     a.HospitalID,
		ApprovalStatus: a.ApprovalStatus,
		PracticeType:   a.PracticeType,
	}
}
