package account

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/carelink/carelink/internal/platform/policy"
)

// ListFilter narrows a scoped account listing. Zero values mean no
// filter; Search matches name and email.
type ListFilter struct {
	Role           policy.Role
	ApprovalStatus policy.ApprovalStatus
	HospitalID     *uuid.UUID
	Search         string
}

// Decision records the outcome of an approve or reject call.
type Decision struct {
	Status    policy.ApprovalStatus
	DecidedBy uuid.UUID
	DecidedAt time.Time
	Reason    *string
}

type Repository interface {
	Create(ctx context.Context, a *Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	// GetPendingAdminByEmail finds a pending hospital-admin account with
	// the given email, for the hospital-approval cascade.
	GetPendingAdminByEmail(ctx context.Context, email string) (*Account, error)
	UpdateApproval(ctx context.Context, id uuid.UUID, d Decision) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	SetClinic(ctx context.Context, id, clinicID uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, scope policy.Scope, filter ListFilter, limit, offset int) ([]*Account, int, error)
	// FirstApprovedDoctor returns the earliest-created approved and
	// active doctor at the hospital, or NotFound when none exists.
	FirstApprovedDoctor(ctx context.Context, hospitalID uuid.UUID) (*Account, error)
}
