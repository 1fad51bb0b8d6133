package referral

import (
	"context"

	"github.com/google/uuid"

	"github.com/carelink/carelink/internal/platform/policy"
)

// ListFilter narrows a scoped referral listing. Search matches the
// clinical narrative and the referral number.
type ListFilter struct {
	Status   Status
	Priority Priority
	Search   string
}

type Repository interface {
	Create(ctx context.Context, r *Referral) error
	GetByID(ctx context.Context, id uuid.UUID) (*Referral, error)
	GetByNumber(ctx context.Context, number string) (*Referral, error)
	// Update persists the non-status fields.
	Update(ctx context.Context, r *Referral) error
	// SetStatus persists the new status and appends the timeline entry
	// in one atomic write.
	SetStatus(ctx context.Context, id uuid.UUID, status Status, entry TimelineEntry) error
	AddMessage(ctx context.Context, id uuid.UUID, m Message) error
	List(ctx context.Context, scope policy.Scope, filter ListFilter, limit, offset int) ([]*Referral, int, error)
}
