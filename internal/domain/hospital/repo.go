package hospital

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ListFilter narrows a hospital listing; Search matches name and email.
type ListFilter struct {
	Status Status
	Search string
}

// Decision records the outcome of a status change on a hospital.
type Decision struct {
	Status    Status
	DecidedBy uuid.UUID
	DecidedAt time.Time
	Reason    *string
}

type Repository interface {
	Create(ctx context.Context, h *Hospital) error
	GetByID(ctx context.Context, id uuid.UUID) (*Hospital, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, d Decision) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Hospital, int, error)
}
