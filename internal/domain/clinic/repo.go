package clinic

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, c *Clinic) error
	GetByOwner(ctx context.Context, ownerID uuid.UUID) (*Clinic, error)
}
