package clinic

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, c *Clinic) error
	GetByID(ctx context.Context, id uuid.UUID) (*Clinic, error)
	List(ctx context.Context, limit, offset int) ([]*Clinic, int, error)
}
