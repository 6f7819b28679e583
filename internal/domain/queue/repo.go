package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	CounterStore

	Create(ctx context.Context, it *Item) error
	// GetForUpdate loads and locks an item owned by clinicID.
	GetForUpdate(ctx context.Context, clinicID, id uuid.UUID) (*Item, error)
	UpdateStatus(ctx context.Context, it *Item) error

	// FindServing and NextWaiting return nil without error when no item matches.
	// FindServing ignores the queue day: a clinic serves one patient at a time.
	FindServing(ctx context.Context, clinicID uuid.UUID) (*Item, error)
	NextWaiting(ctx context.Context, clinicID uuid.UUID, day time.Time) (*Item, error)

	ListDay(ctx context.Context, clinicID uuid.UUID, day time.Time) ([]*Entry, error)
	CountByStatus(ctx context.Context, clinicID uuid.UUID, day time.Time) (map[Status]int, error)

	AddEvent(ctx context.Context, e *Event) error
	ListEvents(ctx context.Context, clinicID, itemID uuid.UUID) ([]*Event, error)
}
