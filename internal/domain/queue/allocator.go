package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CounterStore increments the per-(clinic, day) counter row and returns the
// new value. The first call for a day returns 1.
type CounterStore interface {
	IncrementCounter(ctx context.Context, clinicID uuid.UUID, day time.Time) (int, error)
}

// Allocator hands out daily queue numbers. Days are calendar days in a single
// reference location shared by the whole deployment.
type Allocator struct {
	store CounterStore
	loc   *time.Location
}

func NewAllocator(store CounterStore, loc *time.Location) *Allocator {
	if loc == nil {
		loc = time.UTC
	}
	return &Allocator{store: store, loc: loc}
}

// Day returns the queue day containing asOf as midnight UTC of that date,
// which is how DATE values round-trip through the driver.
func (a *Allocator) Day(asOf time.Time) time.Time {
	y, m, d := asOf.In(a.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (a *Allocator) Location() *time.Location {
	return a.loc
}

// NextNumber must run in the same transaction as the insert of the item that
// receives the number, so a rolled back admission leaves no gap.
func (a *Allocator) NextNumber(ctx context.Context, clinicID uuid.UUID, asOf time.Time) (int, error) {
	n, err := a.store.IncrementCounter(ctx, clinicID, a.Day(asOf))
	if err != nil {
		return 0, fmt.Errorf("allocate queue number: %w", err)
	}
	return n, nil
}
