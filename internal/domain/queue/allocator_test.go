package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type counterStub struct {
	days  []time.Time
	count map[string]int
	err   error
}

func (c *counterStub) IncrementCounter(_ context.Context, clinicID uuid.UUID, day time.Time) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	if c.count == nil {
		c.count = map[string]int{}
	}
	c.days = append(c.days, day)
	key := clinicID.String() + day.Format("2006-01-02")
	c.count[key]++
	return c.count[key], nil
}

func TestAllocator_DayUsesReferenceLocation(t *testing.T) {
	tashkent := time.FixedZone("UZT", 5*60*60)
	a := NewAllocator(&counterStub{}, tashkent)

	// 21:30 UTC on the 14th is already the 15th in Tashkent.
	got := a.Day(time.Date(2026, 3, 14, 21, 30, 0, 0, time.UTC))
	want := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("expected %s, got %s", want, got)
	}
	if got.Location() != time.UTC {
		t.Errorf("day must be normalized to UTC, got %s", got.Location())
	}
}

func TestAllocator_NilLocationDefaultsToUTC(t *testing.T) {
	a := NewAllocator(&counterStub{}, nil)
	if a.Location() != time.UTC {
		t.Errorf("expected UTC, got %s", a.Location())
	}
}

func TestAllocator_NextNumber(t *testing.T) {
	store := &counterStub{}
	a := NewAllocator(store, time.UTC)
	clinicA, clinicB := uuid.New(), uuid.New()
	morning := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		n, err := a.NextNumber(ctx, clinicA, morning.Add(time.Duration(want)*time.Hour))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != want {
			t.Errorf("expected %d, got %d", want, n)
		}
	}
	if n, _ := a.NextNumber(ctx, clinicB, morning); n != 1 {
		t.Errorf("other clinic must start at 1, got %d", n)
	}
	if n, _ := a.NextNumber(ctx, clinicA, morning.AddDate(0, 0, 1)); n != 1 {
		t.Errorf("next day must start at 1, got %d", n)
	}
	for _, d := range store.days {
		if d.Hour() != 0 || d.Minute() != 0 {
			t.Errorf("counter keyed by non-midnight time %s", d)
		}
	}
}

func TestAllocator_NextNumberError(t *testing.T) {
	cause := errors.New("connection reset")
	a := NewAllocator(&counterStub{err: cause}, time.UTC)
	_, err := a.NextNumber(context.Background(), uuid.New(), time.Now())
	if !errors.Is(err, cause) {
		t.Errorf("expected wrapped cause, got %v", err)
	}
}
