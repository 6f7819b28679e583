package queue

import (
	"github.com/abroroo/medicPro-sub000/internal/domain/visit"
	"github.com/abroroo/medicPro-sub000/pkg/apperrors"
)

type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusServing   Status = "serving"
	StatusCompleted Status = "completed"
	StatusSkipped   Status = "skipped"
	StatusCancelled Status = "cancelled"
)

// AllStatuses lists every status in board order.
var AllStatuses = []Status{StatusWaiting, StatusServing, StatusCompleted, StatusSkipped, StatusCancelled}

var transitions = map[Status][]Status{
	StatusWaiting: {StatusServing, StatusCancelled},
	StatusServing: {StatusCompleted, StatusSkipped, StatusCancelled},
}

// visitCascade maps a terminal queue status to the status its linked visit
// must take in the same transaction.
var visitCascade = map[Status]visit.Status{
	StatusCompleted: visit.StatusCompleted,
	StatusSkipped:   visit.StatusCancelled,
	StatusCancelled: visit.StatusCancelled,
}

func ParseStatus(s string) (Status, error) {
	for _, st := range AllStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", apperrors.NewValidationError("status", "unknown queue status "+s)
}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusSkipped || s == StatusCancelled
}

func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// VisitStatusFor returns the visit status implied by entering to.
func VisitStatusFor(to Status) (visit.Status, bool) {
	vs, ok := visitCascade[to]
	return vs, ok
}
