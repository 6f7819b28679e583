package visit

import "github.com/abroroo/medicPro-sub000/pkg/apperrors"

type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusScheduled:  {StatusInProgress, StatusCompleted, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

// ParseStatus validates a client-supplied status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled:
		return st, nil
	}
	return "", apperrors.NewValidationError("status", "unknown visit status "+s)
}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransition reports whether from may move to to. Staying in the same
// status is always allowed and is a no-op for callers.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func checkTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return apperrors.NewInvalidTransitionError("visit", string(from), string(to))
	}
	return nil
}
