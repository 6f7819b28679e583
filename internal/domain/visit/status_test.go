package visit

import (
	"testing"

	"github.com/abroroo/medicPro-sub000/pkg/apperrors"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusScheduled, StatusInProgress, true},
		{StatusScheduled, StatusCompleted, true},
		{StatusScheduled, StatusCancelled, true},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusCancelled, true},
		{StatusInProgress, StatusScheduled, false},
		{StatusCompleted, StatusScheduled, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusInProgress, false},
		{StatusCompleted, StatusCompleted, true},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestCheckTransition(t *testing.T) {
	if err := checkTransition(StatusScheduled, StatusCompleted); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	err := checkTransition(StatusCancelled, StatusScheduled)
	if !apperrors.IsInvalidTransition(err) {
		t.Errorf("expected invalid transition, got %v", err)
	}
}

func TestParseStatus(t *testing.T) {
	for _, s := range []string{"scheduled", "in_progress", "completed", "cancelled"} {
		if _, err := ParseStatus(s); err != nil {
			t.Errorf("ParseStatus(%q): %v", s, err)
		}
	}
	if _, err := ParseStatus("done"); !apperrors.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}
