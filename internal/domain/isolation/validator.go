// Package isolation confirms that entities referenced by a write belong to
// the calling clinic.
package isolation

import (
	"context"

	"github.com/google/uuid"

	"github.com/abroroo/medicPro-sub000/pkg/apperrors"
)

// Kind names an entity type that can be referenced across tables.
type Kind string

const (
	KindPatient      Kind = "patient"
	KindDoctor       Kind = "doctor"
	KindStaff        Kind = "staff"
	KindVisit        Kind = "visit"
	KindQueueItem    Kind = "queue item"
	KindClinicalNote Kind = "clinical note"
)

// Ref is the owned row resolved by a validation. Only the columns relevant
// to the kind are populated.
type Ref struct {
	Kind      Kind
	ID        uuid.UUID
	ClinicID  uuid.UUID
	PatientID uuid.UUID
	DoctorID  *uuid.UUID
	VisitID   *uuid.UUID
	Status    string
	Role      string
	Active    bool
}

// Validator resolves id within clinicID. Missing rows and rows owned by a
// different clinic produce the same NotFound error. Implementations lock the
// resolved row for the remainder of the surrounding transaction.
type Validator interface {
	ValidateOwned(ctx context.Context, clinicID uuid.UUID, kind Kind, id uuid.UUID) (*Ref, error)
}

// Target is a single reference to check with ValidateAll.
type Target struct {
	Kind Kind
	ID   uuid.UUID
}

// ValidateAll checks every target in order and stops at the first failure.
// Targets with a nil id are skipped.
func ValidateAll(ctx context.Context, v Validator, clinicID uuid.UUID, targets ...Target) error {
	for _, t := range targets {
		if t.ID == uuid.Nil {
			continue
		}
		if _, err := v.ValidateOwned(ctx, clinicID, t.Kind, t.ID); err != nil {
			return err
		}
	}
	return nil
}

// NotFound returns the kind-specific not-found error.
func NotFound(kind Kind) error {
	return apperrors.NewNotFoundError(string(kind))
}

// IsBookableDoctor reports whether a staff row may be referenced as a doctor.
func IsBookableDoctor(role string, active bool) bool {
	return active && (role == "doctor" || role == "head_doctor")
}
