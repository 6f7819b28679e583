package identity

import (
	"context"

	"github.com/google/uuid"
)

// Every method is scoped to a clinic. A row owned by another clinic is
// reported exactly like a missing one.
type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, clinicID, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Search(ctx context.Context, clinicID uuid.UUID, s PatientSearch, limit, offset int) ([]*Patient, int, error)

	// RefreshLastVisit recomputes the last-visit columns from the visit table.
	RefreshLastVisit(ctx context.Context, clinicID, patientID uuid.UUID) error
}

type StaffRepository interface {
	Create(ctx context.Context, s *Staff) error
	GetByID(ctx context.Context, clinicID, id uuid.UUID) (*Staff, error)
	List(ctx context.Context, clinicID uuid.UUID, f StaffFilter, limit, offset int) ([]*Staff, int, error)
	SetActive(ctx context.Context, clinicID, id uuid.UUID, active bool) (bool, error)
}
