package visit

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, v *Visit) error
	// GetByID locks the row when called inside a transaction.
	GetByID(ctx context.Context, clinicID, id uuid.UUID) (*Visit, error)
	Update(ctx context.Context, v *Visit) error
	Delete(ctx context.Context, clinicID, id uuid.UUID) (bool, error)
	List(ctx context.Context, clinicID uuid.UUID, f ListFilter, limit, offset int) ([]*Visit, int, error)

	// HasActiveQueueItem reports whether a waiting or serving queue item
	// references the visit.
	HasActiveQueueItem(ctx context.Context, clinicID, visitID uuid.UUID) (bool, error)
}

type NoteRepository interface {
	CreateNote(ctx context.Context, n *ClinicalNote) error
	GetNote(ctx context.Context, clinicID, id uuid.UUID) (*ClinicalNote, error)
	UpdateNote(ctx context.Context, n *ClinicalNote) error
	DeleteNote(ctx context.Context, clinicID, id uuid.UUID) (bool, error)
	ListNotes(ctx context.Context, clinicID, visitID uuid.UUID) ([]*ClinicalNote, error)
}
