package visit

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/abroroo/medicPro-sub000/internal/domain/isolation"
	"github.com/abroroo/medicPro-sub000/internal/platform/db"
	"github.com/abroroo/medicPro-sub000/pkg/apperrors"
)

// LastVisitProjector maintains the denormalized last-visit columns on a
// patient. It is called inside the transaction of the visit write.
type LastVisitProjector interface {
	RefreshLastVisit(ctx context.Context, clinicID, patientID uuid.UUID) error
}

type Service struct {
	visits    Repository
	notes     NoteRepository
	validator isolation.Validator
	tx        db.TxRunner
	projector LastVisitProjector
	now       func() time.Time
	logger    zerolog.Logger
}

func NewService(visits Repository, notes NoteRepository, validator isolation.Validator, tx db.TxRunner,
	projector LastVisitProjector, logger zerolog.Logger) *Service {
	return &Service{
		visits:    visits,
		notes:     notes,
		validator: validator,
		tx:        tx,
		projector: projector,
		now:       time.Now,
		logger:    logger,
	}
}

// WithClock replaces the time source used for default visit dates.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateVisit validates that the patient and doctor belong to clinicID and
// inserts the visit with status scheduled unless another status is given.
func (s *Service) CreateVisit(ctx context.Context, clinicID uuid.UUID, in CreateInput) (*Visit, error) {
	if in.PatientID == uuid.Nil {
		return nil, apperrors.NewValidationError("patient_id", "patient_id is required")
	}
	if in.DoctorID == uuid.Nil {
		return nil, apperrors.NewValidationError("doctor_id", "doctor_id is required")
	}
	visitType := strings.TrimSpace(in.VisitType)
	if visitType == "" {
		return nil, apperrors.NewValidationError("visit_type", "visit_type is required")
	}
	status := StatusScheduled
	if in.Status != "" {
		st, err := ParseStatus(in.Status)
		if err != nil {
			return nil, err
		}
		status = st
	}

	v := &Visit{
		ClinicID:       clinicID,
		PatientID:      in.PatientID,
		DoctorID:       in.DoctorID,
		VisitDate:      s.now().UTC(),
		VisitType:      visitType,
		ChiefComplaint: strings.TrimSpace(in.ChiefComplaint),
		Notes:          in.Notes,
		Status:         status,
	}
	if in.VisitDate != nil {
		v.VisitDate = in.VisitDate.UTC()
	}

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := isolation.ValidateAll(ctx, s.validator, clinicID,
			isolation.Target{Kind: isolation.KindPatient, ID: v.PatientID},
			isolation.Target{Kind: isolation.KindDoctor, ID: v.DoctorID},
		); err != nil {
			return err
		}
		if err := s.visits.Create(ctx, v); err != nil {
			return err
		}
		return s.projector.RefreshLastVisit(ctx, clinicID, v.PatientID)
	})
	if err != nil {
		return nil, apperrors.Wrap("create visit", err)
	}

	s.logger.Info().Str("clinic_id", clinicID.String()).Str("visit_id", v.ID.String()).
		Str("status", string(v.Status)).Msg("visit created")
	return v, nil
}

// UpdateVisit applies patch to a visit owned by clinicID. Changed patient or
// doctor references are re-validated. A status change must follow the visit
// transition table. While an active queue item owns the visit, neither its
// status nor its patient and doctor references may change.
func (s *Service) UpdateVisit(ctx context.Context, clinicID, id uuid.UUID, p Patch) (*Visit, error) {
	var v *Visit
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		v, err = s.visits.GetByID(ctx, clinicID, id)
		if err != nil {
			return err
		}
		prevPatient := v.PatientID

		patientChanged := p.PatientID != nil && *p.PatientID != v.PatientID
		doctorChanged := p.DoctorID != nil && *p.DoctorID != v.DoctorID
		if patientChanged || doctorChanged {
			if err := s.ensureNotQueued(ctx, clinicID, v.ID); err != nil {
				return err
			}
		}

		if patientChanged {
			if _, err := s.validator.ValidateOwned(ctx, clinicID, isolation.KindPatient, *p.PatientID); err != nil {
				return err
			}
			v.PatientID = *p.PatientID
		}
		if doctorChanged {
			if _, err := s.validator.ValidateOwned(ctx, clinicID, isolation.KindDoctor, *p.DoctorID); err != nil {
				return err
			}
			v.DoctorID = *p.DoctorID
		}
		if p.VisitDate != nil {
			v.VisitDate = p.VisitDate.UTC()
		}
		if p.VisitType != nil {
			vt := strings.TrimSpace(*p.VisitType)
			if vt == "" {
				return apperrors.NewValidationError("visit_type", "visit_type cannot be empty")
			}
			v.VisitType = vt
		}
		if p.ChiefComplaint != nil {
			v.ChiefComplaint = strings.TrimSpace(*p.ChiefComplaint)
		}
		if p.Notes != nil {
			v.Notes = *p.Notes
		}
		if p.Status != nil {
			to, err := ParseStatus(*p.Status)
			if err != nil {
				return err
			}
			if to != v.Status {
				if err := s.ensureNotQueued(ctx, clinicID, v.ID); err != nil {
					return err
				}
				if err := checkTransition(v.Status, to); err != nil {
					return err
				}
				v.Status = to
			}
		}

		if err := s.visits.Update(ctx, v); err != nil {
			return err
		}
		if err := s.projector.RefreshLastVisit(ctx, clinicID, v.PatientID); err != nil {
			return err
		}
		if prevPatient != v.PatientID {
			return s.projector.RefreshLastVisit(ctx, clinicID, prevPatient)
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Wrap("update visit", err)
	}
	return v, nil
}

// DeleteVisit removes a visit owned by clinicID. It returns false when no
// such visit exists.
func (s *Service) DeleteVisit(ctx context.Context, clinicID, id uuid.UUID) (bool, error) {
	var deleted bool
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		v, err := s.visits.GetByID(ctx, clinicID, id)
		if apperrors.IsNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := s.ensureNotQueued(ctx, clinicID, id); err != nil {
			return err
		}
		if deleted, err = s.visits.Delete(ctx, clinicID, id); err != nil {
			return err
		}
		return s.projector.RefreshLastVisit(ctx, clinicID, v.PatientID)
	})
	if err != nil {
		return false, apperrors.Wrap("delete visit", err)
	}
	if deleted {
		s.logger.Info().Str("clinic_id", clinicID.String()).Str("visit_id", id.String()).Msg("visit deleted")
	}
	return deleted, nil
}

func (s *Service) GetVisit(ctx context.Context, clinicID, id uuid.UUID) (*Visit, error) {
	return s.visits.GetByID(ctx, clinicID, id)
}

func (s *Service) ListVisits(ctx context.Context, clinicID uuid.UUID, f ListFilter, limit, offset int) ([]*Visit, int, error) {
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return nil, 0, apperrors.NewValidationError("from", "from must be before to")
	}
	return s.visits.List(ctx, clinicID, f, limit, offset)
}

// SyncStatusFromQueue moves the visit to the status implied by a queue
// transition. It must run inside the queue transaction so both writes commit
// or roll back together.
func (s *Service) SyncStatusFromQueue(ctx context.Context, clinicID, visitID uuid.UUID, to Status) (*Visit, error) {
	var v *Visit
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		v, err = s.visits.GetByID(ctx, clinicID, visitID)
		if err != nil {
			return err
		}
		if v.Status == to {
			return nil
		}
		if err := checkTransition(v.Status, to); err != nil {
			return err
		}
		from := v.Status
		v.Status = to
		if err := s.visits.Update(ctx, v); err != nil {
			return err
		}
		s.logger.Info().Str("clinic_id", clinicID.String()).Str("visit_id", visitID.String()).
			Str("from", string(from)).Str("to", string(to)).Msg("visit status synced from queue")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// ValidateForAdmission checks that an existing visit may be attached to a new
// queue item for patientID.
func (s *Service) ValidateForAdmission(ctx context.Context, clinicID, visitID, patientID uuid.UUID) (*Visit, error) {
	ref, err := s.validator.ValidateOwned(ctx, clinicID, isolation.KindVisit, visitID)
	if err != nil {
		return nil, err
	}
	if ref.PatientID != patientID {
		return nil, apperrors.NewValidationError("visit_id", "visit belongs to a different patient")
	}
	if Status(ref.Status).IsTerminal() {
		return nil, apperrors.NewInvalidStateError("visit is already " + ref.Status)
	}
	queued, err := s.visits.HasActiveQueueItem(ctx, clinicID, visitID)
	if err != nil {
		return nil, err
	}
	if queued {
		return nil, apperrors.NewInvalidStateError("visit is already in the queue")
	}
	return s.visits.GetByID(ctx, clinicID, visitID)
}

func (s *Service) ensureNotQueued(ctx context.Context, clinicID, visitID uuid.UUID) error {
	queued, err := s.visits.HasActiveQueueItem(ctx, clinicID, visitID)
	if err != nil {
		return err
	}
	if queued {
		return apperrors.NewInvalidStateError("visit is managed by its active queue item")
	}
	return nil
}

// -- Clinical Notes --

// CreateClinicalNote attaches a note to a visit. The visit bounds the note's
// clinic; the authoring doctor must belong to the same clinic.
func (s *Service) CreateClinicalNote(ctx context.Context, clinicID, visitID uuid.UUID, in NoteInput) (*ClinicalNote, error) {
	if in.DoctorID == uuid.Nil {
		return nil, apperrors.NewValidationError("doctor_id", "doctor_id is required")
	}
	n := &ClinicalNote{ClinicID: clinicID, VisitID: visitID}
	applyNote(n, in)

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := isolation.ValidateAll(ctx, s.validator, clinicID,
			isolation.Target{Kind: isolation.KindVisit, ID: visitID},
			isolation.Target{Kind: isolation.KindDoctor, ID: in.DoctorID},
		); err != nil {
			return err
		}
		return s.notes.CreateNote(ctx, n)
	})
	if err != nil {
		return nil, apperrors.Wrap("create clinical note", err)
	}
	return n, nil
}

func (s *Service) UpdateClinicalNote(ctx context.Context, clinicID, noteID uuid.UUID, in NoteInput) (*ClinicalNote, error) {
	var n *ClinicalNote
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		n, err = s.notes.GetNote(ctx, clinicID, noteID)
		if err != nil {
			return err
		}
		if in.DoctorID != uuid.Nil && in.DoctorID != n.DoctorID {
			if _, err := s.validator.ValidateOwned(ctx, clinicID, isolation.KindDoctor, in.DoctorID); err != nil {
				return err
			}
		}
		applyNote(n, in)
		return s.notes.UpdateNote(ctx, n)
	})
	if err != nil {
		return nil, apperrors.Wrap("update clinical note", err)
	}
	return n, nil
}

func (s *Service) DeleteClinicalNote(ctx context.Context, clinicID, noteID uuid.UUID) (bool, error) {
	var deleted bool
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		deleted, err = s.notes.DeleteNote(ctx, clinicID, noteID)
		return err
	})
	if err != nil {
		return false, apperrors.Wrap("delete clinical note", err)
	}
	return deleted, nil
}

func (s *Service) GetClinicalNote(ctx context.Context, clinicID, noteID uuid.UUID) (*ClinicalNote, error) {
	return s.notes.GetNote(ctx, clinicID, noteID)
}

func (s *Service) ListClinicalNotes(ctx context.Context, clinicID, visitID uuid.UUID) ([]*ClinicalNote, error) {
	if _, err := s.validator.ValidateOwned(ctx, clinicID, isolation.KindVisit, visitID); err != nil {
		return nil, err
	}
	return s.notes.ListNotes(ctx, clinicID, visitID)
}

func applyNote(n *ClinicalNote, in NoteInput) {
	if in.DoctorID != uuid.Nil {
		n.DoctorID = in.DoctorID
	}
	n.Subjective = in.Subjective
	n.Objective = in.Objective
	n.Assessment = in.Assessment
	n.Plan = in.Plan
	n.Diagnosis = in.Diagnosis
	n.Prescription = in.Prescription
	n.FollowUpRequired = in.FollowUpRequired
	n.FollowUpDate = in.FollowUpDate
	if !n.FollowUpRequired {
		n.FollowUpDate = nil
	}
}
