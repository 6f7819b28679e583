package identity

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/abroroo/medicPro-sub000/internal/platform/auth"
	"github.com/abroroo/medicPro-sub000/pkg/apperrors"
)

type Service struct {
	patients PatientRepository
	staff    StaffRepository
	logger   zerolog.Logger
}

func NewService(patients PatientRepository, staff StaffRepository, logger zerolog.Logger) *Service {
	return &Service{patients: patients, staff: staff, logger: logger}
}

// -- Patient --

func (s *Service) CreatePatient(ctx context.Context, clinicID uuid.UUID, p *Patient) error {
	p.ClinicID = clinicID
	if err := validatePatient(p); err != nil {
		return err
	}
	p.LastVisitAt, p.LastVisitType = nil, nil
	if err := s.patients.Create(ctx, p); err != nil {
		return apperrors.NewInternalError("create patient", err)
	}
	return nil
}

func (s *Service) GetPatient(ctx context.Context, clinicID, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, clinicID, id)
}

// UpdatePatient writes the editable profile fields and returns the stored row.
// The last-visit columns are left untouched.
func (s *Service) UpdatePatient(ctx context.Context, clinicID uuid.UUID, p *Patient) (*Patient, error) {
	p.ClinicID = clinicID
	if err := validatePatient(p); err != nil {
		return nil, err
	}
	if err := s.patients.Update(ctx, p); err != nil {
		return nil, err
	}
	return s.patients.GetByID(ctx, clinicID, p.ID)
}

func (s *Service) SearchPatients(ctx context.Context, clinicID uuid.UUID, q PatientSearch, limit, offset int) ([]*Patient, int, error) {
	q.Query = strings.TrimSpace(q.Query)
	return s.patients.Search(ctx, clinicID, q, limit, offset)
}

// RefreshLastVisit recomputes the patient's last-visit projection. Callers run
// it in the same transaction as the visit write that changed it.
func (s *Service) RefreshLastVisit(ctx context.Context, clinicID, patientID uuid.UUID) error {
	return s.patients.RefreshLastVisit(ctx, clinicID, patientID)
}

func validatePatient(p *Patient) error {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	if p.FirstName == "" {
		return apperrors.NewValidationError("first_name", "first_name is required")
	}
	if p.LastName == "" {
		return apperrors.NewValidationError("last_name", "last_name is required")
	}
	return nil
}

// -- Staff --

func (s *Service) CreateStaff(ctx context.Context, clinicID uuid.UUID, st *Staff) error {
	st.ClinicID = clinicID
	st.FirstName = strings.TrimSpace(st.FirstName)
	st.LastName = strings.TrimSpace(st.LastName)
	st.Email = strings.ToLower(strings.TrimSpace(st.Email))

	if st.FirstName == "" || st.LastName == "" {
		return apperrors.NewValidationError("name", "first_name and last_name are required")
	}
	if !strings.Contains(st.Email, "@") {
		return apperrors.NewValidationError("email", "a valid email is required")
	}
	if !auth.IsValidRole(st.Role) {
		return apperrors.NewValidationError("role", "unknown role "+st.Role)
	}
	st.Active = true
	if err := s.staff.Create(ctx, st); err != nil {
		if apperrors.IsValidation(err) {
			return err
		}
		return apperrors.NewInternalError("create staff", err)
	}
	s.logger.Info().Str("clinic_id", clinicID.String()).Str("staff_id", st.ID.String()).
		Str("role", st.Role).Msg("staff member created")
	return nil
}

func (s *Service) GetStaff(ctx context.Context, clinicID, id uuid.UUID) (*Staff, error) {
	return s.staff.GetByID(ctx, clinicID, id)
}

func (s *Service) ListStaff(ctx context.Context, clinicID uuid.UUID, f StaffFilter, limit, offset int) ([]*Staff, int, error) {
	if f.Role != "" && !auth.IsValidRole(f.Role) {
		return nil, 0, apperrors.NewValidationError("role", "unknown role "+f.Role)
	}
	return s.staff.List(ctx, clinicID, f, limit, offset)
}

// DeactivateStaff soft-deletes a staff member. Existing visits keep their
// reference; new visits and queue admissions can no longer name them.
func (s *Service) DeactivateStaff(ctx context.Context, clinicID, id uuid.UUID) error {
	ok, err := s.staff.SetActive(ctx, clinicID, id, false)
	if err != nil {
		return apperrors.NewInternalError("deactivate staff", err)
	}
	if !ok {
		return apperrors.NewNotFoundError("staff")
	}
	s.logger.Info().Str("clinic_id", clinicID.String()).Str("staff_id", id.String()).Msg("staff member deactivated")
	return nil
}
