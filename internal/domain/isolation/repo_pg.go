package isolation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abroroo/medicPro-sub000/internal/platform/db"
)

type validatorPG struct {
	pool *pgxpool.Pool
}

func NewValidator(pool *pgxpool.Pool) Validator {
	return &validatorPG{pool: pool}
}

// Each lookup filters by id and clinic_id in one statement so a foreign id
// never resolves, and takes a share lock that holds until the caller's
// transaction ends.
const (
	patientLookup = `SELECT id, clinic_id FROM patient WHERE id = $1 AND clinic_id = $2 FOR SHARE`
	staffLookup   = `SELECT id, clinic_id, role, active FROM staff WHERE id = $1 AND clinic_id = $2 FOR SHARE`
	doctorLookup  = `SELECT id, clinic_id, role, active FROM staff
		WHERE id = $1 AND clinic_id = $2 AND role IN ('doctor', 'head_doctor') AND active
		FOR SHARE`
	visitLookup = `SELECT id, clinic_id, patient_id, doctor_id, status FROM visit
		WHERE id = $1 AND clinic_id = $2 FOR SHARE`
	queueItemLookup = `SELECT id, clinic_id, patient_id, doctor_id, visit_id, status FROM queue_item
		WHERE id = $1 AND clinic_id = $2 FOR SHARE`
	noteLookup = `SELECT id, clinic_id, visit_id, doctor_id FROM clinical_note
		WHERE id = $1 AND clinic_id = $2 FOR SHARE`
)

func (v *validatorPG) ValidateOwned(ctx context.Context, clinicID uuid.UUID, kind Kind, id uuid.UUID) (*Ref, error) {
	if id == uuid.Nil || clinicID == uuid.Nil {
		return nil, NotFound(kind)
	}
	q := db.Conn(ctx, v.pool)
	ref := &Ref{Kind: kind}

	var err error
	switch kind {
	case KindPatient:
		err = q.QueryRow(ctx, patientLookup, id, clinicID).Scan(&ref.ID, &ref.ClinicID)
		ref.PatientID = ref.ID
	case KindStaff:
		err = q.QueryRow(ctx, staffLookup, id, clinicID).Scan(&ref.ID, &ref.ClinicID, &ref.Role, &ref.Active)
	case KindDoctor:
		err = q.QueryRow(ctx, doctorLookup, id, clinicID).Scan(&ref.ID, &ref.ClinicID, &ref.Role, &ref.Active)
	case KindVisit:
		var doctorID uuid.UUID
		err = q.QueryRow(ctx, visitLookup, id, clinicID).Scan(&ref.ID, &ref.ClinicID, &ref.PatientID, &doctorID, &ref.Status)
		ref.DoctorID = &doctorID
	case KindQueueItem:
		err = q.QueryRow(ctx, queueItemLookup, id, clinicID).Scan(
			&ref.ID, &ref.ClinicID, &ref.PatientID, &ref.DoctorID, &ref.VisitID, &ref.Status)
	case KindClinicalNote:
		var doctorID uuid.UUID
		err = q.QueryRow(ctx, noteLookup, id, clinicID).Scan(&ref.ID, &ref.ClinicID, &ref.VisitID, &doctorID)
		ref.DoctorID = &doctorID
	default:
		return nil, fmt.Errorf("isolation: unknown kind %q", kind)
	}
	if err != nil {
		if db.IsNoRows(err) {
			return nil, NotFound(kind)
		}
		return nil, fmt.Errorf("validate %s ownership: %w", kind, err)
	}
	return ref, nil
}
