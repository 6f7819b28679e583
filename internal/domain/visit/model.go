package visit

import (
	"time"

	"github.com/google/uuid"
)

type Visit struct {
	ID             uuid.UUID `db:"id" json:"id"`
	ClinicID       uuid.UUID `db:"clinic_id" json:"clinic_id"`
	PatientID      uuid.UUID `db:"patient_id" json:"patient_id"`
	DoctorID       uuid.UUID `db:"doctor_id" json:"doctor_id"`
	VisitDate      time.Time `db:"visit_date" json:"visit_date"`
	VisitType      string    `db:"visit_type" json:"visit_type"`
	ChiefComplaint string    `db:"chief_complaint" json:"chief_complaint,omitempty"`
	Notes          string    `db:"notes" json:"notes,omitempty"`
	Status         Status    `db:"status" json:"status"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

type CreateInput struct {
	PatientID      uuid.UUID  `json:"patient_id"`
	DoctorID       uuid.UUID  `json:"doctor_id"`
	VisitDate      *time.Time `json:"visit_date,omitempty"`
	VisitType      string     `json:"visit_type"`
	ChiefComplaint string     `json:"chief_complaint,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	Status         string     `json:"status,omitempty"`
}

// Patch carries the fields of an update. Nil fields are left unchanged.
type Patch struct {
	PatientID      *uuid.UUID `json:"patient_id,omitempty"`
	DoctorID       *uuid.UUID `json:"doctor_id,omitempty"`
	VisitDate      *time.Time `json:"visit_date,omitempty"`
	VisitType      *string    `json:"visit_type,omitempty"`
	ChiefComplaint *string    `json:"chief_complaint,omitempty"`
	Notes          *string    `json:"notes,omitempty"`
	Status         *string    `json:"status,omitempty"`
}

type ListFilter struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	Status    *Status
	From      *time.Time
	To        *time.Time
}

type ClinicalNote struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	ClinicID         uuid.UUID  `db:"clinic_id" json:"clinic_id"`
	VisitID          uuid.UUID  `db:"visit_id" json:"visit_id"`
	DoctorID         uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	Subjective       string     `db:"subjective" json:"subjective,omitempty"`
	Objective        string     `db:"objective" json:"objective,omitempty"`
	Assessment       string     `db:"assessment" json:"assessment,omitempty"`
	Plan             string     `db:"plan" json:"plan,omitempty"`
	Diagnosis        string     `db:"diagnosis" json:"diagnosis,omitempty"`
	Prescription     string     `db:"prescription" json:"prescription,omitempty"`
	FollowUpRequired bool       `db:"follow_up_required" json:"follow_up_required"`
	FollowUpDate     *time.Time `db:"follow_up_date" json:"follow_up_date,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

type NoteInput struct {
	DoctorID         uuid.UUID  `json:"doctor_id"`
	Subjective       string     `json:"subjective"`
	Objective        string     `json:"objective"`
	Assessment       string     `json:"assessment"`
	Plan             string     `json:"plan"`
	Diagnosis        string     `json:"diagnosis"`
	Prescription     string     `json:"prescription"`
	FollowUpRequired bool       `json:"follow_up_required"`
	FollowUpDate     *time.Time `json:"follow_up_date,omitempty"`
}
