package identity

import (
	"time"

	"github.com/google/uuid"
)

type Patient struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	ClinicID       uuid.UUID  `db:"clinic_id" json:"clinic_id"`
	FirstName      string     `db:"first_name" json:"first_name"`
	LastName       string     `db:"last_name" json:"last_name"`
	Phone          string     `db:"phone" json:"phone,omitempty"`
	BirthDate      *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Gender         string     `db:"gender" json:"gender,omitempty"`
	Address        string     `db:"address" json:"address,omitempty"`
	BloodType      string     `db:"blood_type" json:"blood_type,omitempty"`
	Allergies      string     `db:"allergies" json:"allergies,omitempty"`
	MedicalHistory string     `db:"medical_history" json:"medical_history,omitempty"`
	Notes          string     `db:"notes" json:"notes,omitempty"`

	// Derived from the patient's most recent visit; never written by clients.
	LastVisitAt   *time.Time `db:"last_visit_at" json:"last_visit_at,omitempty"`
	LastVisitType *string    `db:"last_visit_type" json:"last_visit_type,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func (p *Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

type Staff struct {
	ID             uuid.UUID `db:"id" json:"id"`
	ClinicID       uuid.UUID `db:"clinic_id" json:"clinic_id"`
	FirstName      string    `db:"first_name" json:"first_name"`
	LastName       string    `db:"last_name" json:"last_name"`
	Email          string    `db:"email" json:"email"`
	Phone          string    `db:"phone" json:"phone,omitempty"`
	Role           string    `db:"role" json:"role"`
	Specialization string    `db:"specialization" json:"specialization,omitempty"`
	Active         bool      `db:"active" json:"active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// PatientSearch filters a patient listing. Query matches first name, last
// name or phone case-insensitively.
type PatientSearch struct {
	Query  string
	Phone  string
	Gender string
}

type StaffFilter struct {
	Role   string
	Active *bool
}
