package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/abroroo/medicPro-sub000/internal/domain/visit"
)

// Item is one patient's place in a clinic's queue for a single day.
type Item struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	ClinicID    uuid.UUID  `db:"clinic_id" json:"clinic_id"`
	PatientID   uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID    *uuid.UUID `db:"doctor_id" json:"doctor_id,omitempty"`
	VisitID     *uuid.UUID `db:"visit_id" json:"visit_id,omitempty"`
	QueueNumber int        `db:"queue_number" json:"queue_number"`
	QueueDay    time.Time  `db:"queue_day" json:"queue_day"`
	VisitType   string     `db:"visit_type" json:"visit_type"`
	Status      Status     `db:"status" json:"status"`
	CalledAt    *time.Time `db:"called_at" json:"called_at,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// Entry is a queue item joined with the names shown on the board.
type Entry struct {
	Item
	PatientName  string  `json:"patient_name"`
	PatientPhone string  `json:"patient_phone,omitempty"`
	DoctorName   *string `json:"doctor_name,omitempty"`
	VisitStatus  *string `json:"visit_status,omitempty"`
}

// Event is a row of the queue transition log.
type Event struct {
	ID          uuid.UUID `db:"id" json:"id"`
	ClinicID    uuid.UUID `db:"clinic_id" json:"clinic_id"`
	QueueItemID uuid.UUID `db:"queue_item_id" json:"queue_item_id"`
	FromStatus  string    `db:"from_status" json:"from_status,omitempty"`
	ToStatus    Status    `db:"to_status" json:"to_status"`
	ActorID     string    `db:"actor_id" json:"actor_id,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

type AdmitInput struct {
	PatientID      uuid.UUID  `json:"patient_id"`
	DoctorID       *uuid.UUID `json:"doctor_id,omitempty"`
	VisitID        *uuid.UUID `json:"visit_id,omitempty"`
	VisitType      string     `json:"visit_type,omitempty"`
	VisitDate      *time.Time `json:"visit_date,omitempty"`
	ChiefComplaint string     `json:"chief_complaint,omitempty"`
}

type Admission struct {
	Item  *Item        `json:"queue_item"`
	Visit *visit.Visit `json:"visit,omitempty"`
}

type CallNextResult struct {
	Completed *Item `json:"completed,omitempty"`
	Serving   *Item `json:"serving,omitempty"`
}

type Stats struct {
	Day       string `json:"day"`
	Total     int    `json:"total"`
	Waiting   int    `json:"waiting"`
	Serving   int    `json:"serving"`
	Completed int    `json:"completed"`
	Skipped   int    `json:"skipped"`
	Cancelled int    `json:"cancelled"`
}

// DefaultVisitType labels admissions that do not name one.
const DefaultVisitType = "walk_in"
