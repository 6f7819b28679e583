package visit

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abroroo/medicPro-sub000/internal/platform/db"
	"github.com/abroroo/medicPro-sub000/pkg/apperrors"
)

var dialect = goqu.Dialect("postgres")

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const visitCols = `id, clinic_id, patient_id, doctor_id, visit_date, visit_type, chief_complaint, notes, status, created_at, updated_at`

var visitColumns = []interface{}{
	"id", "clinic_id", "patient_id", "doctor_id", "visit_date", "visit_type", "chief_complaint", "notes", "status", "created_at", "updated_at",
}

func (r *repoPG) Create(ctx context.Context, v *Visit) error {
	v.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO visit (id, clinic_id, patient_id, doctor_id, visit_date, visit_type, chief_complaint, notes, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		v.ID, v.ClinicID, v.PatientID, v.DoctorID, v.VisitDate, v.VisitType, v.ChiefComplaint, v.Notes, string(v.Status),
	).Scan(&v.CreatedAt, &v.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, clinicID, id uuid.UUID) (*Visit, error) {
	query := `SELECT ` + visitCols + ` FROM visit WHERE id = $1 AND clinic_id = $2`
	if db.TxFromContext(ctx) != nil {
		query += ` FOR UPDATE`
	}
	v, err := scanVisit(r.conn(ctx).QueryRow(ctx, query, id, clinicID))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperrors.NewNotFoundError("visit")
		}
		return nil, fmt.Errorf("get visit: %w", err)
	}
	return v, nil
}

func (r *repoPG) Update(ctx context.Context, v *Visit) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE visit SET
			patient_id=$3, doctor_id=$4, visit_date=$5, visit_type=$6, chief_complaint=$7, notes=$8,
			status=$9, updated_at=now()
		WHERE id = $1 AND clinic_id = $2
		RETURNING updated_at`,
		v.ID, v.ClinicID, v.PatientID, v.DoctorID, v.VisitDate, v.VisitType, v.ChiefComplaint, v.Notes, string(v.Status),
	).Scan(&v.UpdatedAt)
	if db.IsNoRows(err) {
		return apperrors.NewNotFoundError("visit")
	}
	return err
}

func (r *repoPG) Delete(ctx context.Context, clinicID, id uuid.UUID) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM visit WHERE id = $1 AND clinic_id = $2`, id, clinicID)
	if err != nil {
		return false, fmt.Errorf("delete visit: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *repoPG) List(ctx context.Context, clinicID uuid.UUID, f ListFilter, limit, offset int) ([]*Visit, int, error) {
	ds := dialect.From("visit").Prepared(true).Where(goqu.C("clinic_id").Eq(clinicID))
	if f.PatientID != nil {
		ds = ds.Where(goqu.C("patient_id").Eq(*f.PatientID))
	}
	if f.DoctorID != nil {
		ds = ds.Where(goqu.C("doctor_id").Eq(*f.DoctorID))
	}
	if f.Status != nil {
		ds = ds.Where(goqu.C("status").Eq(string(*f.Status)))
	}
	if f.From != nil {
		ds = ds.Where(goqu.C("visit_date").Gte(*f.From))
	}
	if f.To != nil {
		ds = ds.Where(goqu.C("visit_date").Lt(*f.To))
	}

	countSQL, countArgs, err := ds.Select(goqu.COUNT(goqu.Star())).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build visit count: %w", err)
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count visits: %w", err)
	}

	query, args, err := ds.Select(visitColumns...).
		Order(goqu.C("visit_date").Desc(), goqu.C("id").Asc()).
		Limit(uint(limit)).Offset(uint(offset)).
		ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build visit list: %w", err)
	}
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list visits: %w", err)
	}
	defer rows.Close()

	var out []*Visit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, v)
	}
	return out, total, rows.Err()
}

func (r *repoPG) HasActiveQueueItem(ctx context.Context, clinicID, visitID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM queue_item
			WHERE clinic_id = $1 AND visit_id = $2 AND status IN ('waiting', 'serving')
		)`, clinicID, visitID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check queue items for visit: %w", err)
	}
	return exists, nil
}

func scanVisit(row pgx.Row) (*Visit, error) {
	var v Visit
	var status string
	err := row.Scan(&v.ID, &v.ClinicID, &v.PatientID, &v.DoctorID, &v.VisitDate, &v.VisitType,
		&v.ChiefComplaint, &v.Notes, &status, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	v.Status = Status(status)
	return &v, nil
}

// -- Clinical Notes --

type noteRepoPG struct {
	pool *pgxpool.Pool
}

func NewNoteRepo(pool *pgxpool.Pool) NoteRepository {
	return &noteRepoPG{pool: pool}
}

func (r *noteRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const noteCols = `id, clinic_id, visit_id, doctor_id, subjective, objective, assessment, plan, diagnosis,
	prescription, follow_up_required, follow_up_date, created_at, updated_at`

func (r *noteRepoPG) CreateNote(ctx context.Context, n *ClinicalNote) error {
	n.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO clinical_note (
			id, clinic_id, visit_id, doctor_id, subjective, objective, assessment, plan, diagnosis,
			prescription, follow_up_required, follow_up_date
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING created_at, updated_at`,
		n.ID, n.ClinicID, n.VisitID, n.DoctorID, n.Subjective, n.Objective, n.Assessment, n.Plan, n.Diagnosis,
		n.Prescription, n.FollowUpRequired, n.FollowUpDate,
	).Scan(&n.CreatedAt, &n.UpdatedAt)
}

func (r *noteRepoPG) GetNote(ctx context.Context, clinicID, id uuid.UUID) (*ClinicalNote, error) {
	n, err := scanNote(r.conn(ctx).QueryRow(ctx,
		`SELECT `+noteCols+` FROM clinical_note WHERE id = $1 AND clinic_id = $2`, id, clinicID))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperrors.NewNotFoundError("clinical note")
		}
		return nil, fmt.Errorf("get clinical note: %w", err)
	}
	return n, nil
}

func (r *noteRepoPG) UpdateNote(ctx context.Context, n *ClinicalNote) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE clinical_note SET
			doctor_id=$3, subjective=$4, objective=$5, assessment=$6, plan=$7, diagnosis=$8,
			prescription=$9, follow_up_required=$10, follow_up_date=$11, updated_at=now()
		WHERE id = $1 AND clinic_id = $2
		RETURNING updated_at`,
		n.ID, n.ClinicID, n.DoctorID, n.Subjective, n.Objective, n.Assessment, n.Plan, n.Diagnosis,
		n.Prescription, n.FollowUpRequired, n.FollowUpDate,
	).Scan(&n.UpdatedAt)
	if db.IsNoRows(err) {
		return apperrors.NewNotFoundError("clinical note")
	}
	return err
}

func (r *noteRepoPG) DeleteNote(ctx context.Context, clinicID, id uuid.UUID) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM clinical_note WHERE id = $1 AND clinic_id = $2`, id, clinicID)
	if err != nil {
		return false, fmt.Errorf("delete clinical note: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *noteRepoPG) ListNotes(ctx context.Context, clinicID, visitID uuid.UUID) ([]*ClinicalNote, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+noteCols+` FROM clinical_note WHERE clinic_id = $1 AND visit_id = $2 ORDER BY created_at, id`,
		clinicID, visitID)
	if err != nil {
		return nil, fmt.Errorf("list clinical notes: %w", err)
	}
	defer rows.Close()

	var out []*ClinicalNote
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func scanNote(row pgx.Row) (*ClinicalNote, error) {
	var n ClinicalNote
	err := row.Scan(&n.ID, &n.ClinicID, &n.VisitID, &n.DoctorID, &n.Subjective, &n.Objective, &n.Assessment,
		&n.Plan, &n.Diagnosis, &n.Prescription, &n.FollowUpRequired, &n.FollowUpDate, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}
