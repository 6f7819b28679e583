package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abroroo/medicPro-sub000/internal/platform/db"
	"github.com/abroroo/medicPro-sub000/pkg/apperrors"
)

var dialect = goqu.Dialect("postgres")

// -- Patient Repository --

type patientRepoPG struct {
	pool *pgxpool.Pool
}

func NewPatientRepo(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const patientCols = `id, clinic_id, first_name, last_name, phone, birth_date, gender, address,
	blood_type, allergies, medical_history, notes, last_visit_at, last_visit_type, created_at, updated_at`

var patientColumns = []interface{}{
	"id", "clinic_id", "first_name", "last_name", "phone", "birth_date", "gender", "address",
	"blood_type", "allergies", "medical_history", "notes", "last_visit_at", "last_visit_type", "created_at", "updated_at",
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient (
			id, clinic_id, first_name, last_name, phone, birth_date, gender, address,
			blood_type, allergies, medical_history, notes
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING created_at, updated_at`,
		p.ID, p.ClinicID, p.FirstName, p.LastName, p.Phone, p.BirthDate, p.Gender, p.Address,
		p.BloodType, p.Allergies, p.MedicalHistory, p.Notes,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *patientRepoPG) GetByID(ctx context.Context, clinicID, id uuid.UUID) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient WHERE id = $1 AND clinic_id = $2`, id, clinicID))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperrors.NewNotFoundError("patient")
		}
		return nil, fmt.Errorf("get patient: %w", err)
	}
	return p, nil
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient SET
			first_name=$3, last_name=$4, phone=$5, birth_date=$6, gender=$7, address=$8,
			blood_type=$9, allergies=$10, medical_history=$11, notes=$12, updated_at=now()
		WHERE id = $1 AND clinic_id = $2`,
		p.ID, p.ClinicID, p.FirstName, p.LastName, p.Phone, p.BirthDate, p.Gender, p.Address,
		p.BloodType, p.Allergies, p.MedicalHistory, p.Notes,
	)
	if err != nil {
		return fmt.Errorf("update patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("patient")
	}
	return nil
}

func (r *patientRepoPG) Search(ctx context.Context, clinicID uuid.UUID, s PatientSearch, limit, offset int) ([]*Patient, int, error) {
	ds := dialect.From("patient").Prepared(true).Where(goqu.C("clinic_id").Eq(clinicID))
	if s.Query != "" {
		like := "%" + s.Query + "%"
		ds = ds.Where(goqu.Or(
			goqu.C("first_name").ILike(like),
			goqu.C("last_name").ILike(like),
			goqu.C("phone").ILike(like),
		))
	}
	if s.Phone != "" {
		ds = ds.Where(goqu.C("phone").Eq(s.Phone))
	}
	if s.Gender != "" {
		ds = ds.Where(goqu.C("gender").Eq(s.Gender))
	}

	total, err := count(ctx, r.conn(ctx), ds)
	if err != nil {
		return nil, 0, fmt.Errorf("count patients: %w", err)
	}

	query, args, err := ds.Select(patientColumns...).
		Order(goqu.C("last_name").Asc(), goqu.C("first_name").Asc(), goqu.C("id").Asc()).
		Limit(uint(limit)).Offset(uint(offset)).
		ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build patient search: %w", err)
	}
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search patients: %w", err)
	}
	defer rows.Close()

	var out []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

// A patient without visits gets NULL in both columns because the row
// subquery yields no row.
func (r *patientRepoPG) RefreshLastVisit(ctx context.Context, clinicID, patientID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient SET (last_visit_at, last_visit_type) = (
			SELECT v.visit_date, v.visit_type FROM visit v
			WHERE v.clinic_id = $1 AND v.patient_id = $2
			ORDER BY v.visit_date DESC, v.created_at DESC
			LIMIT 1
		)
		WHERE clinic_id = $1 AND id = $2`,
		clinicID, patientID,
	)
	if err != nil {
		return fmt.Errorf("refresh last visit: %w", err)
	}
	return nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.ClinicID, &p.FirstName, &p.LastName, &p.Phone, &p.BirthDate, &p.Gender, &p.Address,
		&p.BloodType, &p.Allergies, &p.MedicalHistory, &p.Notes, &p.LastVisitAt, &p.LastVisitType,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// -- Staff Repository --

type staffRepoPG struct {
	pool *pgxpool.Pool
}

func NewStaffRepo(pool *pgxpool.Pool) StaffRepository {
	return &staffRepoPG{pool: pool}
}

func (r *staffRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const staffCols = `id, clinic_id, first_name, last_name, email, phone, role, specialization, active, created_at, updated_at`

var staffColumns = []interface{}{
	"id", "clinic_id", "first_name", "last_name", "email", "phone", "role", "specialization", "active", "created_at", "updated_at",
}

func (r *staffRepoPG) Create(ctx context.Context, s *Staff) error {
	s.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO staff (id, clinic_id, first_name, last_name, email, phone, role, specialization, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		s.ID, s.ClinicID, s.FirstName, s.LastName, s.Email, s.Phone, s.Role, s.Specialization, s.Active,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if isUniqueViolation(err, "staff_email_key") {
		return apperrors.NewValidationError("email", "email is already registered in this clinic")
	}
	return err
}

func (r *staffRepoPG) GetByID(ctx context.Context, clinicID, id uuid.UUID) (*Staff, error) {
	s, err := scanStaff(r.conn(ctx).QueryRow(ctx,
		`SELECT `+staffCols+` FROM staff WHERE id = $1 AND clinic_id = $2`, id, clinicID))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperrors.NewNotFoundError("staff")
		}
		return nil, fmt.Errorf("get staff: %w", err)
	}
	return s, nil
}

func (r *staffRepoPG) List(ctx context.Context, clinicID uuid.UUID, f StaffFilter, limit, offset int) ([]*Staff, int, error) {
	ds := dialect.From("staff").Prepared(true).Where(goqu.C("clinic_id").Eq(clinicID))
	if f.Role != "" {
		ds = ds.Where(goqu.C("role").Eq(f.Role))
	}
	if f.Active != nil {
		ds = ds.Where(goqu.C("active").Eq(*f.Active))
	}

	total, err := count(ctx, r.conn(ctx), ds)
	if err != nil {
		return nil, 0, fmt.Errorf("count staff: %w", err)
	}

	query, args, err := ds.Select(staffColumns...).
		Order(goqu.C("last_name").Asc(), goqu.C("first_name").Asc(), goqu.C("id").Asc()).
		Limit(uint(limit)).Offset(uint(offset)).
		ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build staff list: %w", err)
	}
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list staff: %w", err)
	}
	defer rows.Close()

	var out []*Staff
	for rows.Next() {
		s, err := scanStaff(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

func (r *staffRepoPG) SetActive(ctx context.Context, clinicID, id uuid.UUID, active bool) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE staff SET active = $3, updated_at = now() WHERE id = $1 AND clinic_id = $2`,
		id, clinicID, active)
	if err != nil {
		return false, fmt.Errorf("set staff active: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanStaff(row pgx.Row) (*Staff, error) {
	var s Staff
	err := row.Scan(&s.ID, &s.ClinicID, &s.FirstName, &s.LastName, &s.Email, &s.Phone, &s.Role,
		&s.Specialization, &s.Active, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func count(ctx context.Context, q db.Querier, ds *goqu.SelectDataset) (int, error) {
	query, args, err := ds.Select(goqu.COUNT(goqu.Star())).ToSQL()
	if err != nil {
		return 0, err
	}
	var n int
	err = q.QueryRow(ctx, query, args...).Scan(&n)
	return n, err
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}
