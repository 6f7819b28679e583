package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abroroo/medicPro-sub000/internal/domain/isolation"
	"github.com/abroroo/medicPro-sub000/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const itemCols = `q.id, q.clinic_id, q.patient_id, q.doctor_id, q.visit_id, q.queue_number, q.queue_day,
	q.visit_type, q.status, q.called_at, q.completed_at, q.created_at, q.updated_at`

// IncrementCounter relies on the row lock taken by the upsert: concurrent
// admissions for the same clinic and day serialize here.
func (r *repoPG) IncrementCounter(ctx context.Context, clinicID uuid.UUID, day time.Time) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO queue_counter (clinic_id, queue_day, last_number)
		VALUES ($1, $2, 1)
		ON CONFLICT (clinic_id, queue_day)
		DO UPDATE SET last_number = queue_counter.last_number + 1
		RETURNING last_number`,
		clinicID, day,
	).Scan(&n)
	return n, err
}

func (r *repoPG) Create(ctx context.Context, it *Item) error {
	it.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO queue_item (id, clinic_id, patient_id, doctor_id, visit_id, queue_number, queue_day, visit_type, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		it.ID, it.ClinicID, it.PatientID, it.DoctorID, it.VisitID, it.QueueNumber, it.QueueDay, it.VisitType, string(it.Status),
	).Scan(&it.CreatedAt, &it.UpdatedAt)
}

func (r *repoPG) GetForUpdate(ctx context.Context, clinicID, id uuid.UUID) (*Item, error) {
	it, err := scanItem(r.conn(ctx).QueryRow(ctx,
		`SELECT `+itemCols+` FROM queue_item q WHERE q.id = $1 AND q.clinic_id = $2 FOR UPDATE`, id, clinicID))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, isolation.NotFound(isolation.KindQueueItem)
		}
		return nil, fmt.Errorf("get queue item: %w", err)
	}
	return it, nil
}

func (r *repoPG) UpdateStatus(ctx context.Context, it *Item) error {
	return r.conn(ctx).QueryRow(ctx, `
		UPDATE queue_item SET status = $3, called_at = $4, completed_at = $5, updated_at = now()
		WHERE id = $1 AND clinic_id = $2
		RETURNING updated_at`,
		it.ID, it.ClinicID, string(it.Status), it.CalledAt, it.CompletedAt,
	).Scan(&it.UpdatedAt)
}

func (r *repoPG) FindServing(ctx context.Context, clinicID uuid.UUID) (*Item, error) {
	return r.findOne(ctx, `
		SELECT `+itemCols+` FROM queue_item q
		WHERE q.clinic_id = $1 AND q.status = 'serving'
		FOR UPDATE`, clinicID)
}

func (r *repoPG) NextWaiting(ctx context.Context, clinicID uuid.UUID, day time.Time) (*Item, error) {
	return r.findOne(ctx, `
		SELECT `+itemCols+` FROM queue_item q
		WHERE q.clinic_id = $1 AND q.queue_day = $2 AND q.status = 'waiting'
		ORDER BY q.queue_number
		LIMIT 1
		FOR UPDATE`, clinicID, day)
}

func (r *repoPG) findOne(ctx context.Context, query string, args ...interface{}) (*Item, error) {
	it, err := scanItem(r.conn(ctx).QueryRow(ctx, query, args...))
	if db.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find queue item: %w", err)
	}
	return it, nil
}

// ListDay joins every related table on clinic_id as well as id, so a row
// can never pick up another clinic's patient, doctor or visit.
func (r *repoPG) ListDay(ctx context.Context, clinicID uuid.UUID, day time.Time) ([]*Entry, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+itemCols+`,
			p.first_name || ' ' || p.last_name, p.phone,
			CASE WHEN d.id IS NULL THEN NULL ELSE d.first_name || ' ' || d.last_name END,
			v.status
		FROM queue_item q
		JOIN patient p ON p.id = q.patient_id AND p.clinic_id = $1
		LEFT JOIN staff d ON d.id = q.doctor_id AND d.clinic_id = $1
		LEFT JOIN visit v ON v.id = q.visit_id AND v.clinic_id = $1
		WHERE q.clinic_id = $1 AND q.queue_day = $2
		ORDER BY q.queue_number`,
		clinicID, day)
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		var e Entry
		var status string
		err := rows.Scan(
			&e.ID, &e.ClinicID, &e.PatientID, &e.DoctorID, &e.VisitID, &e.QueueNumber, &e.QueueDay,
			&e.VisitType, &status, &e.CalledAt, &e.CompletedAt, &e.CreatedAt, &e.UpdatedAt,
			&e.PatientName, &e.PatientPhone, &e.DoctorName, &e.VisitStatus,
		)
		if err != nil {
			return nil, err
		}
		e.Status = Status(status)
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (r *repoPG) CountByStatus(ctx context.Context, clinicID uuid.UUID, day time.Time) (map[Status]int, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT status, COUNT(*) FROM queue_item
		WHERE clinic_id = $1 AND queue_day = $2
		GROUP BY status`, clinicID, day)
	if err != nil {
		return nil, fmt.Errorf("count queue: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int, len(AllStatuses))
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[Status(status)] = n
	}
	return counts, rows.Err()
}

func (r *repoPG) AddEvent(ctx context.Context, e *Event) error {
	e.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO queue_event (id, clinic_id, queue_item_id, from_status, to_status, actor_id)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at`,
		e.ID, e.ClinicID, e.QueueItemID, e.FromStatus, string(e.ToStatus), e.ActorID,
	).Scan(&e.CreatedAt)
}

func (r *repoPG) ListEvents(ctx context.Context, clinicID, itemID uuid.UUID) ([]*Event, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, clinic_id, queue_item_id, from_status, to_status, actor_id, created_at
		FROM queue_event
		WHERE clinic_id = $1 AND queue_item_id = $2
		ORDER BY created_at, id`, clinicID, itemID)
	if err != nil {
		return nil, fmt.Errorf("list queue events: %w", err)
	}
	defer rows.Close()

	var out []*Event
	for rows.Next() {
		var e Event
		var to string
		if err := rows.Scan(&e.ID, &e.ClinicID, &e.QueueItemID, &e.FromStatus, &to, &e.ActorID, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.ToStatus = Status(to)
		out = append(out, &e)
	}
	return out, rows.Err()
}

func scanItem(row pgx.Row) (*Item, error) {
	var it Item
	var status string
	err := row.Scan(&it.ID, &it.ClinicID, &it.PatientID, &it.DoctorID, &it.VisitID, &it.QueueNumber, &it.QueueDay,
		&it.VisitType, &status, &it.CalledAt, &it.CompletedAt, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return nil, err
	}
	it.Status = Status(status)
	return &it, nil
}
