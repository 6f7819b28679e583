package clinic

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abroroo/medicPro-sub000/internal/platform/db"
	"github.com/abroroo/medicPro-sub000/pkg/apperrors"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const clinicCols = `id, name, phone, email, address, timezone, created_at`

func (r *repoPG) Create(ctx context.Context, c *Clinic) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO clinic (id, name, phone, email, address, timezone)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		c.ID, c.Name, c.Phone, c.Email, c.Address, c.Timezone,
	).Scan(&c.CreatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Clinic, error) {
	c, err := scanClinic(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+clinicCols+` FROM clinic WHERE id = $1`, id))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperrors.NewNotFoundError("clinic")
		}
		return nil, fmt.Errorf("get clinic: %w", err)
	}
	return c, nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Clinic, int, error) {
	q := db.Conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM clinic`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count clinics: %w", err)
	}

	rows, err := q.Query(ctx, `SELECT `+clinicCols+` FROM clinic ORDER BY created_at, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list clinics: %w", err)
	}
	defer rows.Close()

	var out []*Clinic
	for rows.Next() {
		c, err := scanClinic(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func scanClinic(row pgx.Row) (*Clinic, error) {
	var c Clinic
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Address, &c.Timezone, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
