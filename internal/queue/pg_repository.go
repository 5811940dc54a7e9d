package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const entryColumns = `id, patient_id, appointment_id, queue_number, status,
	estimated_wait_minutes, created_at, updated_at`

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	var appointmentID *uuid.UUID

	err := row.Scan(
		&e.ID,
		&e.PatientID,
		&appointmentID,
		&e.Number,
		&e.Status,
		&e.EstimatedWaitMinutes,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}

	e.AppointmentID = appointmentID
	return &e, nil
}

func (r *PgRepository) Insert(ctx context.Context, e *Entry) (*Entry, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO queue (id, patient_id, appointment_id, queue_number, status,
			estimated_wait_minutes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING `+entryColumns+`
	`, id, e.PatientID, e.AppointmentID, e.Number, e.Status, e.EstimatedWaitMinutes)

	return scanEntry(row)
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM queue
		WHERE id = $1
	`, id)
	return scanEntry(row)
}

func (r *PgRepository) FindActiveByPatient(ctx context.Context, patientID uuid.UUID) (*Entry, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM queue
		WHERE patient_id = $1
		  AND status IN ('waiting', 'serving')
		ORDER BY created_at DESC
		LIMIT 1
	`, patientID)
	return scanEntry(row)
}

func (r *PgRepository) FindServing(ctx context.Context) (*Entry, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM queue
		WHERE status = 'serving'
		ORDER BY updated_at DESC
		LIMIT 1
	`)
	return scanEntry(row)
}

func (r *PgRepository) FindNextWaiting(ctx context.Context) (*Entry, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM queue
		WHERE status = 'waiting'
		ORDER BY queue_number
		LIMIT 1
	`)
	return scanEntry(row)
}

func (r *PgRepository) CountWaiting(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM queue WHERE status = 'waiting'
	`).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from []Status, to Status) (*Entry, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE queue
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = ANY($3)
		RETURNING `+entryColumns+`
	`, id, to, statusStrings(from))

	return scanEntry(row)
}

func statusStrings(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func (r *PgRepository) ListBetween(ctx context.Context, from, to time.Time) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM queue
		WHERE created_at >= $1
		  AND created_at < $2
		ORDER BY queue_number
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) MaxNumber(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(queue_number), 0) FROM queue
	`).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}
