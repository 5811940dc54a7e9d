package appointment

import (
	"context"
	"errors"
	"fmt"
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

const appointmentColumns = `id, patient_id, branch, appointment_date, appointment_time,
	status, is_emergency, notes, teeth_involved, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.Branch,
		&a.Date,
		&a.Time,
		&a.Status,
		&a.IsEmergency,
		&a.Notes,
		&a.TeethInvolved,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

func (r *PgRepository) Create(ctx context.Context, a *Appointment, serviceIDs []uuid.UUID) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	id := uuid.New()

	row := tx.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, branch, appointment_date, appointment_time,
			status, is_emergency, notes, teeth_involved, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		RETURNING `+appointmentColumns+`
	`, id, a.PatientID, a.Branch, a.Date, a.Time, a.Status, a.IsEmergency, a.Notes, a.TeethInvolved)

	created, err := scanAppointment(row)
	if err != nil {
		return nil, err
	}

	for _, serviceID := range serviceIDs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO appointment_services (appointment_id, service_id)
			VALUES ($1, $2)
		`, id, serviceID); err != nil {
			return nil, fmt.Errorf("insert appointment service: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return created, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) UpdateSchedule(ctx context.Context, id uuid.UUID, branch Branch, date time.Time, timeOfDay string, serviceIDs []uuid.UUID) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET branch = $2,
		    appointment_date = $3,
		    appointment_time = $4,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns+`
	`, id, branch, date, timeOfDay)

	updated, err := scanAppointment(row)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM appointment_services WHERE appointment_id = $1
	`, id); err != nil {
		return nil, fmt.Errorf("delete appointment services: %w", err)
	}

	for _, serviceID := range serviceIDs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO appointment_services (appointment_id, service_id)
			VALUES ($1, $2)
		`, id, serviceID); err != nil {
			return nil, fmt.Errorf("insert appointment service: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return updated, nil
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from []Status, to Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = ANY($3)
		RETURNING `+appointmentColumns+`
	`, id, to, statusStrings(from))

	return scanAppointment(row)
}

func statusStrings(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func (r *PgRepository) ServiceIDs(ctx context.Context, appointmentID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT service_id
		FROM appointment_services
		WHERE appointment_id = $1
	`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return ids, nil
}

func (r *PgRepository) LatestDurationOverride(ctx context.Context, appointmentID uuid.UUID) (*int, error) {
	var minutes int

	err := r.pool.QueryRow(ctx, `
		SELECT duration_minutes
		FROM appointment_durations
		WHERE appointment_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, appointmentID).Scan(&minutes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &minutes, nil
}

func (r *PgRepository) SetDurationOverride(ctx context.Context, appointmentID uuid.UUID, minutes int) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointment_durations (id, appointment_id, duration_minutes, created_at)
		VALUES ($1, $2, $3, now())
	`, uuid.New(), appointmentID, minutes)
	if err != nil {
		return fmt.Errorf("insert duration override: %w", err)
	}
	return nil
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY appointment_date DESC, appointment_time DESC
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *PgRepository) ListByBranchDate(ctx context.Context, branch Branch, date time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE branch = $1
		  AND appointment_date = $2
		  AND status NOT IN ('cancelled', 'no-show')
		ORDER BY appointment_time
	`, branch, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *PgRepository) FindOverdue(ctx context.Context, before time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status IN ('pending', 'confirmed')
		  AND appointment_date < $1
	`, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
