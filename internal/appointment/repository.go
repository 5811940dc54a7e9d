package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// Repository contains all DB interactions needed by the ledger.
type Repository interface {
	// Create persists the appointment and its service associations.
	Create(ctx context.Context, a *Appointment, serviceIDs []uuid.UUID) (*Appointment, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// UpdateSchedule overwrites branch/date/time and replaces the full
	// service association set (delete-then-insert, not a diff).
	UpdateSchedule(ctx context.Context, id uuid.UUID, branch Branch, date time.Time, timeOfDay string, serviceIDs []uuid.UUID) (*Appointment, error)

	// UpdateStatus is a conditional transition: it only succeeds while the
	// row is still in one of the from statuses.
	UpdateStatus(ctx context.Context, id uuid.UUID, from []Status, to Status) (*Appointment, error)

	ServiceIDs(ctx context.Context, appointmentID uuid.UUID) ([]uuid.UUID, error)

	// LatestDurationOverride returns the most recent doctor-set duration,
	// or nil when none exists.
	LatestDurationOverride(ctx context.Context, appointmentID uuid.UUID) (*int, error)
	SetDurationOverride(ctx context.Context, appointmentID uuid.UUID, minutes int) error

	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error)

	// ListByBranchDate returns the non-cancelled appointments the
	// availability calculator blocks against.
	ListByBranchDate(ctx context.Context, branch Branch, date time.Time) ([]Appointment, error)

	// FindOverdue returns pending/confirmed appointments dated before the
	// given day (no-show worker input).
	FindOverdue(ctx context.Context, before time.Time) ([]Appointment, error)
}
