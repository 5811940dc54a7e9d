package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrEntryNotFound = errors.New("queue entry not found")
)

// Repository contains all DB interactions needed by the engine.
type Repository interface {
	Insert(ctx context.Context, e *Entry) (*Entry, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Entry, error)

	// FindActiveByPatient returns the patient's waiting or serving entry,
	// if any (duplicate-enqueue guard).
	FindActiveByPatient(ctx context.Context, patientID uuid.UUID) (*Entry, error)

	FindServing(ctx context.Context) (*Entry, error)

	// FindNextWaiting returns the waiting entry with the lowest number.
	FindNextWaiting(ctx context.Context) (*Entry, error)

	CountWaiting(ctx context.Context) (int, error)

	// UpdateStatus is a conditional transition: it only succeeds while the
	// row is still in one of the from statuses.
	UpdateStatus(ctx context.Context, id uuid.UUID, from []Status, to Status) (*Entry, error)

	// ListBetween returns entries created within [from, to), i.e. the
	// clinic-day view.
	ListBetween(ctx context.Context, from, to time.Time) ([]Entry, error)

	// MaxNumber returns the highest queue number ever issued (counter
	// seeding at startup).
	MaxNumber(ctx context.Context) (int, error)
}
