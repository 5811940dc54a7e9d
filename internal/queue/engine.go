package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dentaflow/clinic/internal/appointment"
	"github.com/dentaflow/clinic/internal/billing"
	"github.com/dentaflow/clinic/internal/catalog"
	redisclient "github.com/dentaflow/clinic/internal/redis"
)

const (
	// Fallback line used when a session has no explicit services and no
	// free-text hints. Billing depends on these constants.
	DefaultServiceName     = "Dental Consultation"
	DefaultServicePrice    = 500.0
	DefaultServiceDuration = 30

	lockName  = "queue"
	feedTable = "queue"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrEmptyQueue        = errors.New("no patients waiting")
	ErrAlreadyQueued     = errors.New("patient already has an active queue entry")
	ErrInvalidTransition = errors.New("queue entry state forbids this operation")
)

// Ledger is the slice of the appointment ledger the engine drives.
// Status syncs are best-effort: their failure never rolls back the
// engine's own state change.
type Ledger interface {
	Get(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	ServicesOf(ctx context.Context, id uuid.UUID) ([]catalog.Service, error)
	MarkInProgress(ctx context.Context, id uuid.UUID) error
	MarkCompleted(ctx context.Context, id uuid.UUID) error
}

// Counter issues queue numbers atomically.
type Counter interface {
	Next(ctx context.Context) (int, error)
}

// Biller computes the draft invoice presented at session completion.
type Biller interface {
	ComputeDraft(patientID, queueEntryID uuid.UUID, services []catalog.Service) billing.Draft
}

// Feed receives change notifications consumed by connected terminals.
type Feed interface {
	Publish(ctx context.Context, ev redisclient.ChangeEvent) error
}

// Engine drives the waiting -> serving -> completed/cancelled state
// machine. Enqueue and the two call operations run under a queue-wide
// distributed lock; every status write is a conditional update, so two
// racing terminals cannot both mark an entry serving.
type Engine struct {
	repo    Repository
	ledger  Ledger
	biller  Biller
	counter Counter
	locker  redisclient.Locker
	feed    Feed
	loc     *time.Location
	logger  zerolog.Logger
	now     func() time.Time
}

func NewEngine(repo Repository, ledger Ledger, biller Biller, counter Counter, locker redisclient.Locker, feed Feed, loc *time.Location, logger zerolog.Logger) *Engine {
	return &Engine{
		repo:    repo,
		ledger:  ledger,
		biller:  biller,
		counter: counter,
		locker:  locker,
		feed:    feed,
		loc:     loc,
		logger:  logger,
		now:     time.Now,
	}
}

// Enqueue adds a patient to the walk-in line with the next queue number.
// A patient with an active (waiting or serving) entry is rejected.
func (s *Engine) Enqueue(ctx context.Context, patientID uuid.UUID, appointmentID *uuid.UUID) (*Entry, error) {
	if patientID == uuid.Nil {
		return nil, fmt.Errorf("%w: patient_id is required", ErrValidation)
	}
	if appointmentID != nil {
		if _, err := s.ledger.Get(ctx, *appointmentID); err != nil {
			return nil, fmt.Errorf("load linked appointment: %w", err)
		}
	}

	var created *Entry

	err := s.locker.WithLock(ctx, lockName, func(lockCtx context.Context) error {
		existing, err := s.repo.FindActiveByPatient(lockCtx, patientID)
		if err != nil && !errors.Is(err, ErrEntryNotFound) {
			return fmt.Errorf("check active entry: %w", err)
		}
		if existing != nil {
			return ErrAlreadyQueued
		}

		waiting, err := s.repo.CountWaiting(lockCtx)
		if err != nil {
			return fmt.Errorf("count waiting: %w", err)
		}

		number, err := s.counter.Next(lockCtx)
		if err != nil {
			return fmt.Errorf("next queue number: %w", err)
		}

		e := &Entry{
			PatientID:            patientID,
			AppointmentID:        appointmentID,
			Number:               number,
			Status:               StatusWaiting,
			EstimatedWaitMinutes: waiting * DefaultServiceDuration,
		}

		created, err = s.repo.Insert(lockCtx, e)
		if err != nil {
			return fmt.Errorf("insert queue entry: %w", err)
		}

		s.publish(lockCtx, "insert", created.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

// CallNext serves the waiting entry with the lowest number. Whoever is
// currently being served is completed first, with the same side-effects
// as an explicit complete.
func (s *Engine) CallNext(ctx context.Context) (*Entry, error) {
	var called *Entry

	err := s.locker.WithLock(ctx, lockName, func(lockCtx context.Context) error {
		next, err := s.repo.FindNextWaiting(lockCtx)
		if err != nil {
			if errors.Is(err, ErrEntryNotFound) {
				return ErrEmptyQueue
			}
			return fmt.Errorf("find next waiting: %w", err)
		}

		if err := s.finishCurrentServing(lockCtx); err != nil {
			return err
		}

		called, err = s.serve(lockCtx, next.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return called, nil
}

// CallSpecific serves a chosen waiting entry out of order, completing the
// current serving entry first if it is a different one.
func (s *Engine) CallSpecific(ctx context.Context, id uuid.UUID) (*Entry, error) {
	var called *Entry

	err := s.locker.WithLock(ctx, lockName, func(lockCtx context.Context) error {
		target, err := s.repo.GetByID(lockCtx, id)
		if err != nil {
			return fmt.Errorf("load queue entry: %w", err)
		}
		if target.Status == StatusServing {
			called = target
			return nil
		}
		if target.Status != StatusWaiting {
			return ErrInvalidTransition
		}

		serving, err := s.repo.FindServing(lockCtx)
		if err != nil && !errors.Is(err, ErrEntryNotFound) {
			return fmt.Errorf("find serving entry: %w", err)
		}
		if serving != nil && serving.ID != target.ID {
			if err := s.finishEntry(lockCtx, serving.ID); err != nil {
				return err
			}
		}

		called, err = s.serve(lockCtx, target.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return called, nil
}

// CompleteResult carries the outcome of a session completion. DraftErr is
// a secondary failure: the entry is already completed when it is set.
type CompleteResult struct {
	Entry    *Entry
	Draft    *billing.Draft
	DraftErr error
}

// Complete finishes a session. The linked appointment is synced
// best-effort, then the draft invoice is computed from the resolved
// services. The draft is returned, never persisted here; staff confirm it
// through the billing generator.
func (s *Engine) Complete(ctx context.Context, id uuid.UUID) (*CompleteResult, error) {
	updated, err := s.repo.UpdateStatus(ctx, id, []Status{StatusWaiting, StatusServing}, StatusCompleted)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			return nil, s.transitionErr(ctx, id)
		}
		return nil, fmt.Errorf("complete queue entry: %w", err)
	}

	s.syncCompleted(ctx, updated)
	s.publish(ctx, "update", updated.ID)

	result := &CompleteResult{Entry: updated}

	services, err := s.ResolveServices(ctx, updated)
	if err != nil {
		s.logger.Error().Err(err).Str("queue_entry_id", updated.ID.String()).
			Msg("session completed but service resolution failed")
		result.DraftErr = err
		return result, nil
	}

	draft := s.biller.ComputeDraft(updated.PatientID, updated.ID, services)
	result.Draft = &draft
	return result, nil
}

// Cancel is terminal; no billing side-effect.
func (s *Engine) Cancel(ctx context.Context, id uuid.UUID) (*Entry, error) {
	updated, err := s.repo.UpdateStatus(ctx, id, []Status{StatusWaiting, StatusServing}, StatusCancelled)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			return nil, s.transitionErr(ctx, id)
		}
		return nil, fmt.Errorf("cancel queue entry: %w", err)
	}

	s.publish(ctx, "update", updated.ID)
	return updated, nil
}

// ResolveServices derives the billable lines for a session: the linked
// appointment's services when present, else pseudo-lines from the
// appointment's free text, else the default consultation.
func (s *Engine) ResolveServices(ctx context.Context, e *Entry) ([]catalog.Service, error) {
	if e.AppointmentID != nil {
		appt, err := s.ledger.Get(ctx, *e.AppointmentID)
		if err != nil {
			return nil, fmt.Errorf("load linked appointment: %w", err)
		}

		services, err := s.ledger.ServicesOf(ctx, appt.ID)
		if err != nil {
			return nil, fmt.Errorf("load appointment services: %w", err)
		}
		if len(services) > 0 {
			return services, nil
		}

		if teeth := strings.TrimSpace(appt.TeethInvolved); teeth != "" {
			return []catalog.Service{pseudoService("Treatment for: "+teeth, appt.Notes)}, nil
		}
		if notes := strings.TrimSpace(appt.Notes); notes != "" {
			return []catalog.Service{pseudoService(notes, "")}, nil
		}
	}

	return []catalog.Service{pseudoService(DefaultServiceName, "")}, nil
}

func (s *Engine) Get(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return s.repo.GetByID(ctx, id)
}

// DraftFor recomputes the draft invoice for a completed session, used
// when staff confirm billing after the completion response was lost.
func (s *Engine) DraftFor(ctx context.Context, id uuid.UUID) (*billing.Draft, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.Status != StatusCompleted {
		return nil, ErrInvalidTransition
	}

	services, err := s.ResolveServices(ctx, e)
	if err != nil {
		return nil, err
	}

	draft := s.biller.ComputeDraft(e.PatientID, e.ID, services)
	return &draft, nil
}

// ListToday returns the entries created within the current clinic day.
func (s *Engine) ListToday(ctx context.Context) ([]Entry, error) {
	now := s.now().In(s.loc)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	return s.repo.ListBetween(ctx, dayStart, dayStart.AddDate(0, 0, 1))
}

// finishCurrentServing completes whoever is currently being served, if
// anyone.
func (s *Engine) finishCurrentServing(ctx context.Context) error {
	serving, err := s.repo.FindServing(ctx)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			return nil
		}
		return fmt.Errorf("find serving entry: %w", err)
	}
	return s.finishEntry(ctx, serving.ID)
}

// finishEntry applies complete's side-effects during an implicit
// completion (call-next / call-specific displacing the current patient).
func (s *Engine) finishEntry(ctx context.Context, id uuid.UUID) error {
	updated, err := s.repo.UpdateStatus(ctx, id, []Status{StatusWaiting, StatusServing}, StatusCompleted)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			// Another terminal already finished it.
			return nil
		}
		return fmt.Errorf("complete serving entry: %w", err)
	}

	s.syncCompleted(ctx, updated)
	s.publish(ctx, "update", updated.ID)
	return nil
}

func (s *Engine) serve(ctx context.Context, id uuid.UUID) (*Entry, error) {
	updated, err := s.repo.UpdateStatus(ctx, id, []Status{StatusWaiting}, StatusServing)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("mark entry serving: %w", err)
	}

	if updated.AppointmentID != nil {
		if err := s.ledger.MarkInProgress(ctx, *updated.AppointmentID); err != nil {
			s.logger.Error().Err(err).
				Str("queue_entry_id", updated.ID.String()).
				Str("appointment_id", updated.AppointmentID.String()).
				Msg("appointment sync failed on serve")
		}
	}

	s.publish(ctx, "update", updated.ID)
	return updated, nil
}

func (s *Engine) syncCompleted(ctx context.Context, e *Entry) {
	if e.AppointmentID == nil {
		return
	}
	if err := s.ledger.MarkCompleted(ctx, *e.AppointmentID); err != nil {
		s.logger.Error().Err(err).
			Str("queue_entry_id", e.ID.String()).
			Str("appointment_id", e.AppointmentID.String()).
			Msg("appointment sync failed on complete")
	}
}

func (s *Engine) publish(ctx context.Context, event string, id uuid.UUID) {
	ev := redisclient.ChangeEvent{Table: feedTable, Event: event, EntityID: id, At: s.now()}
	if err := s.feed.Publish(ctx, ev); err != nil {
		s.logger.Warn().Err(err).Str("event", event).Msg("change feed publish failed")
	}
}

// transitionErr distinguishes "row gone" from "row in the wrong state"
// after a conditional update matched nothing.
func (s *Engine) transitionErr(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	return ErrInvalidTransition
}

func pseudoService(name, description string) catalog.Service {
	return catalog.Service{
		Name:            name,
		Description:     description,
		Price:           DefaultServicePrice,
		DurationMinutes: DefaultServiceDuration,
	}
}
