package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dentaflow/clinic/internal/catalog"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrInvalidTransition = errors.New("appointment state forbids this operation")
)

// CatalogSource is the slice of the service catalog the ledger needs.
type CatalogSource interface {
	Resolve(ctx context.Context, ids []uuid.UUID) ([]catalog.Service, error)
}

type Service struct {
	repo     Repository
	services CatalogSource
	loc      *time.Location
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, services CatalogSource, loc *time.Location, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		services: services,
		loc:      loc,
		logger:   logger,
		now:      time.Now,
	}
}

type CreateParams struct {
	PatientID     uuid.UUID
	Branch        Branch
	Date          time.Time
	Time          string
	ServiceIDs    []uuid.UUID
	Notes         string
	TeethInvolved string
	IsEmergency   bool
}

// Create books a new appointment in pending state.
func (s *Service) Create(ctx context.Context, p CreateParams) (*Appointment, error) {
	if p.PatientID == uuid.Nil {
		return nil, fmt.Errorf("%w: patient_id is required", ErrValidation)
	}
	if !ValidBranch(p.Branch) {
		return nil, fmt.Errorf("%w: unknown branch %q", ErrValidation, p.Branch)
	}
	if len(p.ServiceIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one service is required", ErrValidation)
	}
	if _, err := ParseClock(p.Time); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if dayString(p.Date) < dayString(s.today()) {
		return nil, fmt.Errorf("%w: appointment date is in the past", ErrValidation)
	}

	if _, err := s.services.Resolve(ctx, p.ServiceIDs); err != nil {
		if errors.Is(err, catalog.ErrServiceNotFound) {
			return nil, fmt.Errorf("%w: unknown service selected", ErrValidation)
		}
		return nil, fmt.Errorf("resolve services: %w", err)
	}

	a := &Appointment{
		PatientID:     p.PatientID,
		Branch:        p.Branch,
		Date:          p.Date,
		Time:          p.Time,
		Status:        StatusPending,
		IsEmergency:   p.IsEmergency,
		Notes:         p.Notes,
		TeethInvolved: p.TeethInvolved,
	}

	created, err := s.repo.Create(ctx, a, p.ServiceIDs)
	if err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	return created, nil
}

// Reschedule overwrites branch/date/time and replaces the service set.
// Only allowed while the appointment is still pending or confirmed and
// not dated in the past; the status is not reset.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, branch Branch, date time.Time, timeOfDay string, serviceIDs []uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if err := s.mutable(a); err != nil {
		return nil, err
	}

	if !ValidBranch(branch) {
		return nil, fmt.Errorf("%w: unknown branch %q", ErrValidation, branch)
	}
	if len(serviceIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one service is required", ErrValidation)
	}
	if _, err := ParseClock(timeOfDay); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if dayString(date) < dayString(s.today()) {
		return nil, fmt.Errorf("%w: appointment date is in the past", ErrValidation)
	}
	if _, err := s.services.Resolve(ctx, serviceIDs); err != nil {
		if errors.Is(err, catalog.ErrServiceNotFound) {
			return nil, fmt.Errorf("%w: unknown service selected", ErrValidation)
		}
		return nil, fmt.Errorf("resolve services: %w", err)
	}

	updated, err := s.repo.UpdateSchedule(ctx, id, branch, date, timeOfDay, serviceIDs)
	if err != nil {
		return nil, fmt.Errorf("reschedule appointment: %w", err)
	}

	return updated, nil
}

// Cancel is terminal and irreversible. Same precondition as Reschedule.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if err := s.mutable(a); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateStatus(ctx, id, []Status{StatusPending, StatusConfirmed}, StatusCancelled)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Lost the race against another terminal.
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	return updated, nil
}

// Confirm moves a pending appointment to confirmed (staff action).
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	updated, err := s.repo.UpdateStatus(ctx, id, []Status{StatusPending}, StatusConfirmed)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, s.transitionErr(ctx, id)
		}
		return nil, fmt.Errorf("confirm appointment: %w", err)
	}
	return updated, nil
}

// MarkInProgress is invoked by the queue engine when the linked entry
// starts being served.
func (s *Service) MarkInProgress(ctx context.Context, id uuid.UUID) error {
	_, err := s.repo.UpdateStatus(ctx, id, []Status{StatusPending, StatusConfirmed}, StatusInProgress)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return s.transitionErr(ctx, id)
		}
		return fmt.Errorf("mark appointment in progress: %w", err)
	}
	return nil
}

// MarkCompleted is invoked by the queue engine when the linked entry
// completes.
func (s *Service) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	_, err := s.repo.UpdateStatus(ctx, id, []Status{StatusPending, StatusConfirmed, StatusInProgress}, StatusCompleted)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return s.transitionErr(ctx, id)
		}
		return fmt.Errorf("mark appointment completed: %w", err)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

// ServicesOf returns the catalog entries linked to an appointment.
func (s *Service) ServicesOf(ctx context.Context, id uuid.UUID) ([]catalog.Service, error) {
	ids, err := s.repo.ServiceIDs(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment services: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return s.services.Resolve(ctx, ids)
}

// SetDuration records a doctor-set duration override.
func (s *Service) SetDuration(ctx context.Context, id uuid.UUID, minutes int) error {
	if minutes <= 0 {
		return fmt.Errorf("%w: duration must be positive", ErrValidation)
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return fmt.Errorf("load appointment: %w", err)
	}
	return s.repo.SetDurationOverride(ctx, id, minutes)
}

// EffectiveDuration resolves the duration used for scheduling: the latest
// doctor override if one exists, otherwise the services' summed default
// durations, floored at MinDurationMinutes.
func (s *Service) EffectiveDuration(ctx context.Context, id uuid.UUID) (int, error) {
	override, err := s.repo.LatestDurationOverride(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("load duration override: %w", err)
	}

	var services []catalog.Service
	if override == nil {
		ids, err := s.repo.ServiceIDs(ctx, id)
		if err != nil {
			return 0, fmt.Errorf("load appointment services: %w", err)
		}
		if len(ids) > 0 {
			services, err = s.services.Resolve(ctx, ids)
			if err != nil {
				return 0, fmt.Errorf("resolve services: %w", err)
			}
		}
	}

	return EffectiveDurationFrom(override, services), nil
}

// EffectiveDurationFrom applies the duration precedence rule.
func EffectiveDurationFrom(override *int, services []catalog.Service) int {
	if override != nil {
		return *override
	}

	sum := 0
	for _, svc := range services {
		sum += svc.DurationMinutes
	}
	if sum < MinDurationMinutes {
		return MinDurationMinutes
	}
	return sum
}

// DayLoad is one booked visit's footprint on a branch day.
type DayLoad struct {
	StartMinute     int
	DurationMinutes int
}

// DayLoads returns the effective footprint of every non-cancelled
// appointment on a branch day. The availability calculator blocks slots
// against these.
func (s *Service) DayLoads(ctx context.Context, branch Branch, date time.Time) ([]DayLoad, error) {
	appts, err := s.repo.ListByBranchDate(ctx, branch, date)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}

	loads := make([]DayLoad, 0, len(appts))
	for _, a := range appts {
		start, err := a.StartMinute()
		if err != nil {
			s.logger.Warn().Str("appointment_id", a.ID.String()).Str("time", a.Time).
				Msg("skipping appointment with unparsable time")
			continue
		}
		dur, err := s.EffectiveDuration(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		loads = append(loads, DayLoad{StartMinute: start, DurationMinutes: dur})
	}

	return loads, nil
}

// ExpireOverdue marks pending/confirmed appointments dated before today
// as no-show. Run periodically by the no-show worker.
func (s *Service) ExpireOverdue(ctx context.Context) (int, error) {
	overdue, err := s.repo.FindOverdue(ctx, s.today())
	if err != nil {
		return 0, fmt.Errorf("find overdue appointments: %w", err)
	}

	expired := 0
	for _, a := range overdue {
		_, err := s.repo.UpdateStatus(ctx, a.ID, []Status{StatusPending, StatusConfirmed}, StatusNoShow)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				continue
			}
			s.logger.Error().Err(err).Str("appointment_id", a.ID.String()).Msg("failed to mark no-show")
			continue
		}
		expired++
	}

	return expired, nil
}

// mutable rejects operations on appointments past the cancellable window:
// status must still be pending/confirmed and the date must not be in the
// past (same-day changes are allowed).
func (s *Service) mutable(a *Appointment) error {
	if a.Status != StatusPending && a.Status != StatusConfirmed {
		return ErrInvalidTransition
	}
	if dayString(a.Date) < dayString(s.today()) {
		return ErrInvalidTransition
	}
	return nil
}

// transitionErr distinguishes "row gone" from "row in the wrong state"
// after a conditional update matched nothing.
func (s *Service) transitionErr(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	return ErrInvalidTransition
}

func (s *Service) today() time.Time {
	now := s.now().In(s.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
}

func dayString(t time.Time) string {
	return t.Format("2006-01-02")
}
