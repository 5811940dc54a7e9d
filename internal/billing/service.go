package billing

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
	ErrValidation = errors.New("validation failed")
)

type Service struct {
	repo      Repository
	logger    zerolog.Logger
	now       func() time.Time
	newNumber func(time.Time) string
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		logger:    logger,
		now:       time.Now,
		newNumber: NewNumber,
	}
}

// ComputeDraft builds the deterministic itemization for a completed
// session: one line per resolved service, quantity 1, price taken from
// the service (0 when unknown).
func (s *Service) ComputeDraft(patientID, queueEntryID uuid.UUID, services []catalog.Service) Draft {
	d := Draft{PatientID: patientID, QueueEntryID: queueEntryID}

	for _, svc := range services {
		price := svc.Price
		if price < 0 {
			price = 0
		}
		d.Items = append(d.Items, DraftItem{
			ServiceName: svc.Name,
			Description: svc.Description,
			Quantity:    1,
			UnitPrice:   price,
		})
		d.Total += price
	}

	return d
}

// GenerateInvoice persists a confirmed draft. Amount paid starts at zero,
// status pending, due date 30 days out. One retry covers an invoice
// number collision.
func (s *Service) GenerateInvoice(ctx context.Context, actorID uuid.UUID, d Draft) (*Invoice, error) {
	if d.PatientID == uuid.Nil {
		return nil, fmt.Errorf("%w: patient_id is required", ErrValidation)
	}
	if len(d.Items) == 0 {
		return nil, fmt.Errorf("%w: draft has no line items", ErrValidation)
	}

	now := s.now()

	inv := &Invoice{
		Number:      s.newNumber(now),
		InvoiceDate: now,
		DueDate:     now.AddDate(0, 0, DueDays),
		PatientID:   d.PatientID,
		TotalAmount: d.Total,
		AmountPaid:  0,
		Status:      StatusPending,
	}
	if actorID != uuid.Nil {
		inv.CreatedBy = &actorID
	}
	for _, item := range d.Items {
		inv.Items = append(inv.Items, Item{
			ServiceName: item.ServiceName,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}

	created, err := s.repo.Insert(ctx, inv)
	if errors.Is(err, ErrDuplicateNumber) {
		s.logger.Warn().Str("invoice_number", inv.Number).Msg("invoice number collision, regenerating")
		inv.Number = s.newNumber(now)
		created, err = s.repo.Insert(ctx, inv)
	}
	if err != nil {
		return nil, fmt.Errorf("insert invoice: %w", err)
	}

	return created, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Invoice, error) {
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
