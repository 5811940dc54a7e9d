package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dentaflow/clinic/internal/billing"
)

var ErrValidation = errors.New("validation failed")

// InvoiceSource is the read-side lookup used when a patient submits a
// confirmation.
type InvoiceSource interface {
	Get(ctx context.Context, id uuid.UUID) (*billing.Invoice, error)
}

type Service struct {
	repo     Repository
	invoices InvoiceSource
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, invoices InvoiceSource, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		invoices: invoices,
		logger:   logger,
		now:      time.Now,
	}
}

type SubmitParams struct {
	InvoiceID       uuid.UUID
	PatientID       uuid.UUID
	Amount          float64
	PaymentMethod   string
	ReferenceNumber string
	ProofURL        string
}

// Submit records a patient's claim of payment. The invoice itself is not
// modified; the claim sits in pending_confirmation until staff review it.
func (s *Service) Submit(ctx context.Context, p SubmitParams) (*Confirmation, error) {
	if p.InvoiceID == uuid.Nil {
		return nil, fmt.Errorf("%w: invoice_id is required", ErrValidation)
	}
	if p.PatientID == uuid.Nil {
		return nil, fmt.Errorf("%w: patient_id is required", ErrValidation)
	}
	if p.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if p.PaymentMethod == "" {
		return nil, fmt.Errorf("%w: payment_method is required", ErrValidation)
	}

	if _, err := s.invoices.Get(ctx, p.InvoiceID); err != nil {
		return nil, err
	}

	c, err := s.repo.InsertConfirmation(ctx, &Confirmation{
		InvoiceID:       p.InvoiceID,
		PatientID:       p.PatientID,
		Amount:          p.Amount,
		PaymentMethod:   p.PaymentMethod,
		ReferenceNumber: p.ReferenceNumber,
		ProofURL:        p.ProofURL,
	})
	if err != nil {
		return nil, fmt.Errorf("insert confirmation: %w", err)
	}

	s.logger.Info().
		Str("confirmation_id", c.ID.String()).
		Str("invoice_id", c.InvoiceID.String()).
		Float64("amount", c.Amount).
		Msg("payment confirmation submitted")

	return c, nil
}

// Resolve approves or rejects a pending confirmation. On approval the
// confirmation flip, the invoice update, and the payment record are
// written in one transaction; a rejection only annotates the
// confirmation. Either way a confirmation is resolved at most once.
func (s *Service) Resolve(ctx context.Context, id uuid.UUID, decision Decision, remarks string, reviewerID uuid.UUID) (*Confirmation, error) {
	var to ConfirmationStatus
	switch decision {
	case DecisionConfirm:
		to = StatusConfirmed
	case DecisionReject:
		to = StatusRejected
	default:
		return nil, fmt.Errorf("%w: decision must be confirm or reject", ErrValidation)
	}
	if decision == DecisionReject && remarks == "" {
		return nil, fmt.Errorf("%w: remarks are required when rejecting", ErrValidation)
	}

	var remarksPtr *string
	if remarks != "" {
		remarksPtr = &remarks
	}

	now := s.now()

	var resolved *Confirmation
	err := s.repo.InTx(ctx, func(tx Repository) error {
		c, err := tx.UpdateConfirmationStatus(ctx, id, to, remarksPtr, reviewerID, now)
		if err != nil {
			if errors.Is(err, ErrConfirmationNotFound) {
				return s.resolveErr(ctx, tx, id)
			}
			return err
		}
		resolved = c

		if to != StatusConfirmed {
			return nil
		}

		inv, err := tx.GetInvoiceForUpdate(ctx, c.InvoiceID)
		if err != nil {
			return err
		}

		paid := inv.AmountPaid + c.Amount
		status := billing.StatusFor(paid, inv.TotalAmount)
		if err := tx.UpdateInvoicePayment(ctx, inv.ID, paid, status, c.PaymentMethod); err != nil {
			return err
		}

		reviewer := reviewerID
		return tx.InsertPayment(ctx, &Payment{
			InvoiceID:       c.InvoiceID,
			Amount:          c.Amount,
			PaymentDate:     now,
			PaymentMethod:   c.PaymentMethod,
			ReferenceNumber: c.ReferenceNumber,
			CreatedBy:       &reviewer,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("confirmation_id", id.String()).
		Str("decision", string(decision)).
		Msg("payment confirmation resolved")

	return resolved, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Confirmation, error) {
	return s.repo.GetConfirmation(ctx, id)
}

func (s *Service) ListPending(ctx context.Context, limit, offset int) ([]Confirmation, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListPending(ctx, limit, offset)
}

// resolveErr distinguishes a missing confirmation from one another
// reviewer already settled.
func (s *Service) resolveErr(ctx context.Context, repo Repository, id uuid.UUID) error {
	c, err := repo.GetConfirmation(ctx, id)
	if err != nil {
		return err
	}
	if c.Status != StatusPendingConfirmation {
		return ErrAlreadyResolved
	}
	return ErrConfirmationNotFound
}
