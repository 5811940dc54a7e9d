package payment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dentaflow/clinic/internal/billing"
)

var (
	ErrConfirmationNotFound = errors.New("payment confirmation not found")
	ErrAlreadyResolved      = errors.New("payment confirmation already resolved")
)

type Repository interface {
	InsertConfirmation(ctx context.Context, c *Confirmation) (*Confirmation, error)
	GetConfirmation(ctx context.Context, id uuid.UUID) (*Confirmation, error)
	ListPending(ctx context.Context, limit, offset int) ([]Confirmation, error)

	// UpdateConfirmationStatus moves a confirmation out of
	// pending_confirmation. Returns the updated row, or
	// ErrConfirmationNotFound when no pending row matched.
	UpdateConfirmationStatus(ctx context.Context, id uuid.UUID, to ConfirmationStatus, remarks *string, reviewerID uuid.UUID, at time.Time) (*Confirmation, error)

	// GetInvoiceForUpdate loads the invoice with a row lock so the
	// payment application is serialized per invoice.
	GetInvoiceForUpdate(ctx context.Context, id uuid.UUID) (*billing.Invoice, error)
	UpdateInvoicePayment(ctx context.Context, id uuid.UUID, amountPaid float64, status billing.InvoiceStatus, method string) error
	InsertPayment(ctx context.Context, p *Payment) error

	// InTx runs fn against a transaction-scoped repository. The
	// transaction commits iff fn returns nil.
	InTx(ctx context.Context, fn func(Repository) error) error
}
