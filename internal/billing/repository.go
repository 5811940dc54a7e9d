package billing

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrInvoiceNotFound = errors.New("invoice not found")
	ErrDuplicateNumber = errors.New("invoice number already exists")
)

// Repository contains all DB interactions needed by the generator.
type Repository interface {
	// Insert persists the invoice and its items in one transaction.
	// Returns ErrDuplicateNumber when the invoice number is taken.
	Insert(ctx context.Context, inv *Invoice) (*Invoice, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Invoice, error)
}
