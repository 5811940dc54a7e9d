package billing

import (
	"time"

	"github.com/google/uuid"
)

type InvoiceStatus string

const (
	StatusPending InvoiceStatus = "pending"
	StatusPaid    InvoiceStatus = "paid"
)

// StatusFor derives the invoice status: paid iff the amount paid covers
// the total.
func StatusFor(amountPaid, total float64) InvoiceStatus {
	if amountPaid >= total {
		return StatusPaid
	}
	return StatusPending
}

type Invoice struct {
	ID            uuid.UUID
	Number        string
	InvoiceDate   time.Time
	DueDate       time.Time
	PatientID     uuid.UUID
	TotalAmount   float64
	AmountPaid    float64
	Status        InvoiceStatus
	PaymentMethod *string
	Notes         string
	CreatedBy     *uuid.UUID
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Items         []Item
}

type Item struct {
	ID          uuid.UUID
	InvoiceID   uuid.UUID
	ServiceName string
	Description string
	Quantity    int
	UnitPrice   float64
}

// Draft is the computed-but-not-yet-persisted itemization shown to staff
// when a queue session completes. No invoice row exists until staff
// confirm it.
type Draft struct {
	PatientID    uuid.UUID
	QueueEntryID uuid.UUID
	Items        []DraftItem
	Total        float64
}

type DraftItem struct {
	ServiceName string
	Description string
	Quantity    int
	UnitPrice   float64
}
