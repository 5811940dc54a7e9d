package payment

import (
	"time"

	"github.com/google/uuid"
)

type ConfirmationStatus string

const (
	StatusPendingConfirmation ConfirmationStatus = "pending_confirmation"
	StatusConfirmed           ConfirmationStatus = "payment_confirmed"
	StatusRejected            ConfirmationStatus = "rejected"
)

type Decision string

const (
	DecisionConfirm Decision = "confirm"
	DecisionReject  Decision = "reject"
)

// Confirmation is a patient-submitted claim of payment awaiting staff
// review. The linked invoice is untouched until a reviewer confirms.
type Confirmation struct {
	ID              uuid.UUID
	InvoiceID       uuid.UUID
	PatientID       uuid.UUID
	Amount          float64
	PaymentMethod   string
	ReferenceNumber string
	ProofURL        string
	Status          ConfirmationStatus
	Remarks         *string
	ConfirmedBy     *uuid.UUID
	ConfirmedAt     *time.Time
	CreatedAt       time.Time
}

// Payment is the immutable record written when a confirmation is
// approved.
type Payment struct {
	ID              uuid.UUID
	InvoiceID       uuid.UUID
	Amount          float64
	PaymentDate     time.Time
	PaymentMethod   string
	ReferenceNumber string
	CreatedBy       *uuid.UUID
	CreatedAt       time.Time
}
