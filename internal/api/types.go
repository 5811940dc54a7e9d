package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/dentaflow/clinic/internal/billing"
	"github.com/dentaflow/clinic/internal/queue"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type ServiceResponse struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	Price           float64   `json:"price"`
	DurationMinutes int       `json:"duration_minutes"`
}

type SlotResponse struct {
	Start     string `json:"start"`
	End       string `json:"end"`
	Available bool   `json:"available"`
}

type AvailabilityResponse struct {
	Branch string         `json:"branch"`
	Date   string         `json:"date"`
	Slots  []SlotResponse `json:"slots"`
}

type CreateAppointmentRequest struct {
	PatientID     string   `json:"patient_id"`
	Branch        string   `json:"branch"`
	Date          string   `json:"date"`
	Time          string   `json:"time"`
	ServiceIDs    []string `json:"service_ids"`
	Notes         string   `json:"notes"`
	TeethInvolved string   `json:"teeth_involved"`
	IsEmergency   bool     `json:"is_emergency"`
}

type RescheduleAppointmentRequest struct {
	Branch     string   `json:"branch"`
	Date       string   `json:"date"`
	Time       string   `json:"time"`
	ServiceIDs []string `json:"service_ids"`
}

type SetDurationRequest struct {
	Minutes int `json:"minutes"`
}

type AppointmentResponse struct {
	ID            uuid.UUID   `json:"id"`
	PatientID     uuid.UUID   `json:"patient_id"`
	Branch        string      `json:"branch"`
	Date          string      `json:"date"`
	Time          string      `json:"time"`
	Status        string      `json:"status"`
	IsEmergency   bool        `json:"is_emergency"`
	Notes         string      `json:"notes,omitempty"`
	TeethInvolved string      `json:"teeth_involved,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	ServiceIDs    []uuid.UUID `json:"service_ids,omitempty"`
}

type EnqueueRequest struct {
	PatientID     string `json:"patient_id"`
	AppointmentID string `json:"appointment_id,omitempty"`
}

type QueueEntryResponse struct {
	ID                   uuid.UUID  `json:"id"`
	PatientID            uuid.UUID  `json:"patient_id"`
	AppointmentID        *uuid.UUID `json:"appointment_id,omitempty"`
	Number               int        `json:"queue_number"`
	Status               string     `json:"status"`
	EstimatedWaitMinutes int        `json:"estimated_wait_minutes"`
	WaitingMinutes       int        `json:"waiting_minutes"`
	CreatedAt            time.Time  `json:"created_at"`
}

type DraftItemResponse struct {
	ServiceName string  `json:"service_name"`
	Description string  `json:"description,omitempty"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

type DraftResponse struct {
	PatientID    uuid.UUID           `json:"patient_id"`
	QueueEntryID uuid.UUID           `json:"queue_entry_id"`
	Items        []DraftItemResponse `json:"items"`
	Total        float64             `json:"total"`
}

type CompleteResponse struct {
	Entry      QueueEntryResponse `json:"entry"`
	Draft      *DraftResponse     `json:"draft_invoice,omitempty"`
	DraftError string             `json:"draft_error,omitempty"`
}

type InvoiceItemResponse struct {
	ServiceName string  `json:"service_name"`
	Description string  `json:"description,omitempty"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

type InvoiceResponse struct {
	ID            uuid.UUID             `json:"id"`
	Number        string                `json:"invoice_number"`
	InvoiceDate   time.Time             `json:"invoice_date"`
	DueDate       time.Time             `json:"due_date"`
	PatientID     uuid.UUID             `json:"patient_id"`
	TotalAmount   float64               `json:"total_amount"`
	AmountPaid    float64               `json:"amount_paid"`
	Status        string                `json:"status"`
	PaymentMethod *string               `json:"payment_method,omitempty"`
	Items         []InvoiceItemResponse `json:"items,omitempty"`
}

type SubmitConfirmationRequest struct {
	InvoiceID       string  `json:"invoice_id"`
	PatientID       string  `json:"patient_id,omitempty"`
	Amount          float64 `json:"amount"`
	PaymentMethod   string  `json:"payment_method"`
	ReferenceNumber string  `json:"reference_number,omitempty"`
	ProofURL        string  `json:"proof_url,omitempty"`
}

type ResolveConfirmationRequest struct {
	Decision string `json:"decision"`
	Remarks  string `json:"remarks,omitempty"`
}

type ConfirmationResponse struct {
	ID              uuid.UUID  `json:"id"`
	InvoiceID       uuid.UUID  `json:"invoice_id"`
	PatientID       uuid.UUID  `json:"patient_id"`
	Amount          float64    `json:"amount"`
	PaymentMethod   string     `json:"payment_method"`
	ReferenceNumber string     `json:"reference_number,omitempty"`
	ProofURL        string     `json:"proof_url,omitempty"`
	Status          string     `json:"status"`
	Remarks         *string    `json:"remarks,omitempty"`
	ConfirmedBy     *uuid.UUID `json:"confirmed_by,omitempty"`
	ConfirmedAt     *time.Time `json:"confirmed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func queueEntryResponse(e *queue.Entry, at time.Time) QueueEntryResponse {
	return QueueEntryResponse{
		ID:                   e.ID,
		PatientID:            e.PatientID,
		AppointmentID:        e.AppointmentID,
		Number:               e.Number,
		Status:               string(e.Status),
		EstimatedWaitMinutes: e.EstimatedWaitMinutes,
		WaitingMinutes:       e.WaitingMinutes(at),
		CreatedAt:            e.CreatedAt,
	}
}

func draftResponse(d *billing.Draft) *DraftResponse {
	if d == nil {
		return nil
	}
	resp := &DraftResponse{
		PatientID:    d.PatientID,
		QueueEntryID: d.QueueEntryID,
		Total:        d.Total,
	}
	for _, item := range d.Items {
		resp.Items = append(resp.Items, DraftItemResponse(item))
	}
	return resp
}

func invoiceResponse(inv *billing.Invoice) InvoiceResponse {
	resp := InvoiceResponse{
		ID:            inv.ID,
		Number:        inv.Number,
		InvoiceDate:   inv.InvoiceDate,
		DueDate:       inv.DueDate,
		PatientID:     inv.PatientID,
		TotalAmount:   inv.TotalAmount,
		AmountPaid:    inv.AmountPaid,
		Status:        string(inv.Status),
		PaymentMethod: inv.PaymentMethod,
	}
	for _, item := range inv.Items {
		resp.Items = append(resp.Items, InvoiceItemResponse{
			ServiceName: item.ServiceName,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}
	return resp
}
