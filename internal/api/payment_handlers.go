package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dentaflow/clinic/internal/auth"
	"github.com/dentaflow/clinic/internal/billing"
	"github.com/dentaflow/clinic/internal/payment"
)

func confirmationResponse(c *payment.Confirmation) ConfirmationResponse {
	return ConfirmationResponse{
		ID:              c.ID,
		InvoiceID:       c.InvoiceID,
		PatientID:       c.PatientID,
		Amount:          c.Amount,
		PaymentMethod:   c.PaymentMethod,
		ReferenceNumber: c.ReferenceNumber,
		ProofURL:        c.ProofURL,
		Status:          string(c.Status),
		Remarks:         c.Remarks,
		ConfirmedBy:     c.ConfirmedBy,
		ConfirmedAt:     c.ConfirmedAt,
		CreatedAt:       c.CreatedAt,
	}
}

func submitConfirmationHandler(svc *payment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SubmitConfirmationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		invoiceID, err := uuid.Parse(req.InvoiceID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_invoice_id", "invoice_id must be a valid UUID")
			return
		}

		// Default the patient to the authenticated caller.
		var patientID uuid.UUID
		if req.PatientID != "" {
			patientID, err = uuid.Parse(req.PatientID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
				return
			}
		} else if actor, ok := auth.FromContext(r.Context()); ok {
			patientID = actor.ID
		}

		c, err := svc.Submit(r.Context(), payment.SubmitParams{
			InvoiceID:       invoiceID,
			PatientID:       patientID,
			Amount:          req.Amount,
			PaymentMethod:   req.PaymentMethod,
			ReferenceNumber: req.ReferenceNumber,
			ProofURL:        req.ProofURL,
		})
		if err != nil {
			handlePaymentError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, confirmationResponse(c))
	}
}

func resolveConfirmationHandler(svc *payment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_confirmation_id", "id must be a valid UUID")
			return
		}

		var req ResolveConfirmationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		var reviewerID uuid.UUID
		if actor, ok := auth.FromContext(r.Context()); ok {
			reviewerID = actor.ID
		}

		c, err := svc.Resolve(r.Context(), id, payment.Decision(req.Decision), req.Remarks, reviewerID)
		if err != nil {
			handlePaymentError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, confirmationResponse(c))
	}
}

func listPendingConfirmationsHandler(svc *payment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		confirmations, err := svc.ListPending(r.Context(), limit, offset)
		if err != nil {
			handlePaymentError(w, err)
			return
		}

		resp := make([]ConfirmationResponse, 0, len(confirmations))
		for i := range confirmations {
			resp = append(resp, confirmationResponse(&confirmations[i]))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func handlePaymentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, payment.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, payment.ErrConfirmationNotFound):
		writeError(w, http.StatusNotFound, "confirmation_not_found", err.Error())
	case errors.Is(err, billing.ErrInvoiceNotFound):
		writeError(w, http.StatusNotFound, "invoice_not_found", err.Error())
	case errors.Is(err, payment.ErrAlreadyResolved):
		writeError(w, http.StatusConflict, "already_resolved", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
