package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dentaflow/clinic/internal/auth"
	"github.com/dentaflow/clinic/internal/billing"
	"github.com/dentaflow/clinic/internal/queue"
)

// generateInvoiceHandler turns a completed session's draft into a
// persisted invoice. The draft is recomputed server-side so a stale or
// tampered client copy cannot change the amounts.
func generateInvoiceHandler(eng *queue.Engine, svc *billing.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_queue_entry_id", "id must be a valid UUID")
			return
		}

		draft, err := eng.DraftFor(r.Context(), id)
		if err != nil {
			handleQueueError(w, err)
			return
		}

		var actorID uuid.UUID
		if actor, ok := auth.FromContext(r.Context()); ok {
			actorID = actor.ID
		}

		inv, err := svc.GenerateInvoice(r.Context(), actorID, *draft)
		if err != nil {
			handleBillingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, invoiceResponse(inv))
	}
}

func getInvoiceHandler(svc *billing.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_invoice_id", "id must be a valid UUID")
			return
		}

		inv, err := svc.Get(r.Context(), id)
		if err != nil {
			handleBillingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, invoiceResponse(inv))
	}
}

func listInvoicesHandler(svc *billing.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, err := uuid.Parse(r.URL.Query().Get("patient_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		invoices, err := svc.ListByPatient(r.Context(), patientID, limit, offset)
		if err != nil {
			handleBillingError(w, err)
			return
		}

		resp := make([]InvoiceResponse, 0, len(invoices))
		for i := range invoices {
			resp = append(resp, invoiceResponse(&invoices[i]))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func handleBillingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, billing.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, billing.ErrInvoiceNotFound):
		writeError(w, http.StatusNotFound, "invoice_not_found", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
