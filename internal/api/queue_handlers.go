package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dentaflow/clinic/internal/appointment"
	"github.com/dentaflow/clinic/internal/queue"
	redisclient "github.com/dentaflow/clinic/internal/redis"
)

func enqueueHandler(eng *queue.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req EnqueueRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		var appointmentID *uuid.UUID
		if req.AppointmentID != "" {
			id, err := uuid.Parse(req.AppointmentID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_appointment_id", "appointment_id must be a valid UUID")
				return
			}
			appointmentID = &id
		}

		entry, err := eng.Enqueue(r.Context(), patientID, appointmentID)
		if err != nil {
			handleQueueError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, queueEntryResponse(entry, time.Now()))
	}
}

func callNextHandler(eng *queue.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry, err := eng.CallNext(r.Context())
		if err != nil {
			handleQueueError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, queueEntryResponse(entry, time.Now()))
	}
}

func callSpecificHandler(eng *queue.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_queue_entry_id", "id must be a valid UUID")
			return
		}

		entry, err := eng.CallSpecific(r.Context(), id)
		if err != nil {
			handleQueueError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, queueEntryResponse(entry, time.Now()))
	}
}

func completeQueueHandler(eng *queue.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_queue_entry_id", "id must be a valid UUID")
			return
		}

		result, err := eng.Complete(r.Context(), id)
		if err != nil {
			handleQueueError(w, err)
			return
		}

		resp := CompleteResponse{
			Entry: queueEntryResponse(result.Entry, time.Now()),
			Draft: draftResponse(result.Draft),
		}
		if result.DraftErr != nil {
			resp.DraftError = result.DraftErr.Error()
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func cancelQueueHandler(eng *queue.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_queue_entry_id", "id must be a valid UUID")
			return
		}

		entry, err := eng.Cancel(r.Context(), id)
		if err != nil {
			handleQueueError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, queueEntryResponse(entry, time.Now()))
	}
}

func listTodayQueueHandler(eng *queue.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := eng.ListToday(r.Context())
		if err != nil {
			handleQueueError(w, err)
			return
		}

		now := time.Now()
		resp := make([]QueueEntryResponse, 0, len(entries))
		for i := range entries {
			resp = append(resp, queueEntryResponse(&entries[i], now))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func handleQueueError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, queue.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, queue.ErrEntryNotFound):
		writeError(w, http.StatusNotFound, "queue_entry_not_found", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, queue.ErrEmptyQueue):
		writeError(w, http.StatusConflict, "queue_empty", err.Error())
	case errors.Is(err, queue.ErrAlreadyQueued):
		writeError(w, http.StatusConflict, "already_queued", err.Error())
	case errors.Is(err, queue.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "queue_busy", "another terminal holds the queue, please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
