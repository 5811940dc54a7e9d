package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dentaflow/clinic/internal/appointment"
	"github.com/dentaflow/clinic/internal/availability"
	"github.com/dentaflow/clinic/internal/catalog"
)

func listServicesHandler(cat *catalog.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		services, err := cat.List(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := make([]ServiceResponse, 0, len(services))
		for _, svc := range services {
			resp = append(resp, ServiceResponse{
				ID:              svc.ID,
				Name:            svc.Name,
				Description:     svc.Description,
				Price:           svc.Price,
				DurationMinutes: svc.DurationMinutes,
			})
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func availabilityHandler(calc *availability.Calculator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		branch := appointment.Branch(r.URL.Query().Get("branch"))

		date, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		duration := 0
		if raw := r.URL.Query().Get("duration"); raw != "" {
			duration, err = strconv.Atoi(raw)
			if err != nil || duration < 0 {
				writeError(w, http.StatusBadRequest, "invalid_duration", "duration must be a positive number of minutes")
				return
			}
		}

		slots, err := calc.ComputeSlots(r.Context(), branch, date, duration)
		if err != nil {
			if errors.Is(err, appointment.ErrValidation) {
				writeError(w, http.StatusBadRequest, "invalid_branch", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := AvailabilityResponse{
			Branch: string(branch),
			Date:   date.Format("2006-01-02"),
			Slots:  make([]SlotResponse, 0, len(slots)),
		}
		for _, s := range slots {
			resp.Slots = append(resp.Slots, SlotResponse{
				Start:     s.Start.Format("15:04"),
				End:       s.End.Format("15:04"),
				Available: s.Available,
			})
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
