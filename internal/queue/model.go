package queue

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusServing   Status = "serving"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Entry records a patient physically waiting for or being served in the
// walk-in line, optionally tied to a scheduled appointment. Entries are
// never deleted; cancelled ones stay for the activity log.
type Entry struct {
	ID                   uuid.UUID
	PatientID            uuid.UUID
	AppointmentID        *uuid.UUID
	Number               int
	Status               Status
	EstimatedWaitMinutes int
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// WaitingMinutes is the display wait time, derived and never persisted.
func (e *Entry) WaitingMinutes(at time.Time) int {
	m := int(at.Sub(e.CreatedAt).Minutes())
	if m < 0 {
		return 0
	}
	return m
}
