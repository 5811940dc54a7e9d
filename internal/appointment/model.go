package appointment

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no-show"
)

// Branch is one of the clinic's two fixed physical locations.
type Branch string

const (
	BranchCabugao Branch = "Cabugao"
	BranchCandon  Branch = "Candon"
)

func ValidBranch(b Branch) bool {
	return b == BranchCabugao || b == BranchCandon
}

// MinDurationMinutes is the floor for an appointment's effective duration.
const MinDurationMinutes = 30

type Appointment struct {
	ID            uuid.UUID
	PatientID     uuid.UUID
	Branch        Branch
	Date          time.Time // calendar date of the visit
	Time          string    // clinic-local start, "HH:MM"
	Status        Status
	IsEmergency   bool
	Notes         string
	TeethInvolved string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// StartMinute returns the appointment's start as minutes from midnight.
func (a *Appointment) StartMinute() (int, error) {
	return ParseClock(a.Time)
}

// ParseClock converts "HH:MM" to minutes from midnight.
func ParseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	return h*60 + m, nil
}
