package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/dentaflow/clinic/internal/appointment"
)

// SlotMinutes is the booking grid granularity.
const SlotMinutes = 30

type Slot struct {
	Start     time.Time
	End       time.Time
	Available bool
}

// Ledger supplies the booked footprint the calculator blocks against.
type Ledger interface {
	DayLoads(ctx context.Context, branch appointment.Branch, date time.Time) ([]appointment.DayLoad, error)
}

type Calculator struct {
	ledger Ledger
	loc    *time.Location
}

func NewCalculator(ledger Ledger, loc *time.Location) *Calculator {
	return &Calculator{ledger: ledger, loc: loc}
}

// ComputeSlots returns the day's booking grid for a branch with each
// slot's availability for the requested duration. A closed day yields an
// empty grid; a fetch failure propagates so callers can tell "no slots"
// from "lookup failed".
func (c *Calculator) ComputeSlots(ctx context.Context, branch appointment.Branch, date time.Time, requestedMinutes int) ([]Slot, error) {
	if !appointment.ValidBranch(branch) {
		return nil, fmt.Errorf("%w: unknown branch %q", appointment.ErrValidation, branch)
	}
	if requestedMinutes <= 0 {
		requestedMinutes = SlotMinutes
	}

	w, open := hoursFor(branch, date.Weekday())
	if !open {
		return []Slot{}, nil
	}

	loads, err := c.ledger.DayLoads(ctx, branch, date)
	if err != nil {
		return nil, fmt.Errorf("load booked appointments: %w", err)
	}

	// Mark every 30-minute tick an existing appointment overlaps.
	blocked := make(map[int]bool)
	for tick := w.open; tick < w.close; tick += SlotMinutes {
		for _, l := range loads {
			if tick < l.StartMinute+l.DurationMinutes && tick+SlotMinutes > l.StartMinute {
				blocked[tick] = true
				break
			}
		}
	}

	var slots []Slot
	for start := w.open; start+SlotMinutes <= w.close; start += SlotMinutes {
		available := start+requestedMinutes <= w.close
		if available {
			for tick := start; tick < start+requestedMinutes; tick += SlotMinutes {
				if blocked[tick] {
					available = false
					break
				}
			}
		}

		slots = append(slots, Slot{
			Start:     c.clock(date, start),
			End:       c.clock(date, start+requestedMinutes),
			Available: available,
		})
	}

	return slots, nil
}

func (c *Calculator) clock(date time.Time, minute int) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), minute/60, minute%60, 0, 0, c.loc)
}
