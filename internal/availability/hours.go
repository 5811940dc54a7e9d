package availability

import (
	"time"

	"github.com/dentaflow/clinic/internal/appointment"
)

// window is an operating window in minutes from midnight.
type window struct {
	open  int
	close int
}

// Weekly operating hours per branch. Each branch is closed exactly one
// day of the week.
var branchHours = map[appointment.Branch]map[time.Weekday]window{
	appointment.BranchCabugao: {
		time.Monday:    {open: 8 * 60, close: 17 * 60},
		time.Tuesday:   {open: 8 * 60, close: 12 * 60},
		time.Wednesday: {open: 8 * 60, close: 17 * 60},
		time.Thursday:  {open: 8 * 60, close: 17 * 60},
		time.Friday:    {open: 8 * 60, close: 17 * 60},
		time.Saturday:  {open: 8 * 60, close: 17 * 60},
		// closed Sunday
	},
	appointment.BranchCandon: {
		time.Monday:   {open: 9 * 60, close: 17 * 60},
		time.Tuesday:  {open: 9 * 60, close: 17 * 60},
		time.Thursday: {open: 9 * 60, close: 17 * 60},
		time.Friday:   {open: 9 * 60, close: 17 * 60},
		time.Saturday: {open: 9 * 60, close: 17 * 60},
		time.Sunday:   {open: 9 * 60, close: 17 * 60},
		// closed Wednesday
	},
}

// hoursFor returns the operating window for a branch weekday, or ok=false
// on the branch's closed day.
func hoursFor(branch appointment.Branch, day time.Weekday) (window, bool) {
	hours, ok := branchHours[branch]
	if !ok {
		return window{}, false
	}
	w, ok := hours[day]
	return w, ok
}
