package billing

import (
	"fmt"
	"math/rand"
	"time"
)

// DueDays is how long after generation an invoice falls due.
const DueDays = 30

// NewNumber builds a human-readable invoice number, INV-YYMMDD-### with a
// random 3-digit suffix. A unique index on the column plus one retry on
// collision covers same-day duplicates.
func NewNumber(t time.Time) string {
	return fmt.Sprintf("INV-%s-%03d", t.Format("060102"), rand.Intn(1000))
}
