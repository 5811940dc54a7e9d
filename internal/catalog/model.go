package catalog

import (
	"time"

	"github.com/google/uuid"
)

// Service is one entry of the clinic's treatment price list. The catalog
// is maintained by clinic management; the core only reads it.
type Service struct {
	ID              uuid.UUID
	Name            string
	Description     string
	Price           float64
	DurationMinutes int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
