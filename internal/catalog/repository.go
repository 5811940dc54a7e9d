package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrServiceNotFound = errors.New("service not found")
)

// Repository contains all DB interactions needed by the catalog.
type Repository interface {
	List(ctx context.Context) ([]Service, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]Service, error)
}
