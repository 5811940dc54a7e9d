package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Catalog is the read-only lookup every other component prices against.
// Consumers hold the full list per session; the table is small.
type Catalog struct {
	repo Repository
}

func NewCatalog(repo Repository) *Catalog {
	return &Catalog{repo: repo}
}

func (c *Catalog) List(ctx context.Context) ([]Service, error) {
	services, err := c.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	return services, nil
}

// Resolve loads the services for the given IDs and fails if any ID is
// unknown, so callers can reject bad selections up front.
func (c *Catalog) Resolve(ctx context.Context, ids []uuid.UUID) ([]Service, error) {
	services, err := c.repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load services: %w", err)
	}

	if len(services) != len(dedupe(ids)) {
		return nil, ErrServiceNotFound
	}
	return services, nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	var out []uuid.UUID
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
