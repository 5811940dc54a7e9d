package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

type mockCatalogRepo struct {
	services map[uuid.UUID]Service
}

func (m *mockCatalogRepo) List(context.Context) ([]Service, error) {
	var out []Service
	for _, svc := range m.services {
		out = append(out, svc)
	}
	return out, nil
}

func (m *mockCatalogRepo) GetByIDs(_ context.Context, ids []uuid.UUID) ([]Service, error) {
	seen := make(map[uuid.UUID]bool)
	var out []Service
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if svc, ok := m.services[id]; ok {
			out = append(out, svc)
		}
	}
	return out, nil
}

func TestResolve(t *testing.T) {
	a := Service{ID: uuid.New(), Name: "Dental Consultation", Price: 500, DurationMinutes: 30}
	b := Service{ID: uuid.New(), Name: "Oral Prophylaxis", Price: 1200, DurationMinutes: 45}
	cat := NewCatalog(&mockCatalogRepo{services: map[uuid.UUID]Service{a.ID: a, b.ID: b}})

	services, err := cat.Resolve(context.Background(), []uuid.UUID{a.ID, b.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(services) != 2 {
		t.Fatalf("resolved %d services, want 2", len(services))
	}

	// Duplicate IDs resolve once rather than erroring.
	services, err = cat.Resolve(context.Background(), []uuid.UUID{a.ID, a.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(services) != 1 {
		t.Fatalf("resolved %d services, want 1", len(services))
	}

	// Any unknown ID fails the whole selection.
	if _, err := cat.Resolve(context.Background(), []uuid.UUID{a.ID, uuid.New()}); !errors.Is(err, ErrServiceNotFound) {
		t.Fatalf("expected ErrServiceNotFound, got %v", err)
	}
}
