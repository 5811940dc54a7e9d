package queue

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dentaflow/clinic/internal/appointment"
	"github.com/dentaflow/clinic/internal/billing"
	"github.com/dentaflow/clinic/internal/catalog"
	redisclient "github.com/dentaflow/clinic/internal/redis"
)

type mockQueueRepo struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*Entry
}

func newMockQueueRepo() *mockQueueRepo {
	return &mockQueueRepo{entries: make(map[uuid.UUID]*Entry)}
}

func (m *mockQueueRepo) Insert(_ context.Context, e *Entry) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	cp.ID = uuid.New()
	cp.CreatedAt = time.Now()
	m.entries[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *mockQueueRepo) GetByID(_ context.Context, id uuid.UUID) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, ErrEntryNotFound
	}
	out := *e
	return &out, nil
}

func (m *mockQueueRepo) FindActiveByPatient(_ context.Context, patientID uuid.UUID) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.PatientID == patientID && (e.Status == StatusWaiting || e.Status == StatusServing) {
			out := *e
			return &out, nil
		}
	}
	return nil, ErrEntryNotFound
}

func (m *mockQueueRepo) FindServing(_ context.Context) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.Status == StatusServing {
			out := *e
			return &out, nil
		}
	}
	return nil, ErrEntryNotFound
}

func (m *mockQueueRepo) FindNextWaiting(_ context.Context) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var next *Entry
	for _, e := range m.entries {
		if e.Status != StatusWaiting {
			continue
		}
		if next == nil || e.Number < next.Number {
			next = e
		}
	}
	if next == nil {
		return nil, ErrEntryNotFound
	}
	out := *next
	return &out, nil
}

func (m *mockQueueRepo) CountWaiting(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e.Status == StatusWaiting {
			n++
		}
	}
	return n, nil
}

func (m *mockQueueRepo) UpdateStatus(_ context.Context, id uuid.UUID, from []Status, to Status) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, ErrEntryNotFound
	}
	matched := false
	for _, f := range from {
		if e.Status == f {
			matched = true
			break
		}
	}
	if !matched {
		// Conditional update hit zero rows.
		return nil, ErrEntryNotFound
	}
	e.Status = to
	out := *e
	return &out, nil
}

func (m *mockQueueRepo) ListBetween(_ context.Context, from, to time.Time) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Entry
	for _, e := range m.entries {
		if !e.CreatedAt.Before(from) && e.CreatedAt.Before(to) {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (m *mockQueueRepo) MaxNumber(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	max := 0
	for _, e := range m.entries {
		if e.Number > max {
			max = e.Number
		}
	}
	return max, nil
}

// fakeLocker serializes critical sections with a plain mutex.
type fakeLocker struct {
	mu sync.Mutex
}

func (l *fakeLocker) WithLock(ctx context.Context, _ string, fn func(context.Context) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(ctx)
}

type fakeCounter struct {
	mu sync.Mutex
	n  int
}

func (c *fakeCounter) Next(context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return c.n, nil
}

type mockEngineLedger struct {
	mu       sync.Mutex
	appts    map[uuid.UUID]*appointment.Appointment
	services map[uuid.UUID][]catalog.Service
}

func newMockEngineLedger() *mockEngineLedger {
	return &mockEngineLedger{
		appts:    make(map[uuid.UUID]*appointment.Appointment),
		services: make(map[uuid.UUID][]catalog.Service),
	}
}

func (m *mockEngineLedger) Get(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	out := *a
	return &out, nil
}

func (m *mockEngineLedger) ServicesOf(_ context.Context, id uuid.UUID) ([]catalog.Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.services[id], nil
}

func (m *mockEngineLedger) MarkInProgress(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.appts[id]; ok {
		a.Status = appointment.StatusInProgress
	}
	return nil
}

func (m *mockEngineLedger) MarkCompleted(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.appts[id]; ok {
		a.Status = appointment.StatusCompleted
	}
	return nil
}

type noopFeed struct{}

func (noopFeed) Publish(context.Context, redisclient.ChangeEvent) error { return nil }

func newTestEngine(repo *mockQueueRepo, ledger *mockEngineLedger) *Engine {
	biller := billing.NewService(nil, zerolog.Nop())
	return NewEngine(repo, ledger, biller, &fakeCounter{}, &fakeLocker{}, noopFeed{}, time.UTC, zerolog.Nop())
}

func TestEnqueueAssignsSequentialNumbers(t *testing.T) {
	repo := newMockQueueRepo()
	eng := newTestEngine(repo, newMockEngineLedger())

	first, err := eng.Enqueue(context.Background(), uuid.New(), nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := eng.Enqueue(context.Background(), uuid.New(), nil)
	if err != nil {
		t.Fatal(err)
	}

	if first.Number != 1 || second.Number != 2 {
		t.Fatalf("numbers = %d, %d; want 1, 2", first.Number, second.Number)
	}
	if first.EstimatedWaitMinutes != 0 {
		t.Fatalf("first wait = %d, want 0", first.EstimatedWaitMinutes)
	}
	if second.EstimatedWaitMinutes != 30 {
		t.Fatalf("second wait = %d, want 30", second.EstimatedWaitMinutes)
	}
}

func TestEnqueueDuplicateGuard(t *testing.T) {
	repo := newMockQueueRepo()
	eng := newTestEngine(repo, newMockEngineLedger())
	patientID := uuid.New()

	first, err := eng.Enqueue(context.Background(), patientID, nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := eng.Enqueue(context.Background(), patientID, nil); !errors.Is(err, ErrAlreadyQueued) {
		t.Fatalf("expected ErrAlreadyQueued, got %v", err)
	}

	if _, err := eng.Complete(context.Background(), first.ID); err != nil {
		t.Fatal(err)
	}

	// A finished visit no longer blocks re-queueing.
	if _, err := eng.Enqueue(context.Background(), patientID, nil); err != nil {
		t.Fatalf("re-enqueue after completion failed: %v", err)
	}
}

func TestEnqueueUnknownAppointment(t *testing.T) {
	eng := newTestEngine(newMockQueueRepo(), newMockEngineLedger())
	missing := uuid.New()

	if _, err := eng.Enqueue(context.Background(), uuid.New(), &missing); !errors.Is(err, appointment.ErrAppointmentNotFound) {
		t.Fatalf("expected ErrAppointmentNotFound, got %v", err)
	}
}

func TestCallNextServesInOrder(t *testing.T) {
	repo := newMockQueueRepo()
	eng := newTestEngine(repo, newMockEngineLedger())

	a, _ := eng.Enqueue(context.Background(), uuid.New(), nil)
	b, _ := eng.Enqueue(context.Background(), uuid.New(), nil)

	called, err := eng.CallNext(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if called.ID != a.ID || called.Status != StatusServing {
		t.Fatalf("first call served %v/%s, want %v/serving", called.ID, called.Status, a.ID)
	}

	// Calling the next patient implicitly completes the current one.
	called, err = eng.CallNext(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if called.ID != b.ID {
		t.Fatalf("second call served %v, want %v", called.ID, b.ID)
	}

	prev, _ := repo.GetByID(context.Background(), a.ID)
	if prev.Status != StatusCompleted {
		t.Fatalf("displaced entry status = %s, want completed", prev.Status)
	}

	servingCount := 0
	for _, e := range repo.entries {
		if e.Status == StatusServing {
			servingCount++
		}
	}
	if servingCount != 1 {
		t.Fatalf("serving count = %d, want 1", servingCount)
	}
}

func TestCallNextEmptyQueue(t *testing.T) {
	eng := newTestEngine(newMockQueueRepo(), newMockEngineLedger())

	if _, err := eng.CallNext(context.Background()); !errors.Is(err, ErrEmptyQueue) {
		t.Fatalf("expected ErrEmptyQueue, got %v", err)
	}
}

func TestCallSpecific(t *testing.T) {
	repo := newMockQueueRepo()
	eng := newTestEngine(repo, newMockEngineLedger())

	a, _ := eng.Enqueue(context.Background(), uuid.New(), nil)
	b, _ := eng.Enqueue(context.Background(), uuid.New(), nil)

	// Serve b out of order.
	called, err := eng.CallSpecific(context.Background(), b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if called.ID != b.ID || called.Status != StatusServing {
		t.Fatalf("served %v/%s, want %v/serving", called.ID, called.Status, b.ID)
	}

	// Calling the entry already being served is a no-op.
	again, err := eng.CallSpecific(context.Background(), b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != b.ID || again.Status != StatusServing {
		t.Fatalf("repeat call changed state: %v/%s", again.ID, again.Status)
	}

	// Calling a displaces b.
	called, err = eng.CallSpecific(context.Background(), a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if called.ID != a.ID {
		t.Fatalf("served %v, want %v", called.ID, a.ID)
	}
	displaced, _ := repo.GetByID(context.Background(), b.ID)
	if displaced.Status != StatusCompleted {
		t.Fatalf("displaced status = %s, want completed", displaced.Status)
	}

	// A completed entry cannot be called.
	if _, err := eng.CallSpecific(context.Background(), b.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestCompleteDraftFromAppointmentServices(t *testing.T) {
	repo := newMockQueueRepo()
	ledger := newMockEngineLedger()
	eng := newTestEngine(repo, ledger)

	apptID := uuid.New()
	ledger.appts[apptID] = &appointment.Appointment{ID: apptID, Status: appointment.StatusConfirmed}
	ledger.services[apptID] = []catalog.Service{
		{ID: uuid.New(), Name: "Oral Prophylaxis", Price: 1200, DurationMinutes: 45},
		{ID: uuid.New(), Name: "Dental X-Ray", Price: 600, DurationMinutes: 15},
	}

	e, err := eng.Enqueue(context.Background(), uuid.New(), &apptID)
	if err != nil {
		t.Fatal(err)
	}

	result, err := eng.Complete(context.Background(), e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if result.DraftErr != nil {
		t.Fatalf("unexpected draft error: %v", result.DraftErr)
	}
	if result.Draft == nil {
		t.Fatal("no draft returned")
	}
	if len(result.Draft.Items) != 2 {
		t.Fatalf("draft items = %d, want 2", len(result.Draft.Items))
	}
	if result.Draft.Total != 1800 {
		t.Fatalf("draft total = %.2f, want 1800", result.Draft.Total)
	}

	// Completion syncs the linked appointment.
	if ledger.appts[apptID].Status != appointment.StatusCompleted {
		t.Fatalf("linked appointment status = %s, want completed", ledger.appts[apptID].Status)
	}
}

func TestCompleteDraftFallbacks(t *testing.T) {
	repo := newMockQueueRepo()
	ledger := newMockEngineLedger()
	eng := newTestEngine(repo, ledger)

	// Appointment with no services but teeth noted.
	teethAppt := uuid.New()
	ledger.appts[teethAppt] = &appointment.Appointment{
		ID: teethAppt, Status: appointment.StatusConfirmed,
		TeethInvolved: "16, 17", Notes: "sensitivity on chewing",
	}

	e, _ := eng.Enqueue(context.Background(), uuid.New(), &teethAppt)
	result, err := eng.Complete(context.Background(), e.ID)
	if err != nil {
		t.Fatal(err)
	}
	item := result.Draft.Items[0]
	if item.ServiceName != "Treatment for: 16, 17" {
		t.Fatalf("pseudo service name = %q", item.ServiceName)
	}
	if item.Description != "sensitivity on chewing" {
		t.Fatalf("pseudo service description = %q", item.Description)
	}
	if item.UnitPrice != DefaultServicePrice {
		t.Fatalf("pseudo service price = %.2f, want %.2f", item.UnitPrice, DefaultServicePrice)
	}

	// Walk-in with no appointment at all.
	e, _ = eng.Enqueue(context.Background(), uuid.New(), nil)
	result, err = eng.Complete(context.Background(), e.ID)
	if err != nil {
		t.Fatal(err)
	}
	item = result.Draft.Items[0]
	if item.ServiceName != DefaultServiceName {
		t.Fatalf("fallback service name = %q, want %q", item.ServiceName, DefaultServiceName)
	}
	if result.Draft.Total != DefaultServicePrice {
		t.Fatalf("fallback total = %.2f, want %.2f", result.Draft.Total, DefaultServicePrice)
	}
}

func TestCompleteTerminalStates(t *testing.T) {
	repo := newMockQueueRepo()
	eng := newTestEngine(repo, newMockEngineLedger())

	e, _ := eng.Enqueue(context.Background(), uuid.New(), nil)
	if _, err := eng.Cancel(context.Background(), e.ID); err != nil {
		t.Fatal(err)
	}

	if _, err := eng.Complete(context.Background(), e.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("complete after cancel: expected ErrInvalidTransition, got %v", err)
	}
	if _, err := eng.Cancel(context.Background(), e.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("double cancel: expected ErrInvalidTransition, got %v", err)
	}
	if _, err := eng.Complete(context.Background(), uuid.New()); !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
}

func TestDraftForRequiresCompletion(t *testing.T) {
	repo := newMockQueueRepo()
	eng := newTestEngine(repo, newMockEngineLedger())

	e, _ := eng.Enqueue(context.Background(), uuid.New(), nil)
	if _, err := eng.DraftFor(context.Background(), e.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for waiting entry, got %v", err)
	}

	if _, err := eng.Complete(context.Background(), e.ID); err != nil {
		t.Fatal(err)
	}
	draft, err := eng.DraftFor(context.Background(), e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if draft.QueueEntryID != e.ID {
		t.Fatalf("draft entry = %v, want %v", draft.QueueEntryID, e.ID)
	}
}

func TestConcurrentEnqueueUniqueNumbers(t *testing.T) {
	repo := newMockQueueRepo()
	eng := newTestEngine(repo, newMockEngineLedger())

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := eng.Enqueue(context.Background(), uuid.New(), nil); err != nil {
				t.Errorf("enqueue: %v", err)
			}
		}()
	}
	wg.Wait()

	seen := make(map[int]bool)
	for _, e := range repo.entries {
		if seen[e.Number] {
			t.Fatalf("duplicate queue number %d", e.Number)
		}
		seen[e.Number] = true
	}
	if len(seen) != n {
		t.Fatalf("issued %d numbers, want %d", len(seen), n)
	}
}
