package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dentaflow/clinic/internal/billing"
)

type mockPaymentRepo struct {
	confirmations map[uuid.UUID]*Confirmation
	invoices      map[uuid.UUID]*billing.Invoice
	payments      []Payment
}

func newMockPaymentRepo() *mockPaymentRepo {
	return &mockPaymentRepo{
		confirmations: make(map[uuid.UUID]*Confirmation),
		invoices:      make(map[uuid.UUID]*billing.Invoice),
	}
}

func (m *mockPaymentRepo) InsertConfirmation(_ context.Context, c *Confirmation) (*Confirmation, error) {
	cp := *c
	cp.ID = uuid.New()
	cp.Status = StatusPendingConfirmation
	cp.CreatedAt = time.Now()
	m.confirmations[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *mockPaymentRepo) GetConfirmation(_ context.Context, id uuid.UUID) (*Confirmation, error) {
	c, ok := m.confirmations[id]
	if !ok {
		return nil, ErrConfirmationNotFound
	}
	out := *c
	return &out, nil
}

func (m *mockPaymentRepo) ListPending(_ context.Context, _, _ int) ([]Confirmation, error) {
	var out []Confirmation
	for _, c := range m.confirmations {
		if c.Status == StatusPendingConfirmation {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *mockPaymentRepo) UpdateConfirmationStatus(_ context.Context, id uuid.UUID, to ConfirmationStatus, remarks *string, reviewerID uuid.UUID, at time.Time) (*Confirmation, error) {
	c, ok := m.confirmations[id]
	if !ok || c.Status != StatusPendingConfirmation {
		// Conditional update hit zero rows.
		return nil, ErrConfirmationNotFound
	}
	c.Status = to
	c.Remarks = remarks
	c.ConfirmedBy = &reviewerID
	c.ConfirmedAt = &at
	out := *c
	return &out, nil
}

func (m *mockPaymentRepo) GetInvoiceForUpdate(_ context.Context, id uuid.UUID) (*billing.Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return nil, billing.ErrInvoiceNotFound
	}
	out := *inv
	return &out, nil
}

func (m *mockPaymentRepo) UpdateInvoicePayment(_ context.Context, id uuid.UUID, amountPaid float64, status billing.InvoiceStatus, method string) error {
	inv, ok := m.invoices[id]
	if !ok {
		return billing.ErrInvoiceNotFound
	}
	inv.AmountPaid = amountPaid
	inv.Status = status
	inv.PaymentMethod = &method
	return nil
}

func (m *mockPaymentRepo) InsertPayment(_ context.Context, p *Payment) error {
	cp := *p
	cp.ID = uuid.New()
	m.payments = append(m.payments, cp)
	return nil
}

func (m *mockPaymentRepo) InTx(_ context.Context, fn func(Repository) error) error {
	return fn(m)
}

type mockInvoiceSource struct {
	repo *mockPaymentRepo
}

func (m *mockInvoiceSource) Get(_ context.Context, id uuid.UUID) (*billing.Invoice, error) {
	inv, ok := m.repo.invoices[id]
	if !ok {
		return nil, billing.ErrInvoiceNotFound
	}
	out := *inv
	return &out, nil
}

func newTestPayment(repo *mockPaymentRepo) *Service {
	svc := NewService(repo, &mockInvoiceSource{repo: repo}, zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2026, 3, 10, 16, 0, 0, 0, time.UTC) }
	return svc
}

func seedInvoice(repo *mockPaymentRepo, total float64) *billing.Invoice {
	inv := &billing.Invoice{
		ID:          uuid.New(),
		Number:      "INV-260310-001",
		PatientID:   uuid.New(),
		TotalAmount: total,
		Status:      billing.StatusPending,
	}
	repo.invoices[inv.ID] = inv
	return inv
}

func TestSubmitLeavesInvoiceUntouched(t *testing.T) {
	repo := newMockPaymentRepo()
	svc := newTestPayment(repo)
	inv := seedInvoice(repo, 1000)

	c, err := svc.Submit(context.Background(), SubmitParams{
		InvoiceID:       inv.ID,
		PatientID:       inv.PatientID,
		Amount:          1000,
		PaymentMethod:   "gcash",
		ReferenceNumber: "REF-123",
	})
	if err != nil {
		t.Fatal(err)
	}

	if c.Status != StatusPendingConfirmation {
		t.Fatalf("status = %s, want pending_confirmation", c.Status)
	}
	// The claim alone never moves money.
	if repo.invoices[inv.ID].AmountPaid != 0 {
		t.Fatalf("invoice amount_paid = %.2f, want 0", repo.invoices[inv.ID].AmountPaid)
	}
	if repo.invoices[inv.ID].Status != billing.StatusPending {
		t.Fatalf("invoice status = %s, want pending", repo.invoices[inv.ID].Status)
	}
	if len(repo.payments) != 0 {
		t.Fatal("payment row written before review")
	}
}

func TestSubmitValidation(t *testing.T) {
	repo := newMockPaymentRepo()
	svc := newTestPayment(repo)
	inv := seedInvoice(repo, 500)

	valid := SubmitParams{InvoiceID: inv.ID, PatientID: inv.PatientID, Amount: 500, PaymentMethod: "cash"}

	cases := []struct {
		name   string
		mutate func(*SubmitParams)
		want   error
	}{
		{"missing invoice", func(p *SubmitParams) { p.InvoiceID = uuid.Nil }, ErrValidation},
		{"missing patient", func(p *SubmitParams) { p.PatientID = uuid.Nil }, ErrValidation},
		{"zero amount", func(p *SubmitParams) { p.Amount = 0 }, ErrValidation},
		{"negative amount", func(p *SubmitParams) { p.Amount = -5 }, ErrValidation},
		{"missing method", func(p *SubmitParams) { p.PaymentMethod = "" }, ErrValidation},
		{"unknown invoice", func(p *SubmitParams) { p.InvoiceID = uuid.New() }, billing.ErrInvoiceNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := valid
			tc.mutate(&p)
			if _, err := svc.Submit(context.Background(), p); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestResolveConfirmAppliesPayment(t *testing.T) {
	repo := newMockPaymentRepo()
	svc := newTestPayment(repo)
	inv := seedInvoice(repo, 1000)
	reviewerID := uuid.New()

	first, _ := svc.Submit(context.Background(), SubmitParams{
		InvoiceID: inv.ID, PatientID: inv.PatientID, Amount: 400, PaymentMethod: "gcash",
	})

	resolved, err := svc.Resolve(context.Background(), first.ID, DecisionConfirm, "", reviewerID)
	if err != nil {
		t.Fatal(err)
	}
	if resolved.Status != StatusConfirmed {
		t.Fatalf("status = %s, want payment_confirmed", resolved.Status)
	}
	if resolved.ConfirmedBy == nil || *resolved.ConfirmedBy != reviewerID {
		t.Fatal("confirmed_by not stamped")
	}

	// Partial payment keeps the invoice pending.
	if repo.invoices[inv.ID].AmountPaid != 400 {
		t.Fatalf("amount_paid = %.2f, want 400", repo.invoices[inv.ID].AmountPaid)
	}
	if repo.invoices[inv.ID].Status != billing.StatusPending {
		t.Fatalf("invoice status = %s, want pending", repo.invoices[inv.ID].Status)
	}
	if len(repo.payments) != 1 {
		t.Fatalf("payments = %d, want 1", len(repo.payments))
	}

	// The remainder flips it to paid.
	second, _ := svc.Submit(context.Background(), SubmitParams{
		InvoiceID: inv.ID, PatientID: inv.PatientID, Amount: 600, PaymentMethod: "gcash",
	})
	if _, err := svc.Resolve(context.Background(), second.ID, DecisionConfirm, "", reviewerID); err != nil {
		t.Fatal(err)
	}
	if repo.invoices[inv.ID].AmountPaid != 1000 {
		t.Fatalf("amount_paid = %.2f, want 1000", repo.invoices[inv.ID].AmountPaid)
	}
	if repo.invoices[inv.ID].Status != billing.StatusPaid {
		t.Fatalf("invoice status = %s, want paid", repo.invoices[inv.ID].Status)
	}
	if len(repo.payments) != 2 {
		t.Fatalf("payments = %d, want 2", len(repo.payments))
	}
}

func TestResolveReject(t *testing.T) {
	repo := newMockPaymentRepo()
	svc := newTestPayment(repo)
	inv := seedInvoice(repo, 1000)

	c, _ := svc.Submit(context.Background(), SubmitParams{
		InvoiceID: inv.ID, PatientID: inv.PatientID, Amount: 1000, PaymentMethod: "bank_transfer",
	})

	// Rejection without remarks is refused.
	if _, err := svc.Resolve(context.Background(), c.ID, DecisionReject, "", uuid.New()); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	resolved, err := svc.Resolve(context.Background(), c.ID, DecisionReject, "reference number not found", uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	if resolved.Status != StatusRejected {
		t.Fatalf("status = %s, want rejected", resolved.Status)
	}
	if resolved.Remarks == nil || *resolved.Remarks != "reference number not found" {
		t.Fatal("remarks not recorded")
	}

	if repo.invoices[inv.ID].AmountPaid != 0 {
		t.Fatal("rejected confirmation changed the invoice")
	}
	if len(repo.payments) != 0 {
		t.Fatal("rejected confirmation wrote a payment")
	}
}

func TestResolveAtMostOnce(t *testing.T) {
	repo := newMockPaymentRepo()
	svc := newTestPayment(repo)
	inv := seedInvoice(repo, 1000)

	c, _ := svc.Submit(context.Background(), SubmitParams{
		InvoiceID: inv.ID, PatientID: inv.PatientID, Amount: 1000, PaymentMethod: "cash",
	})

	if _, err := svc.Resolve(context.Background(), c.ID, DecisionConfirm, "", uuid.New()); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Resolve(context.Background(), c.ID, DecisionConfirm, "", uuid.New()); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("expected ErrAlreadyResolved, got %v", err)
	}
	// Double-confirming must not double-credit.
	if repo.invoices[inv.ID].AmountPaid != 1000 {
		t.Fatalf("amount_paid = %.2f, want 1000", repo.invoices[inv.ID].AmountPaid)
	}

	if _, err := svc.Resolve(context.Background(), uuid.New(), DecisionConfirm, "", uuid.New()); !errors.Is(err, ErrConfirmationNotFound) {
		t.Fatalf("expected ErrConfirmationNotFound, got %v", err)
	}

	if _, err := svc.Resolve(context.Background(), c.ID, "maybe", "", uuid.New()); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for bad decision, got %v", err)
	}
}
