package payment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dentaflow/clinic/internal/billing"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so the same
// repository methods run inside and outside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	pool *pgxpool.Pool
	q    querier
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool, q: pool}
}

const confirmationColumns = `id, invoice_id, patient_id, amount, payment_method,
	reference_number, proof_url, status, remarks, confirmed_by, confirmed_at, created_at`

func scanConfirmation(row pgx.Row) (*Confirmation, error) {
	var c Confirmation
	err := row.Scan(
		&c.ID,
		&c.InvoiceID,
		&c.PatientID,
		&c.Amount,
		&c.PaymentMethod,
		&c.ReferenceNumber,
		&c.ProofURL,
		&c.Status,
		&c.Remarks,
		&c.ConfirmedBy,
		&c.ConfirmedAt,
		&c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConfirmationNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *PgRepository) InsertConfirmation(ctx context.Context, c *Confirmation) (*Confirmation, error) {
	row := r.q.QueryRow(ctx, `
		INSERT INTO payment_confirmations (id, invoice_id, patient_id, amount, payment_method,
			reference_number, proof_url, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		RETURNING `+confirmationColumns+`
	`, uuid.New(), c.InvoiceID, c.PatientID, c.Amount, c.PaymentMethod,
		c.ReferenceNumber, c.ProofURL, StatusPendingConfirmation)

	return scanConfirmation(row)
}

func (r *PgRepository) GetConfirmation(ctx context.Context, id uuid.UUID) (*Confirmation, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+confirmationColumns+`
		FROM payment_confirmations
		WHERE id = $1
	`, id)

	return scanConfirmation(row)
}

func (r *PgRepository) ListPending(ctx context.Context, limit, offset int) ([]Confirmation, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+confirmationColumns+`
		FROM payment_confirmations
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3
	`, StatusPendingConfirmation, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Confirmation
	for rows.Next() {
		c, err := scanConfirmation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) UpdateConfirmationStatus(ctx context.Context, id uuid.UUID, to ConfirmationStatus, remarks *string, reviewerID uuid.UUID, at time.Time) (*Confirmation, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE payment_confirmations
		SET status = $2, remarks = $3, confirmed_by = $4, confirmed_at = $5
		WHERE id = $1 AND status = $6
		RETURNING `+confirmationColumns+`
	`, id, to, remarks, reviewerID, at, StatusPendingConfirmation)

	return scanConfirmation(row)
}

func (r *PgRepository) GetInvoiceForUpdate(ctx context.Context, id uuid.UUID) (*billing.Invoice, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, invoice_number, total_amount, amount_paid, status
		FROM invoices
		WHERE id = $1
		FOR UPDATE
	`, id)

	var inv billing.Invoice
	err := row.Scan(&inv.ID, &inv.Number, &inv.TotalAmount, &inv.AmountPaid, &inv.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, billing.ErrInvoiceNotFound
		}
		return nil, err
	}
	return &inv, nil
}

func (r *PgRepository) UpdateInvoicePayment(ctx context.Context, id uuid.UUID, amountPaid float64, status billing.InvoiceStatus, method string) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE invoices
		SET amount_paid = $2, status = $3, payment_method = $4, updated_at = now()
		WHERE id = $1
	`, id, amountPaid, status, method)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return billing.ErrInvoiceNotFound
	}
	return nil
}

func (r *PgRepository) InsertPayment(ctx context.Context, p *Payment) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO payments (id, invoice_id, amount, payment_date, payment_method,
			reference_number, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
	`, uuid.New(), p.InvoiceID, p.Amount, p.PaymentDate, p.PaymentMethod,
		p.ReferenceNumber, p.CreatedBy)
	return err
}

func (r *PgRepository) InTx(ctx context.Context, fn func(Repository) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(&PgRepository{pool: r.pool, q: tx}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
