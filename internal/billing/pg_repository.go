package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const invoiceColumns = `id, invoice_number, invoice_date, due_date, patient_id,
	total_amount, amount_paid, status, payment_method, notes, created_by, created_at, updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	var paymentMethod *string
	var createdBy *uuid.UUID

	err := row.Scan(
		&inv.ID,
		&inv.Number,
		&inv.InvoiceDate,
		&inv.DueDate,
		&inv.PatientID,
		&inv.TotalAmount,
		&inv.AmountPaid,
		&inv.Status,
		&paymentMethod,
		&inv.Notes,
		&createdBy,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}

	inv.PaymentMethod = paymentMethod
	inv.CreatedBy = createdBy
	return &inv, nil
}

func (r *PgRepository) Insert(ctx context.Context, inv *Invoice) (*Invoice, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	id := uuid.New()

	row := tx.QueryRow(ctx, `
		INSERT INTO invoices (id, invoice_number, invoice_date, due_date, patient_id,
			total_amount, amount_paid, status, payment_method, notes, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
		RETURNING `+invoiceColumns+`
	`, id, inv.Number, inv.InvoiceDate, inv.DueDate, inv.PatientID,
		inv.TotalAmount, inv.AmountPaid, inv.Status, inv.PaymentMethod, inv.Notes, inv.CreatedBy)

	created, err := scanInvoice(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateNumber
		}
		return nil, err
	}

	for _, item := range inv.Items {
		itemID := uuid.New()
		if _, err := tx.Exec(ctx, `
			INSERT INTO invoice_items (id, invoice_id, service_name, description, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, itemID, id, item.ServiceName, item.Description, item.Quantity, item.UnitPrice); err != nil {
			return nil, fmt.Errorf("insert invoice item: %w", err)
		}
		item.ID = itemID
		item.InvoiceID = id
		created.Items = append(created.Items, item)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return created, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE id = $1
	`, id)

	inv, err := scanInvoice(row)
	if err != nil {
		return nil, err
	}

	items, err := r.itemsFor(ctx, id)
	if err != nil {
		return nil, err
	}
	inv.Items = items

	return inv, nil
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE patient_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *inv)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) itemsFor(ctx context.Context, invoiceID uuid.UUID) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, invoice_id, service_name, description, quantity, unit_price
		FROM invoice_items
		WHERE invoice_id = $1
		ORDER BY service_name
	`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.ServiceName, &it.Description, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, err
		}
		items = append(items, it)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}
