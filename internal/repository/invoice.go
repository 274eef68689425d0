package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/halver/shopcore/internal/models"
	"github.com/halver/shopcore/internal/repository/postgres"
	"github.com/jackc/pgx/v5"
)

const (
	insertInvoiceQuery = `
						INSERT INTO invoices (seq, order_id, location, status)
						VALUES (nextval('invoice_seq'), $1, $2, 'pending')
						RETURNING id, seq, order_id, location, status, last_error, created_at, sent_at
`
	selectInvoiceByIDQuery = `
						SELECT id, seq, order_id, location, status, last_error, created_at, sent_at
						FROM invoices
						WHERE id = $1
`
	selectPendingInvoicesQuery = `
						SELECT id, seq, order_id, location, status, last_error, created_at, sent_at
						FROM invoices
						WHERE status = 'pending'
						ORDER BY created_at
`
	selectInvoicesByOrderQuery = `
						SELECT id, seq, order_id, location, status, last_error, created_at, sent_at
						FROM invoices
						WHERE order_id = $1
						ORDER BY created_at
`
	markInvoiceSentQuery = `
						UPDATE invoices
						SET status = 'sent', last_error = '', sent_at = now()
						WHERE id = $1
`
	markInvoiceFailedQuery = `
						UPDATE invoices
						SET status = 'pending', last_error = $2
						WHERE id = $1
`
)

// InvoiceRepository provides access to invoice records
type InvoiceRepository struct {
	db *postgres.DB
}

// NewInvoiceRepository creates new InvoiceRepository instance
func NewInvoiceRepository(db *postgres.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

func scanInvoice(row pgx.Row) (*models.InvoiceRecord, error) {
	rec := models.InvoiceRecord{}
	err := row.Scan(&rec.ID, &rec.Seq, &rec.OrderID, &rec.Location, &rec.Status,
		&rec.LastError, &rec.CreatedAt, &rec.SentAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateInvoice inserts a new pending invoice record with the next sequence number
func (ir *InvoiceRepository) CreateInvoice(ctx context.Context, orderID uuid.UUID, location string) (*models.InvoiceRecord, error) {
	rec, err := scanInvoice(ir.db.QueryRow(ctx, insertInvoiceQuery, orderID, location))
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// GetInvoiceByID returns invoice record by id
func (ir *InvoiceRepository) GetInvoiceByID(ctx context.Context, id uint64) (*models.InvoiceRecord, error) {
	rec, err := scanInvoice(ir.db.QueryRow(ctx, selectInvoiceByIDQuery, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrDataNotFound
		}
		return nil, err
	}
	return rec, nil
}

// ListPendingInvoices returns invoice records awaiting delivery
func (ir *InvoiceRepository) ListPendingInvoices(ctx context.Context) ([]models.InvoiceRecord, error) {
	rows, err := ir.db.Query(ctx, selectPendingInvoicesQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recs := []models.InvoiceRecord{}

	for rows.Next() {
		rec, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return recs, nil
}

// ListInvoicesByOrder returns invoice records for an order
func (ir *InvoiceRepository) ListInvoicesByOrder(ctx context.Context, orderID uuid.UUID) ([]models.InvoiceRecord, error) {
	rows, err := ir.db.Query(ctx, selectInvoicesByOrderQuery, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recs := []models.InvoiceRecord{}

	for rows.Next() {
		rec, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return recs, nil
}

// MarkInvoiceSent marks a record as delivered
func (ir *InvoiceRepository) MarkInvoiceSent(ctx context.Context, id uint64) error {
	cmd, err := ir.db.Exec(ctx, markInvoiceSentQuery, id)
	if err != nil {
		return err
	}

	if cmd.RowsAffected() == 0 {
		return models.ErrDataNotFound
	}

	return nil
}

// MarkInvoiceFailed records a delivery failure and leaves the record pending
func (ir *InvoiceRepository) MarkInvoiceFailed(ctx context.Context, id uint64, lastError string) error {
	cmd, err := ir.db.Exec(ctx, markInvoiceFailedQuery, id, lastError)
	if err != nil {
		return err
	}

	if cmd.RowsAffected() == 0 {
		return models.ErrDataNotFound
	}

	return nil
}
