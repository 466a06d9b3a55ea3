package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/pharmacy/internal/apperr"
	"github.com/MrJamesThe3rd/pharmacy/internal/catalog"
	catalogStore "github.com/MrJamesThe3rd/pharmacy/internal/catalog/store"
	"github.com/MrJamesThe3rd/pharmacy/internal/database"
	"github.com/MrJamesThe3rd/pharmacy/internal/sale"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const selectInvoiceColumns = `i.id, i.payment_status, i.discount, i.total_before_discount, i.created_at, i.updated_at`

func scanInvoice(s interface{ Scan(dest ...any) error }) (*sale.Invoice, error) {
	var (
		inv    sale.Invoice
		status string
	)

	if err := s.Scan(&inv.ID, &status, &inv.Discount, &inv.TotalBeforeDiscount, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
		return nil, err
	}

	inv.PaymentStatus = sale.PaymentStatus(status)

	return &inv, nil
}

func (s *Store) GetInvoice(ctx context.Context, id uuid.UUID) (*sale.Invoice, error) {
	return getInvoice(ctx, s.db, id, false)
}

func getInvoice(ctx context.Context, q database.Querier, id uuid.UUID, lock bool) (*sale.Invoice, error) {
	query := `SELECT ` + selectInvoiceColumns + ` FROM invoices i WHERE i.id = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	inv, err := scanInvoice(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("invoice")
	}

	if err != nil {
		return nil, fmt.Errorf("getting invoice: %w", err)
	}

	items, err := loadItems(ctx, q, []uuid.UUID{inv.ID}, lock)
	if err != nil {
		return nil, err
	}

	inv.Items = items[inv.ID]

	return inv, nil
}

func (s *Store) ListInvoices(ctx context.Context, filter sale.ListFilter) ([]*sale.Invoice, error) {
	query := `SELECT ` + selectInvoiceColumns + ` FROM invoices i WHERE TRUE`

	var args []any

	argIdx := 1

	if filter.Status != nil {
		query += fmt.Sprintf(" AND i.payment_status = $%d", argIdx)

		args = append(args, string(*filter.Status))
		argIdx++
	}

	where, periodArgs, _ := filter.Period.Where("i.created_at", argIdx)
	query += where + ` ORDER BY i.created_at DESC`
	args = append(args, periodArgs...)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing invoices: %w", err)
	}
	defer rows.Close()

	var (
		invoices []*sale.Invoice
		ids      []uuid.UUID
	)

	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning invoice: %w", err)
		}

		invoices = append(invoices, inv)
		ids = append(ids, inv.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing invoices: %w", err)
	}

	if len(ids) == 0 {
		return invoices, nil
	}

	items, err := loadItems(ctx, s.db, ids, false)
	if err != nil {
		return nil, err
	}

	for _, inv := range invoices {
		inv.Items = items[inv.ID]
	}

	return invoices, nil
}

func loadItems(ctx context.Context, q database.Querier, invoiceIDs []uuid.UUID, lock bool) (map[uuid.UUID][]*sale.Item, error) {
	query := `SELECT si.id, si.invoice_id, si.quantity, ` + catalogStore.SelectBatchColumns + `
		FROM sale_items si
		JOIN batches b ON b.id = si.batch_id
		JOIN medicines m ON m.id = b.medicine_id
		WHERE si.invoice_id = ANY($1)
		ORDER BY m.name`
	if lock {
		query += ` FOR UPDATE OF b`
	}

	rows, err := q.QueryContext(ctx, query, invoiceIDs)
	if err != nil {
		return nil, fmt.Errorf("loading invoice items: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]*sale.Item, len(invoiceIDs))

	for rows.Next() {
		var it sale.Item

		b, err := catalogStore.ScanBatch(itemRow{rows: rows, item: &it})
		if err != nil {
			return nil, fmt.Errorf("scanning invoice item: %w", err)
		}

		it.Batch = b
		out[it.InvoiceID] = append(out[it.InvoiceID], &it)
	}

	return out, rows.Err()
}

// itemRow reads the item columns that precede the batch columns.
type itemRow struct {
	rows *sql.Rows
	item *sale.Item
}

func (r itemRow) Scan(dest ...any) error {
	cols := append([]any{&r.item.ID, &r.item.InvoiceID, &r.item.Quantity}, dest...)
	return r.rows.Scan(cols...)
}

func (s *Store) Begin(ctx context.Context) (sale.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}

	return &Tx{tx: tx}, nil
}

// Tx implements sale.Tx on top of a database transaction.
type Tx struct {
	tx *sql.Tx
}

func (t *Tx) AdjustStock(ctx context.Context, batchID uuid.UUID, delta int64) (int64, error) {
	return catalogStore.AdjustStock(ctx, t.tx, batchID, delta)
}

func (t *Tx) FindBatch(ctx context.Context, code string) (*catalog.Batch, error) {
	return catalogStore.FindBatchByBarcode(ctx, t.tx, code)
}

func (t *Tx) CreateInvoice(ctx context.Context, inv *sale.Invoice) error {
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO invoices (payment_status, discount, total_before_discount, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id, created_at`,
		string(inv.PaymentStatus), inv.Discount, inv.TotalBeforeDiscount,
	).Scan(&inv.ID, &inv.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating invoice: %w", err)
	}

	return nil
}

func (t *Tx) LockInvoice(ctx context.Context, id uuid.UUID) (*sale.Invoice, error) {
	return getInvoice(ctx, t.tx, id, true)
}

func (t *Tx) UpdateInvoice(ctx context.Context, inv *sale.Invoice) error {
	err := t.tx.QueryRowContext(ctx, `
		UPDATE invoices
		SET payment_status = $1, discount = $2, total_before_discount = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING updated_at`,
		string(inv.PaymentStatus), inv.Discount, inv.TotalBeforeDiscount, inv.ID,
	).Scan(&inv.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound("invoice")
	}

	if err != nil {
		return fmt.Errorf("updating invoice: %w", err)
	}

	return nil
}

func (t *Tx) CreateItem(ctx context.Context, item *sale.Item) error {
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO sale_items (invoice_id, batch_id, quantity)
		VALUES ($1, $2, $3)
		RETURNING id`,
		item.InvoiceID, item.Batch.ID, item.Quantity,
	).Scan(&item.ID)
	if err != nil {
		return fmt.Errorf("creating invoice item: %w", err)
	}

	return nil
}

func (t *Tx) DeleteItems(ctx context.Context, invoiceID uuid.UUID) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM sale_items WHERE invoice_id = $1`, invoiceID); err != nil {
		return fmt.Errorf("deleting invoice items: %w", err)
	}

	return nil
}

func (t *Tx) Commit() error {
	return t.tx.Commit()
}

func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}
