package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/pharmacy/internal/apperr"
	"github.com/MrJamesThe3rd/pharmacy/internal/barcode"
	"github.com/MrJamesThe3rd/pharmacy/internal/catalog"
	catalogStore "github.com/MrJamesThe3rd/pharmacy/internal/catalog/store"
	"github.com/MrJamesThe3rd/pharmacy/internal/database"
	"github.com/MrJamesThe3rd/pharmacy/internal/order"
	"github.com/MrJamesThe3rd/pharmacy/internal/period"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const selectOrderColumns = `o.id, o.supplier_id, s.name, o.total_before, o.total_after, o.created_at, o.updated_at`

const orderFrom = ` FROM orders o JOIN suppliers s ON s.id = o.supplier_id `

func scanOrder(s interface{ Scan(dest ...any) error }) (*order.Order, error) {
	var o order.Order

	if err := s.Scan(&o.ID, &o.SupplierID, &o.Supplier, &o.TotalBefore, &o.TotalAfter, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}

	return &o, nil
}

func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return getOrder(ctx, s.db, id, false)
}

func getOrder(ctx context.Context, q database.Querier, id uuid.UUID, lock bool) (*order.Order, error) {
	query := `SELECT ` + selectOrderColumns + orderFrom + ` WHERE o.id = $1`
	if lock {
		query += ` FOR UPDATE OF o`
	}

	o, err := scanOrder(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("order")
	}

	if err != nil {
		return nil, fmt.Errorf("getting order: %w", err)
	}

	items, err := loadItems(ctx, q, []uuid.UUID{o.ID}, lock)
	if err != nil {
		return nil, err
	}

	o.Items = items[o.ID]

	return o, nil
}

func (s *Store) ListOrders(ctx context.Context, filter period.Filter) ([]*order.Order, error) {
	where, args, _ := filter.Where("o.created_at", 1)
	query := `SELECT ` + selectOrderColumns + orderFrom + ` WHERE TRUE` + where + ` ORDER BY o.created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	defer rows.Close()

	var (
		orders []*order.Order
		ids    []uuid.UUID
	)

	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning order: %w", err)
		}

		orders = append(orders, o)
		ids = append(ids, o.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}

	if len(ids) == 0 {
		return orders, nil
	}

	items, err := loadItems(ctx, s.db, ids, false)
	if err != nil {
		return nil, err
	}

	for _, o := range orders {
		o.Items = items[o.ID]
	}

	return orders, nil
}

// loadItems fetches the items of the given orders grouped by order id.
func loadItems(ctx context.Context, q database.Querier, orderIDs []uuid.UUID, lock bool) (map[uuid.UUID][]*order.Item, error) {
	query := `SELECT oi.id, oi.order_id, oi.quantity, oi.discount, ` + catalogStore.SelectBatchColumns + `
		FROM order_items oi
		JOIN batches b ON b.id = oi.batch_id
		JOIN medicines m ON m.id = b.medicine_id
		WHERE oi.order_id = ANY($1)
		ORDER BY m.name`
	if lock {
		query += ` FOR UPDATE OF b`
	}

	rows, err := q.QueryContext(ctx, query, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("loading order items: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]*order.Item, len(orderIDs))

	for rows.Next() {
		var (
			it   order.Item
			cols = []any{&it.ID, &it.OrderID, &it.Quantity, &it.Discount}
		)

		b, err := catalogStore.ScanBatch(prefixScanner{rows: rows, prefix: cols})
		if err != nil {
			return nil, fmt.Errorf("scanning order item: %w", err)
		}

		it.Batch = b
		out[it.OrderID] = append(out[it.OrderID], &it)
	}

	return out, rows.Err()
}

// prefixScanner lets ScanBatch read a row whose leading columns belong to the caller.
type prefixScanner struct {
	rows   *sql.Rows
	prefix []any
}

func (p prefixScanner) Scan(dest ...any) error {
	return p.rows.Scan(append(p.prefix, dest...)...)
}

func (s *Store) Begin(ctx context.Context) (order.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}

	return &Tx{tx: tx, barcodes: barcode.Generate}, nil
}

// Tx implements order.Tx on top of a database transaction.
type Tx struct {
	tx       *sql.Tx
	barcodes barcode.Generator
}

func (t *Tx) AdjustStock(ctx context.Context, batchID uuid.UUID, delta int64) (int64, error) {
	return catalogStore.AdjustStock(ctx, t.tx, batchID, delta)
}

func (t *Tx) GetSupplier(ctx context.Context, id uuid.UUID) (*catalog.Supplier, error) {
	return catalogStore.GetSupplier(ctx, t.tx, id)
}

func (t *Tx) FindMedicine(ctx context.Context, name, internationalBarcode string) (*catalog.Medicine, error) {
	return catalogStore.FindMedicine(ctx, t.tx, name, internationalBarcode)
}

func (t *Tx) GetOrCreateBatch(ctx context.Context, med *catalog.Medicine, expiry time.Time) (*catalog.Batch, error) {
	return catalogStore.GetOrCreateBatch(ctx, t.tx, med, expiry, t.barcodes)
}

func (t *Tx) CreateOrder(ctx context.Context, o *order.Order) error {
	query := `
		INSERT INTO orders (supplier_id, total_before, total_after, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id, created_at
	`

	err := t.tx.QueryRowContext(ctx, query, o.SupplierID, o.TotalBefore, o.TotalAfter).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating order: %w", err)
	}

	return nil
}

func (t *Tx) LockOrder(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return getOrder(ctx, t.tx, id, true)
}

func (t *Tx) UpdateOrder(ctx context.Context, o *order.Order) error {
	err := t.tx.QueryRowContext(ctx, `
		UPDATE orders
		SET supplier_id = $1, total_before = $2, total_after = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING updated_at`,
		o.SupplierID, o.TotalBefore, o.TotalAfter, o.ID,
	).Scan(&o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound("order")
	}

	if err != nil {
		return fmt.Errorf("updating order: %w", err)
	}

	return nil
}

func (t *Tx) CreateItem(ctx context.Context, item *order.Item) error {
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO order_items (order_id, batch_id, quantity, discount)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		item.OrderID, item.Batch.ID, item.Quantity, item.Discount,
	).Scan(&item.ID)
	if err != nil {
		if _, ok := database.UniqueViolation(err); ok {
			return apperr.Conflict("batch %s appears twice in the order", item.Batch.Barcode)
		}

		return fmt.Errorf("creating order item: %w", err)
	}

	return nil
}

func (t *Tx) DeleteItems(ctx context.Context, orderID uuid.UUID) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, orderID); err != nil {
		return fmt.Errorf("deleting order items: %w", err)
	}

	return nil
}

func (t *Tx) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting order: %w", err)
	}

	return nil
}

func (t *Tx) Commit() error {
	return t.tx.Commit()
}

func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}
