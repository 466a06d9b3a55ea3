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
	"github.com/MrJamesThe3rd/pharmacy/internal/database"
)

// SelectBatchColumns is the column list read by ScanBatch; queries must JOIN medicines as m.
const SelectBatchColumns = `
	b.id, b.barcode, b.expiry_date, b.medicine_id, b.stock_units, b.created_at, b.updated_at,
	m.name, m.international_barcode, m.units_per_pack, m.price
`

// BatchFrom is the FROM clause matching SelectBatchColumns.
const BatchFrom = ` FROM batches b JOIN medicines m ON m.id = b.medicine_id `

// ScanBatch reads a batch together with the pricing fields of its medicine.
func ScanBatch(s interface{ Scan(dest ...any) error }) (*catalog.Batch, error) {
	var (
		b   catalog.Batch
		med catalog.Medicine
	)

	if err := s.Scan(
		&b.ID, &b.Barcode, &b.ExpiryDate, &b.MedicineID, &b.StockUnits, &b.CreatedAt, &b.UpdatedAt,
		&med.Name, &med.InternationalBarcode, &med.UnitsPerPack, &med.Price,
	); err != nil {
		return nil, err
	}

	med.ID = b.MedicineID
	b.Medicine = &med

	return &b, nil
}

func (s *Store) CreateBatch(ctx context.Context, b *catalog.Batch) error {
	return insertBatch(ctx, s.db, b)
}

func insertBatch(ctx context.Context, q database.Querier, b *catalog.Batch) error {
	query := `
		INSERT INTO batches (barcode, expiry_date, medicine_id, stock_units, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	err := q.QueryRowContext(ctx, query, b.Barcode, b.ExpiryDate, b.MedicineID, b.StockUnits).
		Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return translate(err, "creating batch")
	}

	return nil
}

func (s *Store) GetBatch(ctx context.Context, id uuid.UUID) (*catalog.Batch, error) {
	b, err := ScanBatch(s.db.QueryRowContext(ctx, `SELECT `+SelectBatchColumns+BatchFrom+` WHERE b.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("batch")
	}

	if err != nil {
		return nil, fmt.Errorf("getting batch: %w", err)
	}

	return b, nil
}

func (s *Store) ListBatches(ctx context.Context, filter catalog.BatchFilter) ([]*catalog.Batch, error) {
	query := `SELECT ` + SelectBatchColumns + BatchFrom + ` WHERE TRUE`

	var args []any

	argIdx := 1

	if filter.MedicineID != nil {
		query += fmt.Sprintf(" AND b.medicine_id = $%d", argIdx)

		args = append(args, *filter.MedicineID)
		argIdx++
	}

	if filter.OutOfStock {
		query += " AND b.stock_units = 0"
	}

	if filter.ExpiresFrom != nil {
		query += fmt.Sprintf(" AND b.expiry_date >= $%d", argIdx)

		args = append(args, *filter.ExpiresFrom)
		argIdx++
	}

	if filter.ExpiresOnOrBefore != nil {
		query += fmt.Sprintf(" AND b.expiry_date <= $%d", argIdx)

		args = append(args, *filter.ExpiresOnOrBefore)
	}

	query += " ORDER BY b.expiry_date ASC, m.name ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing batches: %w", err)
	}
	defer rows.Close()

	var out []*catalog.Batch

	for rows.Next() {
		b, err := ScanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning batch: %w", err)
		}

		out = append(out, b)
	}

	return out, rows.Err()
}

func (s *Store) SetBatchStock(ctx context.Context, id uuid.UUID, units int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE batches SET stock_units = $1, updated_at = NOW() WHERE id = $2`, units, id)
	if err != nil {
		return translate(err, "setting batch stock")
	}

	return expectRow(res, "batch")
}

func (s *Store) DeleteBatch(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM batches WHERE id = $1`, id)
	if err != nil {
		if _, ok := database.ForeignKeyViolation(err); ok {
			return apperr.Conflict("batch is referenced by orders or invoices")
		}

		return fmt.Errorf("deleting batch: %w", err)
	}

	return expectRow(res, "batch")
}

// AdjustStock adds delta to a batch's stock in a single guarded statement and
// returns the new level. A delta that would drive stock negative fails with
// apperr.ErrInsufficientStock and changes nothing.
func AdjustStock(ctx context.Context, q database.Querier, id uuid.UUID, delta int64) (int64, error) {
	var level int64

	err := q.QueryRowContext(ctx, `
		UPDATE batches
		SET stock_units = stock_units + $1, updated_at = NOW()
		WHERE id = $2 AND stock_units + $1 >= 0
		RETURNING stock_units`, delta, id).Scan(&level)
	if err == nil {
		return level, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("adjusting stock: %w", err)
	}

	var current int64

	err = q.QueryRowContext(ctx, `SELECT stock_units FROM batches WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperr.NotFound("batch")
	}

	if err != nil {
		return 0, fmt.Errorf("reading stock: %w", err)
	}

	return 0, fmt.Errorf("%d units on hand, %d requested: %w", current, -delta, apperr.ErrInsufficientStock)
}

// FindMedicine looks a medicine up by name, international barcode or both.
// Empty arguments are ignored; when both are given they must name the same
// medicine.
func FindMedicine(ctx context.Context, q database.Querier, name, internationalBarcode string) (*catalog.Medicine, error) {
	if name == "" && internationalBarcode == "" {
		return nil, apperr.NotFound("medicine")
	}

	query := `SELECT ` + selectMedicineColumns + medicineJoins + `
		WHERE ($1 = '' OR m.name = $1) AND ($2 = '' OR m.international_barcode = $2)`

	m, err := scanMedicine(q.QueryRowContext(ctx, query, name, internationalBarcode))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("medicine")
	}

	if err != nil {
		return nil, fmt.Errorf("finding medicine: %w", err)
	}

	return m, nil
}

// FindBatchByBarcode locks and returns the batch carrying code.
func FindBatchByBarcode(ctx context.Context, q database.Querier, code string) (*catalog.Batch, error) {
	b, err := ScanBatch(q.QueryRowContext(ctx,
		`SELECT `+SelectBatchColumns+BatchFrom+` WHERE b.barcode = $1 FOR UPDATE OF b`, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("batch")
	}

	if err != nil {
		return nil, fmt.Errorf("finding batch: %w", err)
	}

	return b, nil
}

// GetOrCreateBatch returns the batch of med expiring on expiry, creating an
// empty one with a fresh barcode when none exists. The batch row is locked.
func GetOrCreateBatch(ctx context.Context, tx *sql.Tx, med *catalog.Medicine, expiry time.Time, gen barcode.Generator) (*catalog.Batch, error) {
	lookup := `SELECT ` + SelectBatchColumns + BatchFrom + `
		WHERE b.medicine_id = $1 AND b.expiry_date = $2 FOR UPDATE OF b`

	b, err := ScanBatch(tx.QueryRowContext(ctx, lookup, med.ID, expiry))
	if err == nil {
		return b, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("finding batch: %w", err)
	}

	b = &catalog.Batch{ExpiryDate: expiry, MedicineID: med.ID, Medicine: med}

	_, err = barcode.Assign(ctx, gen, func(ctx context.Context, code string) error {
		b.Barcode = code

		return database.Savepoint(ctx, tx, "batch_barcode", func() error {
			return insertBatch(ctx, tx, b)
		})
	})
	if errors.Is(err, apperr.ErrConflict) {
		// Created concurrently by another order for the same expiry.
		b, err = ScanBatch(tx.QueryRowContext(ctx, lookup, med.ID, expiry))
		if err != nil {
			return nil, fmt.Errorf("re-reading batch: %w", err)
		}

		return b, nil
	}

	if err != nil {
		return nil, err
	}

	return b, nil
}
