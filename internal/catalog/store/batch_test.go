package store_test

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/pharmacy/internal/apperr"
	"github.com/MrJamesThe3rd/pharmacy/internal/catalog"
	"github.com/MrJamesThe3rd/pharmacy/internal/catalog/store"
)

var (
	adjustQuery = regexp.QuoteMeta(`UPDATE batches`)
	levelQuery  = regexp.QuoteMeta(`SELECT stock_units FROM batches WHERE id = $1`)
	lookupQuery = `(?s)SELECT .+ FOR UPDATE OF b`
	insertQuery = regexp.QuoteMeta(`INSERT INTO batches`)

	batchColumns = []string{
		"id", "barcode", "expiry_date", "medicine_id", "stock_units", "created_at", "updated_at",
		"name", "international_barcode", "units_per_pack", "price",
	}

	expiry = time.Date(2027, 5, 1, 0, 0, 0, 0, time.UTC)
)

func beginTx(t *testing.T) (sqlmock.Sqlmock, *sql.Tx) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectBegin()

	tx, err := db.Begin()
	require.NoError(t, err)

	return mock, tx
}

func rollback(t *testing.T, mock sqlmock.Sqlmock, tx *sql.Tx) {
	t.Helper()

	mock.ExpectRollback()
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdjustStock(t *testing.T) {
	id := uuid.New()

	t.Run("Applied", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(adjustQuery).
			WithArgs(int64(-4), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"stock_units"}).AddRow(6))

		level, err := store.AdjustStock(context.Background(), db, id, -4)
		require.NoError(t, err)
		assert.Equal(t, int64(6), level)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("GuardRejects", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(adjustQuery).
			WithArgs(int64(-10), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"stock_units"}))
		mock.ExpectQuery(levelQuery).
			WillReturnRows(sqlmock.NewRows([]string{"stock_units"}).AddRow(3))

		_, err = store.AdjustStock(context.Background(), db, id, -10)
		require.ErrorIs(t, err, apperr.ErrInsufficientStock)
		assert.Contains(t, err.Error(), "3 units on hand, 10 requested")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("UnknownBatch", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(adjustQuery).WillReturnRows(sqlmock.NewRows([]string{"stock_units"}))
		mock.ExpectQuery(levelQuery).WillReturnRows(sqlmock.NewRows([]string{"stock_units"}))

		_, err = store.AdjustStock(context.Background(), db, id, 5)
		require.ErrorIs(t, err, apperr.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DriverError", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(adjustQuery).WillReturnError(errors.New("connection reset"))

		_, err = store.AdjustStock(context.Background(), db, id, 5)
		require.Error(t, err)
		assert.NotErrorIs(t, err, apperr.ErrInsufficientStock)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func batchRow(med *catalog.Medicine, id uuid.UUID, code string, stock int64) *sqlmock.Rows {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	return sqlmock.NewRows(batchColumns).AddRow(
		id.String(), code, expiry, med.ID.String(), stock, now, now,
		med.Name, med.InternationalBarcode, med.UnitsPerPack, "45.00",
	)
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint}
}

func codes(list ...string) func() (string, error) {
	return func() (string, error) {
		code := list[0]
		list = list[1:]

		return code, nil
	}
}

func TestGetOrCreateBatch(t *testing.T) {
	med := &catalog.Medicine{ID: uuid.New(), Name: "Panadol Extra", InternationalBarcode: "6221234567890", UnitsPerPack: 10}

	t.Run("Existing", func(t *testing.T) {
		mock, tx := beginTx(t)

		id := uuid.New()
		mock.ExpectQuery(lookupQuery).WillReturnRows(batchRow(med, id, "1234567890123456", 25))

		b, err := store.GetOrCreateBatch(context.Background(), tx, med, expiry, codes())
		require.NoError(t, err)
		assert.Equal(t, id, b.ID)
		assert.Equal(t, int64(25), b.StockUnits)
		rollback(t, mock, tx)
	})

	t.Run("BarcodeCollisionRetries", func(t *testing.T) {
		mock, tx := beginTx(t)

		id := uuid.New()
		created := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

		mock.ExpectQuery(lookupQuery).WillReturnRows(sqlmock.NewRows(batchColumns))
		mock.ExpectExec(`^SAVEPOINT batch_barcode$`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(insertQuery).
			WithArgs("1111111111111111", expiry, sqlmock.AnyArg(), int64(0)).
			WillReturnError(uniqueViolation("batches_barcode_key"))
		mock.ExpectExec(`^ROLLBACK TO SAVEPOINT batch_barcode$`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`^SAVEPOINT batch_barcode$`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(insertQuery).
			WithArgs("2222222222222222", expiry, sqlmock.AnyArg(), int64(0)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(id.String(), created, created))
		mock.ExpectExec(`^RELEASE SAVEPOINT batch_barcode$`).WillReturnResult(sqlmock.NewResult(0, 0))

		b, err := store.GetOrCreateBatch(context.Background(), tx, med, expiry, codes("1111111111111111", "2222222222222222"))
		require.NoError(t, err)
		assert.Equal(t, id, b.ID)
		assert.Equal(t, "2222222222222222", b.Barcode)
		assert.Equal(t, med.ID, b.MedicineID)
		assert.Zero(t, b.StockUnits)
		rollback(t, mock, tx)
	})

	t.Run("ConcurrentCreateRereads", func(t *testing.T) {
		mock, tx := beginTx(t)

		winner := uuid.New()

		mock.ExpectQuery(lookupQuery).WillReturnRows(sqlmock.NewRows(batchColumns))
		mock.ExpectExec(`^SAVEPOINT batch_barcode$`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(insertQuery).WillReturnError(uniqueViolation("batches_medicine_id_expiry_date_key"))
		mock.ExpectExec(`^ROLLBACK TO SAVEPOINT batch_barcode$`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(lookupQuery).WillReturnRows(batchRow(med, winner, "3333333333333333", 14))

		b, err := store.GetOrCreateBatch(context.Background(), tx, med, expiry, codes("4444444444444444"))
		require.NoError(t, err)
		assert.Equal(t, winner, b.ID)
		assert.Equal(t, "3333333333333333", b.Barcode)
		assert.Equal(t, int64(14), b.StockUnits)
		rollback(t, mock, tx)
	})
}
