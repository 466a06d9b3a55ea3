package stock_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/pharmacy/internal/apperr"
	"github.com/MrJamesThe3rd/pharmacy/internal/catalog"
	"github.com/MrJamesThe3rd/pharmacy/internal/stock"
)

var now = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

type memStore struct {
	units map[uuid.UUID]int64
}

func (m *memStore) AdjustStock(_ context.Context, id uuid.UUID, delta int64) (int64, error) {
	cur, ok := m.units[id]
	if !ok {
		return 0, apperr.NotFound("batch")
	}

	if cur+delta < 0 {
		return 0, fmt.Errorf("%d on hand: %w", cur, apperr.ErrInsufficientStock)
	}

	m.units[id] = cur + delta

	return cur + delta, nil
}

func setup(t *testing.T, units int64, expiry time.Time) (*stock.Ledger, *memStore, *catalog.Batch) {
	t.Helper()

	b := &catalog.Batch{
		ID:         uuid.New(),
		Barcode:    "1234567890123456",
		ExpiryDate: expiry,
		StockUnits: units,
		Medicine:   &catalog.Medicine{UnitsPerPack: 10},
	}
	store := &memStore{units: map[uuid.UUID]int64{b.ID: units}}
	logger, _ := test.NewNullLogger()

	return stock.NewLedger(store, func() time.Time { return now }, logger), store, b
}

func future() time.Time { return time.Date(2027, 6, 1, 0, 0, 0, 0, time.UTC) }

func TestLedger_ReceiveAndReverse(t *testing.T) {
	ledger, store, b := setup(t, 0, future())
	ctx := context.Background()

	require.NoError(t, ledger.Receive(ctx, b, 25))
	assert.Equal(t, int64(25), b.StockUnits)
	assert.Equal(t, "2:5", b.StockPackets())

	require.NoError(t, ledger.ReverseReceipt(ctx, b, 25))
	assert.Equal(t, int64(0), store.units[b.ID])
}

func TestLedger_ReverseReceiptAfterSale(t *testing.T) {
	ledger, store, b := setup(t, 0, future())
	ctx := context.Background()

	require.NoError(t, ledger.Receive(ctx, b, 10))
	require.NoError(t, ledger.CommitSale(ctx, b, 4))

	err := ledger.ReverseReceipt(ctx, b, 10)
	require.ErrorIs(t, err, apperr.ErrInsufficientStock)
	assert.Equal(t, int64(6), store.units[b.ID], "failed reversal must not change stock")
}

func TestLedger_CommitSale(t *testing.T) {
	tests := []struct {
		name    string
		stock   int64
		expiry  time.Time
		qty     int64
		want    int64
		wantErr error
	}{
		{name: "Success", stock: 9, expiry: future(), qty: 3, want: 6},
		{name: "WholeStock", stock: 9, expiry: future(), qty: 9, want: 0},
		{name: "TooMany", stock: 9, expiry: future(), qty: 10, want: 9, wantErr: apperr.ErrInsufficientStock},
		{name: "Empty", stock: 0, expiry: future(), qty: 1, want: 0, wantErr: apperr.ErrInsufficientStock},
		{name: "ExpiresToday", stock: 9, expiry: time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC), qty: 1, want: 9, wantErr: apperr.ErrExpiredBatch},
		{name: "Expired", stock: 9, expiry: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), qty: 1, want: 9, wantErr: apperr.ErrExpiredBatch},
		{name: "ZeroQuantity", stock: 9, expiry: future(), qty: 0, want: 9, wantErr: apperr.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger, store, b := setup(t, tt.stock, tt.expiry)

			err := ledger.CommitSale(context.Background(), b, tt.qty)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}

			assert.Equal(t, tt.want, store.units[b.ID])
		})
	}
}

func TestLedger_ReverseSaleOnExpiredBatch(t *testing.T) {
	ledger, store, b := setup(t, 2, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	require.NoError(t, ledger.ReverseSale(context.Background(), b, 3))
	assert.Equal(t, int64(5), store.units[b.ID])
}

func TestLedger_RejectsNonPositiveQuantities(t *testing.T) {
	ledger, _, b := setup(t, 5, future())
	ctx := context.Background()

	assert.ErrorIs(t, ledger.Receive(ctx, b, 0), apperr.ErrValidation)
	assert.ErrorIs(t, ledger.Receive(ctx, b, -1), apperr.ErrValidation)
	assert.ErrorIs(t, ledger.ReverseReceipt(ctx, b, 0), apperr.ErrValidation)
	assert.ErrorIs(t, ledger.ReverseSale(ctx, b, -2), apperr.ErrValidation)
}
