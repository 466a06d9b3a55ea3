package view

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/pharmacy/internal/apperr"
	"github.com/MrJamesThe3rd/pharmacy/internal/catalog"
	"github.com/MrJamesThe3rd/pharmacy/internal/report"
	"github.com/MrJamesThe3rd/pharmacy/internal/sale"
)

var fixedNow = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestReportsModel(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := report.NewMockRepository(ctrl)
	svc := report.NewService(repo, func() time.Time { return fixedNow }, 1)

	med := &catalog.Medicine{ID: uuid.New(), Name: "Panadol Extra", UnitsPerPack: 10, Price: decimal.RequireFromString("45")}
	batch := &catalog.Batch{ID: uuid.New(), Barcode: "1234567890123456", ExpiryDate: time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC), StockUnits: 25, Medicine: med}

	var filters []catalog.BatchFilter
	repo.EXPECT().ListBatches(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, f catalog.BatchFilter) ([]*catalog.Batch, error) {
			filters = append(filters, f)
			return []*catalog.Batch{batch}, nil
		}).Times(3)

	m := NewReportsModel(svc, 1)

	next, _ := m.Update(m.Init()())
	m = next.(ReportsModel)
	require.NoError(t, m.err)
	require.Len(t, m.table.Rows(), 1)
	assert.Equal(t, []string{"Panadol Extra", "1234567890123456", "2026-11", "2:5", "25"}, []string(m.table.Rows()[0]))
	assert.Contains(t, m.View(), "Near expiry")

	next, cmd := m.Update(key("-"))
	m = next.(ReportsModel)
	require.NotNil(t, cmd)
	assert.Equal(t, 0, m.months)

	next, _ = m.Update(cmd())
	m = next.(ReportsModel)

	_, cmd = m.Update(key("-"))
	assert.Nil(t, cmd, "window cannot go below zero")

	next, cmd = m.Update(key("k"))
	m = next.(ReportsModel)
	require.NotNil(t, cmd)
	assert.Equal(t, report.KindExpired, m.kind())

	next, _ = m.Update(cmd())
	m = next.(ReportsModel)

	_, cmd = m.Update(key("+"))
	assert.Nil(t, cmd, "window only applies to near-expiry")

	require.Len(t, filters, 3)
	today := catalog.Today(fixedNow)
	assert.Equal(t, today, *filters[1].ExpiresFrom)
	assert.Equal(t, today, *filters[1].ExpiresOnOrBefore)
	assert.Nil(t, filters[2].ExpiresFrom)
	assert.Equal(t, today, *filters[2].ExpiresOnOrBefore)

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, BackMsg{}, cmd())
}

func TestReportsModel_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := report.NewMockRepository(ctrl)
	repo.EXPECT().ListBatches(gomock.Any(), gomock.Any()).Return(nil, errors.New("connection refused"))

	m := NewReportsModel(report.NewService(repo, func() time.Time { return fixedNow }, 1), 1)

	next, _ := m.Update(m.Init()())
	assert.Contains(t, next.View(), "connection refused")
}

func TestRefundModel_Result(t *testing.T) {
	logger, _ := test.NewNullLogger()
	m := NewRefundModel(sale.NewService(nil, logger, nil))

	inv := &sale.Invoice{
		ID:                  uuid.New(),
		PaymentStatus:       sale.StatusRefunded,
		TotalBeforeDiscount: decimal.RequireFromString("100"),
		Discount:            decimal.RequireFromString("10"),
		CreatedAt:           fixedNow,
	}

	next, _ := m.Update(refundResultMsg{invoice: inv})
	m = next.(RefundModel)
	assert.Contains(t, m.status, inv.ID.String())
	assert.Contains(t, m.status, "90.00")
	assert.Empty(t, m.fields.invoiceID)

	next, _ = m.Update(refundResultMsg{err: apperr.ErrIllegalTransition})
	m = next.(RefundModel)
	assert.Contains(t, m.status, "Refund failed")
	assert.Nil(t, m.refunded)
}

func TestValidateInvoiceID(t *testing.T) {
	assert.NoError(t, validateInvoiceID(" "+uuid.NewString()+" "))
	assert.Error(t, validateInvoiceID("INV-42"))
	assert.Error(t, validateInvoiceID(""))
}
