package sale_test

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/pharmacy/internal/apperr"
	"github.com/MrJamesThe3rd/pharmacy/internal/catalog"
	"github.com/MrJamesThe3rd/pharmacy/internal/sale"
)

type memState struct {
	batches  map[uuid.UUID]*catalog.Batch
	invoices map[uuid.UUID]*sale.Invoice
}

func (s *memState) clone() *memState {
	c := &memState{
		batches:  make(map[uuid.UUID]*catalog.Batch, len(s.batches)),
		invoices: make(map[uuid.UUID]*sale.Invoice, len(s.invoices)),
	}

	for id, b := range s.batches {
		cp := *b
		c.batches[id] = &cp
	}

	for id, inv := range s.invoices {
		cp := *inv
		cp.Items = nil

		for _, it := range inv.Items {
			ic := *it
			ic.Batch = c.batches[it.Batch.ID]
			cp.Items = append(cp.Items, &ic)
		}

		c.invoices[id] = &cp
	}

	return c
}

type fakeRepo struct {
	state *memState
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{state: &memState{
		batches:  map[uuid.UUID]*catalog.Batch{},
		invoices: map[uuid.UUID]*sale.Invoice{},
	}}
}

func (r *fakeRepo) addBatch(code string, unitsPerPack int, price string, stock int64, expiry time.Time) *catalog.Batch {
	med := &catalog.Medicine{ID: uuid.New(), Name: "Medicine " + code, UnitsPerPack: unitsPerPack, Price: dec(price)}
	b := &catalog.Batch{
		ID:         uuid.New(),
		Barcode:    code,
		ExpiryDate: expiry,
		MedicineID: med.ID,
		StockUnits: stock,
		Medicine:   med,
	}
	r.state.batches[b.ID] = b

	return b
}

func (r *fakeRepo) stock(id uuid.UUID) int64 {
	return r.state.batches[id].StockUnits
}

func (r *fakeRepo) GetInvoice(_ context.Context, id uuid.UUID) (*sale.Invoice, error) {
	inv, ok := r.state.invoices[id]
	if !ok {
		return nil, apperr.NotFound("invoice")
	}

	return inv, nil
}

func (r *fakeRepo) ListInvoices(_ context.Context, filter sale.ListFilter) ([]*sale.Invoice, error) {
	var out []*sale.Invoice

	for _, inv := range r.state.invoices {
		if filter.Status != nil && inv.PaymentStatus != *filter.Status {
			continue
		}

		out = append(out, inv)
	}

	return out, nil
}

func (r *fakeRepo) Begin(context.Context) (sale.Tx, error) {
	return &fakeTx{repo: r, state: r.state.clone()}, nil
}

type fakeTx struct {
	repo  *fakeRepo
	state *memState
}

func (t *fakeTx) AdjustStock(_ context.Context, id uuid.UUID, delta int64) (int64, error) {
	b, ok := t.state.batches[id]
	if !ok {
		return 0, apperr.NotFound("batch")
	}

	if b.StockUnits+delta < 0 {
		return 0, fmt.Errorf("%d on hand: %w", b.StockUnits, apperr.ErrInsufficientStock)
	}

	b.StockUnits += delta

	return b.StockUnits, nil
}

func (t *fakeTx) FindBatch(_ context.Context, code string) (*catalog.Batch, error) {
	for _, b := range t.state.batches {
		if b.Barcode == code {
			return b, nil
		}
	}

	return nil, apperr.NotFound("batch")
}

func (t *fakeTx) CreateInvoice(_ context.Context, inv *sale.Invoice) error {
	inv.ID = uuid.New()
	inv.CreatedAt = time.Now()
	t.state.invoices[inv.ID] = inv

	return nil
}

func (t *fakeTx) LockInvoice(_ context.Context, id uuid.UUID) (*sale.Invoice, error) {
	inv, ok := t.state.invoices[id]
	if !ok {
		return nil, apperr.NotFound("invoice")
	}

	return inv, nil
}

func (t *fakeTx) UpdateInvoice(_ context.Context, inv *sale.Invoice) error {
	t.state.invoices[inv.ID] = inv
	return nil
}

func (t *fakeTx) CreateItem(_ context.Context, item *sale.Item) error {
	item.ID = uuid.New()
	return nil
}

func (t *fakeTx) DeleteItems(_ context.Context, invoiceID uuid.UUID) error {
	if inv, ok := t.state.invoices[invoiceID]; ok {
		inv.Items = nil
	}

	return nil
}

func (t *fakeTx) Commit() error {
	t.repo.state = t.state
	return nil
}

func (t *fakeTx) Rollback() error {
	return nil
}
