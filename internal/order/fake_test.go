package order_test

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/pharmacy/internal/apperr"
	"github.com/MrJamesThe3rd/pharmacy/internal/catalog"
	"github.com/MrJamesThe3rd/pharmacy/internal/order"
	"github.com/MrJamesThe3rd/pharmacy/internal/period"
)

// memState is the committed view of the fake database.
type memState struct {
	suppliers map[uuid.UUID]*catalog.Supplier
	medicines []*catalog.Medicine
	batches   map[uuid.UUID]*catalog.Batch
	orders    map[uuid.UUID]*order.Order
}

func (s *memState) clone() *memState {
	c := &memState{
		suppliers: s.suppliers,
		medicines: s.medicines,
		batches:   make(map[uuid.UUID]*catalog.Batch, len(s.batches)),
		orders:    make(map[uuid.UUID]*order.Order, len(s.orders)),
	}

	for id, b := range s.batches {
		cp := *b
		c.batches[id] = &cp
	}

	for id, o := range s.orders {
		cp := *o
		cp.Items = nil

		for _, it := range o.Items {
			ic := *it
			ic.Batch = c.batches[it.Batch.ID]
			cp.Items = append(cp.Items, &ic)
		}

		c.orders[id] = &cp
	}

	return c
}

type fakeRepo struct {
	state *memState
	codes int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{state: &memState{
		suppliers: map[uuid.UUID]*catalog.Supplier{},
		batches:   map[uuid.UUID]*catalog.Batch{},
		orders:    map[uuid.UUID]*order.Order{},
	}}
}

func (r *fakeRepo) addSupplier(name string) *catalog.Supplier {
	s := &catalog.Supplier{ID: uuid.New(), Name: name}
	r.state.suppliers[s.ID] = s

	return s
}

func (r *fakeRepo) addMedicine(name, code string, unitsPerPack int, price string) *catalog.Medicine {
	m := &catalog.Medicine{
		ID:                   uuid.New(),
		Name:                 name,
		InternationalBarcode: code,
		UnitsPerPack:         unitsPerPack,
		Price:                dec(price),
	}
	r.state.medicines = append(r.state.medicines, m)

	return m
}

func (r *fakeRepo) batchOf(med *catalog.Medicine) *catalog.Batch {
	for _, b := range r.state.batches {
		if b.MedicineID == med.ID {
			return b
		}
	}

	return nil
}

func (r *fakeRepo) GetOrder(_ context.Context, id uuid.UUID) (*order.Order, error) {
	o, ok := r.state.orders[id]
	if !ok {
		return nil, apperr.NotFound("order")
	}

	return o, nil
}

func (r *fakeRepo) ListOrders(context.Context, period.Filter) ([]*order.Order, error) {
	out := make([]*order.Order, 0, len(r.state.orders))
	for _, o := range r.state.orders {
		out = append(out, o)
	}

	return out, nil
}

func (r *fakeRepo) Begin(context.Context) (order.Tx, error) {
	return &fakeTx{repo: r, state: r.state.clone()}, nil
}

type fakeTx struct {
	repo  *fakeRepo
	state *memState
	done  bool
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

func (t *fakeTx) GetSupplier(_ context.Context, id uuid.UUID) (*catalog.Supplier, error) {
	s, ok := t.state.suppliers[id]
	if !ok {
		return nil, apperr.NotFound("supplier")
	}

	return s, nil
}

func (t *fakeTx) FindMedicine(_ context.Context, name, code string) (*catalog.Medicine, error) {
	for _, m := range t.state.medicines {
		if (name == "" || m.Name == name) && (code == "" || m.InternationalBarcode == code) {
			return m, nil
		}
	}

	return nil, apperr.NotFound("medicine")
}

func (t *fakeTx) GetOrCreateBatch(_ context.Context, med *catalog.Medicine, expiry time.Time) (*catalog.Batch, error) {
	for _, b := range t.state.batches {
		if b.MedicineID == med.ID && b.ExpiryDate.Equal(expiry) {
			return b, nil
		}
	}

	t.repo.codes++
	b := &catalog.Batch{
		ID:         uuid.New(),
		Barcode:    fmt.Sprintf("%016d", t.repo.codes),
		ExpiryDate: expiry,
		MedicineID: med.ID,
		Medicine:   med,
	}
	t.state.batches[b.ID] = b

	return b, nil
}

func (t *fakeTx) CreateOrder(_ context.Context, o *order.Order) error {
	o.ID = uuid.New()
	o.CreatedAt = time.Now()
	t.state.orders[o.ID] = o

	return nil
}

func (t *fakeTx) LockOrder(_ context.Context, id uuid.UUID) (*order.Order, error) {
	o, ok := t.state.orders[id]
	if !ok {
		return nil, apperr.NotFound("order")
	}

	return o, nil
}

func (t *fakeTx) UpdateOrder(_ context.Context, o *order.Order) error {
	t.state.orders[o.ID] = o
	return nil
}

func (t *fakeTx) CreateItem(_ context.Context, item *order.Item) error {
	item.ID = uuid.New()
	return nil
}

func (t *fakeTx) DeleteItems(_ context.Context, orderID uuid.UUID) error {
	if o, ok := t.state.orders[orderID]; ok {
		o.Items = nil
	}

	return nil
}

func (t *fakeTx) DeleteOrder(_ context.Context, id uuid.UUID) error {
	delete(t.state.orders, id)
	return nil
}

func (t *fakeTx) Commit() error {
	t.repo.state = t.state
	t.done = true

	return nil
}

func (t *fakeTx) Rollback() error {
	return nil
}
