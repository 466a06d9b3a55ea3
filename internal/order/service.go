package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/MrJamesThe3rd/pharmacy/internal/apperr"
	"github.com/MrJamesThe3rd/pharmacy/internal/catalog"
	"github.com/MrJamesThe3rd/pharmacy/internal/period"
	"github.com/MrJamesThe3rd/pharmacy/internal/pricing"
	"github.com/MrJamesThe3rd/pharmacy/internal/stock"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=order
type Repository interface {
	GetOrder(ctx context.Context, id uuid.UUID) (*Order, error)
	ListOrders(ctx context.Context, filter period.Filter) ([]*Order, error)
	Begin(ctx context.Context) (Tx, error)
}

// Tx groups every write of an order operation. Nothing is visible to other
// callers until Commit.
type Tx interface {
	AdjustStock(ctx context.Context, batchID uuid.UUID, delta int64) (int64, error)
	GetSupplier(ctx context.Context, id uuid.UUID) (*catalog.Supplier, error)
	// FindMedicine matches on every non-empty argument.
	FindMedicine(ctx context.Context, name, internationalBarcode string) (*catalog.Medicine, error)
	GetOrCreateBatch(ctx context.Context, med *catalog.Medicine, expiry time.Time) (*catalog.Batch, error)
	CreateOrder(ctx context.Context, o *Order) error
	LockOrder(ctx context.Context, id uuid.UUID) (*Order, error)
	UpdateOrder(ctx context.Context, o *Order) error
	CreateItem(ctx context.Context, item *Item) error
	DeleteItems(ctx context.Context, orderID uuid.UUID) error
	DeleteOrder(ctx context.Context, id uuid.UUID) error
	Commit() error
	Rollback() error
}

type Service struct {
	repo Repository
	log  logrus.FieldLogger
	now  func() time.Time
}

func NewService(repo Repository, log logrus.FieldLogger, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}

	return &Service{repo: repo, log: log, now: now}
}

// ItemParams identifies the medicine by name, international barcode or both,
// and the batch by expiry month.
type ItemParams struct {
	Medicine             string
	InternationalBarcode string
	Packs                int64
	Units                int64
	Discount             decimal.Decimal
	ExpiryMonth          string
}

type CreateParams struct {
	SupplierID uuid.UUID
	Items      []ItemParams
}

// UpdateParams changes an order. A nil Items leaves the lines and stock
// untouched; a non-nil Items replaces every line.
type UpdateParams struct {
	SupplierID *uuid.UUID
	Items      []ItemParams
}

func (s *Service) Create(ctx context.Context, params CreateParams) (*Order, error) {
	if len(params.Items) == 0 {
		return nil, apperr.Invalid("items", "at least one item is required")
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin order: %w", err)
	}
	defer tx.Rollback()

	o := &Order{SupplierID: params.SupplierID}
	if err := s.setSupplier(ctx, tx, o, params.SupplierID); err != nil {
		return nil, err
	}

	if err := tx.CreateOrder(ctx, o); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	if err := s.addItems(ctx, tx, o, params.Items); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit order: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"order":    o.ID,
		"supplier": o.Supplier,
		"items":    len(o.Items),
		"total":    o.TotalAfter.StringFixed(pricing.Places),
	}).Info("order received")

	return o, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, params UpdateParams) (*Order, error) {
	if params.Items != nil && len(params.Items) == 0 {
		return nil, apperr.Invalid("items", "at least one item is required")
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin order: %w", err)
	}
	defer tx.Rollback()

	o, err := tx.LockOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	if params.SupplierID != nil {
		if err := s.setSupplier(ctx, tx, o, *params.SupplierID); err != nil {
			return nil, err
		}
	}

	if params.Items != nil {
		if err := s.reverseItems(ctx, tx, o); err != nil {
			return nil, err
		}

		if err := tx.DeleteItems(ctx, o.ID); err != nil {
			return nil, fmt.Errorf("delete order items: %w", err)
		}

		o.Items = nil

		if err := s.addItems(ctx, tx, o, params.Items); err != nil {
			return nil, err
		}
	} else if err := tx.UpdateOrder(ctx, o); err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit order: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"order":         o.ID,
		"items_changed": params.Items != nil,
	}).Info("order updated")

	return o, nil
}

// Delete removes an order and takes its delivered units back out of stock.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin order: %w", err)
	}
	defer tx.Rollback()

	o, err := tx.LockOrder(ctx, id)
	if err != nil {
		return err
	}

	if err := s.reverseItems(ctx, tx, o); err != nil {
		return err
	}

	if err := tx.DeleteOrder(ctx, o.ID); err != nil {
		return fmt.Errorf("delete order: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order: %w", err)
	}

	s.log.WithField("order", id).Info("order deleted")

	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Order, error) {
	return s.repo.GetOrder(ctx, id)
}

func (s *Service) List(ctx context.Context, filter period.Filter) ([]*Order, error) {
	return s.repo.ListOrders(ctx, filter)
}

func (s *Service) setSupplier(ctx context.Context, tx Tx, o *Order, id uuid.UUID) error {
	sup, err := tx.GetSupplier(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.Invalid("supplier", "does not exist")
	}

	if err != nil {
		return err
	}

	o.SupplierID = sup.ID
	o.Supplier = sup.Name

	return nil
}

func (s *Service) reverseItems(ctx context.Context, tx Tx, o *Order) error {
	ledger := stock.NewLedger(tx, s.now, s.log)

	for _, it := range o.Items {
		if err := ledger.ReverseReceipt(ctx, it.Batch, it.Quantity); err != nil {
			return err
		}
	}

	return nil
}

// addItems receives every line into stock, then persists the recomputed totals.
func (s *Service) addItems(ctx context.Context, tx Tx, o *Order, params []ItemParams) error {
	ledger := stock.NewLedger(tx, s.now, s.log)

	for i, p := range params {
		field := fmt.Sprintf("items[%d]", i)

		item, err := s.buildItem(ctx, tx, o, p)
		if err != nil {
			return apperr.Prefix(err, field)
		}

		if err := tx.CreateItem(ctx, item); err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}

		if err := ledger.Receive(ctx, item.Batch, item.Quantity); err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}

		o.Items = append(o.Items, item)
	}

	if err := o.Recompute(); err != nil {
		return err
	}

	if err := tx.UpdateOrder(ctx, o); err != nil {
		return fmt.Errorf("update order totals: %w", err)
	}

	return nil
}

func (s *Service) buildItem(ctx context.Context, tx Tx, o *Order, p ItemParams) (*Item, error) {
	name := strings.TrimSpace(p.Medicine)
	code := strings.TrimSpace(p.InternationalBarcode)

	if name == "" && code == "" {
		return nil, apperr.Invalid("medicine", "a medicine name or international barcode is required")
	}

	med, err := tx.FindMedicine(ctx, name, code)
	if errors.Is(err, apperr.ErrNotFound) {
		switch {
		case name != "" && code != "":
			return nil, apperr.Invalid("international_barcode", "does not belong to medicine %q", name)
		case name != "":
			return nil, apperr.Invalid("medicine", "no medicine with this name")
		default:
			return nil, apperr.Invalid("international_barcode", "no medicine with this international barcode")
		}
	}

	if err != nil {
		return nil, err
	}

	qty, err := catalog.Quantity(p.Packs, p.Units, med.UnitsPerPack)
	if err != nil {
		return nil, err
	}

	if qty == 0 {
		return nil, apperr.Invalid("packs", "at least one unit must be ordered")
	}

	if err := pricing.ValidateDiscount("discount", p.Discount); err != nil {
		return nil, err
	}

	expiry, err := catalog.ParseExpiryMonth(p.ExpiryMonth)
	if err != nil {
		return nil, err
	}

	if err := catalog.ValidateExpiry(expiry, s.now()); err != nil {
		return nil, err
	}

	batch, err := tx.GetOrCreateBatch(ctx, med, expiry)
	if err != nil {
		return nil, err
	}

	for _, existing := range o.Items {
		if existing.Batch.ID == batch.ID {
			return nil, apperr.Conflict("batch %s appears twice in the order", batch.Barcode)
		}
	}

	return &Item{
		OrderID:  o.ID,
		Batch:    batch,
		Quantity: qty,
		Discount: p.Discount,
	}, nil
}
