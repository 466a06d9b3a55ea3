package sale

import (
	"context"
	"errors"
	"fmt"
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

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=sale
type Repository interface {
	GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error)
	ListInvoices(ctx context.Context, filter ListFilter) ([]*Invoice, error)
	Begin(ctx context.Context) (Tx, error)
}

type Tx interface {
	AdjustStock(ctx context.Context, batchID uuid.UUID, delta int64) (int64, error)
	// FindBatch locks and returns the batch with the given barcode.
	FindBatch(ctx context.Context, code string) (*catalog.Batch, error)
	CreateInvoice(ctx context.Context, inv *Invoice) error
	LockInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error)
	UpdateInvoice(ctx context.Context, inv *Invoice) error
	CreateItem(ctx context.Context, item *Item) error
	DeleteItems(ctx context.Context, invoiceID uuid.UUID) error
	Commit() error
	Rollback() error
}

type ListFilter struct {
	Period period.Filter
	Status *PaymentStatus
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

// DefaultQuantity is sold when a line does not say how many units.
const DefaultQuantity int64 = 1

type ItemParams struct {
	Barcode  string
	Quantity *int64 // nil sells DefaultQuantity
}

type CreateParams struct {
	PaymentStatus PaymentStatus
	Discount      decimal.Decimal
	Items         []ItemParams
}

// UpdateParams changes a paid invoice. A nil Items leaves lines and stock
// untouched; a non-nil Items replaces every line.
type UpdateParams struct {
	PaymentStatus *PaymentStatus
	Discount      *decimal.Decimal
	Items         []ItemParams
}

func (s *Service) Create(ctx context.Context, params CreateParams) (*Invoice, error) {
	if params.PaymentStatus == "" {
		params.PaymentStatus = StatusPaid
	}

	if params.PaymentStatus != StatusPaid {
		return nil, apperr.Invalid("payment_status", "a new invoice must be paid")
	}

	if err := pricing.ValidateDiscount("discount", params.Discount); err != nil {
		return nil, err
	}

	if len(params.Items) == 0 {
		return nil, apperr.Invalid("items", "at least one item is required")
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin invoice: %w", err)
	}
	defer tx.Rollback()

	inv := &Invoice{PaymentStatus: StatusPaid, Discount: params.Discount}
	if err := tx.CreateInvoice(ctx, inv); err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}

	if err := s.addItems(ctx, tx, inv, params.Items); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit invoice: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"invoice": inv.ID,
		"items":   len(inv.Items),
		"total":   inv.TotalAfterDiscount().StringFixed(pricing.Places),
	}).Info("invoice paid")

	return inv, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, params UpdateParams) (*Invoice, error) {
	if params.PaymentStatus != nil && *params.PaymentStatus != StatusPaid {
		return nil, apperr.Invalid("payment_status", "use the refund operation to refund an invoice")
	}

	if params.Discount != nil {
		if err := pricing.ValidateDiscount("discount", *params.Discount); err != nil {
			return nil, err
		}
	}

	if params.Items != nil && len(params.Items) == 0 {
		return nil, apperr.Invalid("items", "at least one item is required")
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin invoice: %w", err)
	}
	defer tx.Rollback()

	inv, err := tx.LockInvoice(ctx, id)
	if err != nil {
		return nil, err
	}

	if inv.IsRefunded() {
		return nil, fmt.Errorf("invoice %s is refunded: %w", inv.ID, apperr.ErrIllegalTransition)
	}

	if params.Discount != nil {
		inv.Discount = *params.Discount
	}

	if params.Items != nil {
		if err := s.reverseItems(ctx, tx, inv); err != nil {
			return nil, err
		}

		if err := tx.DeleteItems(ctx, inv.ID); err != nil {
			return nil, fmt.Errorf("delete invoice items: %w", err)
		}

		inv.Items = nil

		if err := s.addItems(ctx, tx, inv, params.Items); err != nil {
			return nil, err
		}
	} else if err := tx.UpdateInvoice(ctx, inv); err != nil {
		return nil, fmt.Errorf("update invoice: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit invoice: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"invoice":       inv.ID,
		"items_changed": params.Items != nil,
	}).Info("invoice updated")

	return inv, nil
}

// Refund puts every sold unit back into its batch and marks the invoice
// refunded. A refunded invoice cannot be refunded again.
func (s *Service) Refund(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin refund: %w", err)
	}
	defer tx.Rollback()

	inv, err := tx.LockInvoice(ctx, id)
	if err != nil {
		return nil, err
	}

	if inv.IsRefunded() {
		return nil, fmt.Errorf("invoice %s is already refunded: %w", inv.ID, apperr.ErrIllegalTransition)
	}

	if err := s.reverseItems(ctx, tx, inv); err != nil {
		return nil, err
	}

	inv.PaymentStatus = StatusRefunded

	if err := tx.UpdateInvoice(ctx, inv); err != nil {
		return nil, fmt.Errorf("update invoice: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit refund: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"invoice": inv.ID,
		"items":   len(inv.Items),
	}).Info("invoice refunded")

	return inv, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return s.repo.GetInvoice(ctx, id)
}

// List returns paid invoices unless filter.Status asks otherwise.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Invoice, error) {
	if filter.Status == nil {
		filter.Status = new(StatusPaid)
	}

	return s.repo.ListInvoices(ctx, filter)
}

func (s *Service) reverseItems(ctx context.Context, tx Tx, inv *Invoice) error {
	ledger := stock.NewLedger(tx, s.now, s.log)

	for _, it := range inv.Items {
		if err := ledger.ReverseSale(ctx, it.Batch, it.Quantity); err != nil {
			return err
		}
	}

	return nil
}

func (s *Service) addItems(ctx context.Context, tx Tx, inv *Invoice, params []ItemParams) error {
	ledger := stock.NewLedger(tx, s.now, s.log)

	for i, p := range params {
		field := fmt.Sprintf("items[%d]", i)

		quantity := DefaultQuantity
		if p.Quantity != nil {
			quantity = *p.Quantity
		}

		if quantity <= 0 {
			return apperr.Invalid(field+".quantity", "must be positive")
		}

		batch, err := tx.FindBatch(ctx, p.Barcode)
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.Invalid(field+".barcode", "no batch with this barcode")
		}

		if err != nil {
			return err
		}

		if err := ledger.CommitSale(ctx, batch, quantity); err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}

		item := &Item{InvoiceID: inv.ID, Batch: batch, Quantity: quantity}
		if err := tx.CreateItem(ctx, item); err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}

		inv.Items = append(inv.Items, item)
	}

	if err := inv.Recompute(); err != nil {
		return err
	}

	if err := tx.UpdateInvoice(ctx, inv); err != nil {
		return fmt.Errorf("update invoice totals: %w", err)
	}

	return nil
}
