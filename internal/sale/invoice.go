package sale

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/pharmacy/internal/catalog"
	"github.com/MrJamesThe3rd/pharmacy/internal/pricing"
)

type PaymentStatus string

const (
	StatusPaid     PaymentStatus = "paid"
	StatusRefunded PaymentStatus = "refunded"
)

// Invoice records a sale. Once refunded it is frozen.
type Invoice struct {
	ID                  uuid.UUID
	PaymentStatus       PaymentStatus
	Discount            decimal.Decimal // percent
	TotalBeforeDiscount decimal.Decimal
	Items               []*Item
	CreatedAt           time.Time
	UpdatedAt           *time.Time
}

type Item struct {
	ID        uuid.UUID
	InvoiceID uuid.UUID
	Batch     *catalog.Batch
	Quantity  int64
}

// Total prices the line from the pack price, rounding once.
func (i *Item) Total() (decimal.Decimal, error) {
	if i.Batch == nil || i.Batch.Medicine == nil {
		return decimal.Zero, pricing.ErrDivision
	}

	return pricing.SaleLineTotal(i.Batch.Medicine.Price, i.Batch.Medicine.UnitsPerPack, i.Quantity)
}

// TotalAfterDiscount is derived, never stored.
func (inv *Invoice) TotalAfterDiscount() decimal.Decimal {
	return pricing.DiscountedTotal(inv.TotalBeforeDiscount, inv.Discount)
}

func (inv *Invoice) IsRefunded() bool {
	return inv.PaymentStatus == StatusRefunded
}

// Recompute sums the item totals into TotalBeforeDiscount. Refunded invoices
// keep the total they were refunded with.
func (inv *Invoice) Recompute() error {
	if inv.IsRefunded() {
		return nil
	}

	totals := make([]decimal.Decimal, 0, len(inv.Items))

	for _, it := range inv.Items {
		t, err := it.Total()
		if err != nil {
			return err
		}

		totals = append(totals, t)
	}

	inv.TotalBeforeDiscount = pricing.Sum(totals...)

	return nil
}
