package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/pharmacy/internal/catalog"
	"github.com/MrJamesThe3rd/pharmacy/internal/pricing"
)

// Order is a purchase order from a supplier. Each item delivers stock into a batch.
type Order struct {
	ID          uuid.UUID
	SupplierID  uuid.UUID
	Supplier    string
	TotalBefore decimal.Decimal
	TotalAfter  decimal.Decimal
	Items       []*Item
	CreatedAt   time.Time
	UpdatedAt   *time.Time
}

type Item struct {
	ID       uuid.UUID
	OrderID  uuid.UUID
	Batch    *catalog.Batch
	Quantity int64
	Discount decimal.Decimal // percent
}

// PriceBefore is the line price at the medicine's unit price.
func (i *Item) PriceBefore() (decimal.Decimal, error) {
	unit, err := i.Batch.UnitPrice()
	if err != nil {
		return decimal.Zero, err
	}

	return pricing.LineTotal(unit, i.Quantity), nil
}

// PriceAfter is PriceBefore less the item discount.
func (i *Item) PriceAfter() (decimal.Decimal, error) {
	before, err := i.PriceBefore()
	if err != nil {
		return decimal.Zero, err
	}

	return pricing.DiscountedTotal(before, i.Discount), nil
}

// Recompute refreshes both totals from the current items.
func (o *Order) Recompute() error {
	before := make([]decimal.Decimal, 0, len(o.Items))
	after := make([]decimal.Decimal, 0, len(o.Items))

	for _, it := range o.Items {
		b, err := it.PriceBefore()
		if err != nil {
			return err
		}

		a, err := it.PriceAfter()
		if err != nil {
			return err
		}

		before = append(before, b)
		after = append(after, a)
	}

	o.TotalBefore = pricing.Sum(before...)
	o.TotalAfter = pricing.Sum(after...)

	return nil
}
