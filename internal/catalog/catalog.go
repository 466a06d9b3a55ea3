package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/pharmacy/internal/pricing"
)

// Supplier provides medicines to the pharmacy through purchase orders.
type Supplier struct {
	ID          uuid.UUID
	Name        string
	PhoneNumber string // E.164, empty when unknown
	Address     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Manufacturer is the company producing a medicine.
type Manufacturer struct {
	ID          uuid.UUID
	Name        string
	Country     string // ISO 3166-1 alpha-2
	PhoneNumber string
	Address     string
	Website     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Category is a node in the medicine classification tree.
type Category struct {
	ID       uuid.UUID
	Name     string
	ParentID *uuid.UUID
}

type ActiveIngredient struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Medicine is a sellable product. Price is the price of one pack.
type Medicine struct {
	ID                   uuid.UUID
	InternationalBarcode string
	Name                 string
	ActiveIngredientID   uuid.UUID
	CategoryID           uuid.UUID
	ManufacturerID       uuid.UUID
	UnitsPerPack         int
	Price                decimal.Decimal

	// Loaded via JOIN.
	ActiveIngredient string
	Category         string
	Manufacturer     string
	StockUnits       int64
	BatchBarcodes    []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// UnitPrice is the price of a single unit of the pack.
func (m *Medicine) UnitPrice() (decimal.Decimal, error) {
	return pricing.UnitPrice(m.Price, m.UnitsPerPack)
}

// Stock reports the stock across all batches as "packs:units".
func (m *Medicine) Stock() string {
	return Packets(m.StockUnits, m.UnitsPerPack)
}

func (m *Medicine) IsAvailable() bool {
	return m.StockUnits > 0
}

// Batch is a received lot of a medicine sharing one expiry month.
type Batch struct {
	ID         uuid.UUID
	Barcode    string
	ExpiryDate time.Time
	MedicineID uuid.UUID
	StockUnits int64
	Medicine   *Medicine // Loaded via JOIN
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsExpired reports whether the batch expires on or before today.
func (b *Batch) IsExpired(today time.Time) bool {
	return !b.ExpiryDate.After(Today(today))
}

func (b *Batch) HasAmount() bool {
	return b.StockUnits > 0
}

// StockPackets reports the batch stock as "packs:units".
func (b *Batch) StockPackets() string {
	if b.Medicine == nil {
		return Packets(b.StockUnits, 1)
	}

	return Packets(b.StockUnits, b.Medicine.UnitsPerPack)
}

// UnitPrice is inherited from the owning medicine.
func (b *Batch) UnitPrice() (decimal.Decimal, error) {
	if b.Medicine == nil {
		return decimal.Zero, pricing.ErrDivision
	}

	return b.Medicine.UnitPrice()
}

// BatchFilter narrows batch listings. Zero value lists every batch.
type BatchFilter struct {
	MedicineID        *uuid.UUID
	OutOfStock        bool
	ExpiresFrom       *time.Time
	ExpiresOnOrBefore *time.Time
}
