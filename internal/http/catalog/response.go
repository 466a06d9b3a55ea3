package catalog

import (
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/pharmacy/internal/catalog"
)

type supplierResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	PhoneNumber string    `json:"phone_number,omitempty"`
	Address     string    `json:"address,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func toSupplierResponse(s *catalog.Supplier) supplierResponse {
	return supplierResponse{
		ID:          s.ID,
		Name:        s.Name,
		PhoneNumber: s.PhoneNumber,
		Address:     s.Address,
		CreatedAt:   s.CreatedAt,
	}
}

type manufacturerResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Country     string    `json:"country"`
	PhoneNumber string    `json:"phone_number,omitempty"`
	Address     string    `json:"address,omitempty"`
	Website     string    `json:"website,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func toManufacturerResponse(m *catalog.Manufacturer) manufacturerResponse {
	return manufacturerResponse{
		ID:          m.ID,
		Name:        m.Name,
		Country:     m.Country,
		PhoneNumber: m.PhoneNumber,
		Address:     m.Address,
		Website:     m.Website,
		CreatedAt:   m.CreatedAt,
	}
}

type categoryResponse struct {
	ID       uuid.UUID  `json:"id"`
	Name     string     `json:"name"`
	ParentID *uuid.UUID `json:"parent_id"`
}

type ingredientResponse struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type medicineResponse struct {
	ID                   uuid.UUID `json:"id"`
	InternationalBarcode string    `json:"international_barcode"`
	Name                 string    `json:"name"`
	ActiveIngredientID   uuid.UUID `json:"active_ingredient_id"`
	ActiveIngredient     string    `json:"active_ingredient"`
	CategoryID           uuid.UUID `json:"category_id"`
	Category             string    `json:"category"`
	ManufacturerID       uuid.UUID `json:"manufacturer_id"`
	Manufacturer         string    `json:"manufacturer"`
	UnitsPerPack         int       `json:"units_per_pack"`
	Price                string    `json:"price"`
	UnitPrice            string    `json:"unit_price"`
	Stock                string    `json:"stock"`
	IsAvailable          bool      `json:"is_available"`
	Batches              []string  `json:"batches"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func toMedicineResponse(m *catalog.Medicine) medicineResponse {
	resp := medicineResponse{
		ID:                   m.ID,
		InternationalBarcode: m.InternationalBarcode,
		Name:                 m.Name,
		ActiveIngredientID:   m.ActiveIngredientID,
		ActiveIngredient:     m.ActiveIngredient,
		CategoryID:           m.CategoryID,
		Category:             m.Category,
		ManufacturerID:       m.ManufacturerID,
		Manufacturer:         m.Manufacturer,
		UnitsPerPack:         m.UnitsPerPack,
		Price:                m.Price.StringFixed(2),
		Stock:                m.Stock(),
		IsAvailable:          m.IsAvailable(),
		Batches:              m.BatchBarcodes,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}

	if resp.Batches == nil {
		resp.Batches = []string{}
	}

	if up, err := m.UnitPrice(); err == nil {
		resp.UnitPrice = up.StringFixed(2)
	}

	return resp
}

func toMedicineList(ms []*catalog.Medicine) []medicineResponse {
	resp := make([]medicineResponse, len(ms))
	for i, m := range ms {
		resp[i] = toMedicineResponse(m)
	}

	return resp
}

type BatchResponse struct {
	ID         uuid.UUID `json:"id"`
	Barcode    string    `json:"barcode"`
	MedicineID uuid.UUID `json:"medicine_id"`
	Medicine   string    `json:"medicine,omitempty"`
	ExpiryDate string    `json:"expiry_date"`
	StockUnits int64     `json:"stock_units"`
	Stock      string    `json:"stock"`
	UnitPrice  string    `json:"unit_price,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ToBatchResponse is shared with the report handler.
func ToBatchResponse(b *catalog.Batch) BatchResponse {
	resp := BatchResponse{
		ID:         b.ID,
		Barcode:    b.Barcode,
		MedicineID: b.MedicineID,
		ExpiryDate: catalog.FormatExpiryMonth(b.ExpiryDate),
		StockUnits: b.StockUnits,
		Stock:      b.StockPackets(),
		CreatedAt:  b.CreatedAt,
	}

	if b.Medicine != nil {
		resp.Medicine = b.Medicine.Name
	}

	if up, err := b.UnitPrice(); err == nil {
		resp.UnitPrice = up.StringFixed(2)
	}

	return resp
}

func ToBatchList(bs []*catalog.Batch) []BatchResponse {
	resp := make([]BatchResponse, len(bs))
	for i, b := range bs {
		resp[i] = ToBatchResponse(b)
	}

	return resp
}

type importIssueResponse struct {
	Line   int    `json:"line"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

type importResponse struct {
	Created []medicineResponse    `json:"created"`
	Skipped []importIssueResponse `json:"skipped"`
	Invalid []importIssueResponse `json:"invalid"`
}

func toImportResponse(res *catalog.ImportResult) importResponse {
	issues := func(in []catalog.ImportIssue) []importIssueResponse {
		out := make([]importIssueResponse, len(in))
		for i, is := range in {
			out[i] = importIssueResponse{Line: is.Line, Name: is.Name, Reason: is.Reason}
		}

		return out
	}

	return importResponse{
		Created: toMedicineList(res.Created),
		Skipped: issues(res.Skipped),
		Invalid: issues(res.Invalid),
	}
}
