package catalog

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
	"github.com/MrJamesThe3rd/pharmacy/internal/barcode"
	"github.com/MrJamesThe3rd/pharmacy/internal/pricing"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=catalog
type Repository interface {
	CreateSupplier(ctx context.Context, s *Supplier) error
	ListSuppliers(ctx context.Context) ([]*Supplier, error)

	CreateManufacturer(ctx context.Context, mf *Manufacturer) error
	ListManufacturers(ctx context.Context) ([]*Manufacturer, error)
	EnsureManufacturer(ctx context.Context, name, country string) (uuid.UUID, error)

	CreateCategory(ctx context.Context, c *Category) error
	GetCategory(ctx context.Context, id uuid.UUID) (*Category, error)
	ListCategories(ctx context.Context) ([]*Category, error)
	EnsureCategory(ctx context.Context, name string) (uuid.UUID, error)

	CreateActiveIngredient(ctx context.Context, a *ActiveIngredient) error
	ListActiveIngredients(ctx context.Context) ([]*ActiveIngredient, error)
	EnsureActiveIngredient(ctx context.Context, name string) (uuid.UUID, error)

	CreateMedicine(ctx context.Context, med *Medicine) error
	GetMedicine(ctx context.Context, id uuid.UUID) (*Medicine, error)
	ListMedicines(ctx context.Context) ([]*Medicine, error)
	ListSimilarMedicines(ctx context.Context, med *Medicine) ([]*Medicine, error)
	UpdateMedicine(ctx context.Context, med *Medicine) error
	DeleteMedicine(ctx context.Context, id uuid.UUID) error

	// CreateBatch returns barcode.ErrTaken when b.Barcode is already used.
	CreateBatch(ctx context.Context, b *Batch) error
	GetBatch(ctx context.Context, id uuid.UUID) (*Batch, error)
	ListBatches(ctx context.Context, filter BatchFilter) ([]*Batch, error)
	SetBatchStock(ctx context.Context, id uuid.UUID, units int64) error
	DeleteBatch(ctx context.Context, id uuid.UUID) error
}

type Service struct {
	repo        Repository
	log         logrus.FieldLogger
	now         func() time.Time
	phoneRegion string
	barcodes    barcode.Generator
}

type Option func(*Service)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithPhoneRegion sets the region used to parse phone numbers written without a country prefix.
func WithPhoneRegion(region string) Option {
	return func(s *Service) { s.phoneRegion = strings.ToUpper(region) }
}

func WithBarcodeGenerator(gen barcode.Generator) Option {
	return func(s *Service) { s.barcodes = gen }
}

func NewService(repo Repository, log logrus.FieldLogger, opts ...Option) *Service {
	s := &Service{
		repo:        repo,
		log:         log,
		now:         time.Now,
		phoneRegion: "EG",
		barcodes:    barcode.Generate,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

type SupplierParams struct {
	Name        string
	PhoneNumber string
	Address     string
}

func (s *Service) CreateSupplier(ctx context.Context, params SupplierParams) (*Supplier, error) {
	errs := apperr.FieldErrors{}
	validateName(errs, "name", params.Name, maxNameLength)

	phone, err := normalizePhone(params.PhoneNumber, s.phoneRegion)
	if err != nil {
		errs["phone_number"] = apperr.Fields(err)["phone_number"]
	}

	if len(errs) > 0 {
		return nil, errs
	}

	sup := &Supplier{
		Name:        strings.TrimSpace(params.Name),
		PhoneNumber: phone,
		Address:     params.Address,
	}
	if err := s.repo.CreateSupplier(ctx, sup); err != nil {
		return nil, err
	}

	return sup, nil
}

func (s *Service) ListSuppliers(ctx context.Context) ([]*Supplier, error) {
	return s.repo.ListSuppliers(ctx)
}

type ManufacturerParams struct {
	Name        string
	Country     string
	PhoneNumber string
	Address     string
	Website     string
}

func (s *Service) CreateManufacturer(ctx context.Context, params ManufacturerParams) (*Manufacturer, error) {
	errs := apperr.FieldErrors{}
	validateName(errs, "name", params.Name, maxNameLength)

	country, err := normalizeCountry(params.Country)
	if err != nil {
		errs["country"] = apperr.Fields(err)["country"]
	}

	phone, err := normalizePhone(params.PhoneNumber, s.phoneRegion)
	if err != nil {
		errs["phone_number"] = apperr.Fields(err)["phone_number"]
	}

	if err := validateWebsite(params.Website); err != nil {
		errs["website"] = apperr.Fields(err)["website"]
	}

	if len(errs) > 0 {
		return nil, errs
	}

	m := &Manufacturer{
		Name:        strings.TrimSpace(params.Name),
		Country:     country,
		PhoneNumber: phone,
		Address:     params.Address,
		Website:     params.Website,
	}
	if err := s.repo.CreateManufacturer(ctx, m); err != nil {
		return nil, err
	}

	return m, nil
}

func (s *Service) ListManufacturers(ctx context.Context) ([]*Manufacturer, error) {
	return s.repo.ListManufacturers(ctx)
}

type CategoryParams struct {
	Name     string
	ParentID *uuid.UUID
}

func (s *Service) CreateCategory(ctx context.Context, params CategoryParams) (*Category, error) {
	errs := apperr.FieldErrors{}
	validateName(errs, "name", params.Name, maxCategoryLength)

	if len(errs) > 0 {
		return nil, errs
	}

	if params.ParentID != nil {
		_, err := s.repo.GetCategory(ctx, *params.ParentID)
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Invalid("parent", "category does not exist")
		}

		if err != nil {
			return nil, err
		}
	}

	c := &Category{Name: strings.TrimSpace(params.Name), ParentID: params.ParentID}
	if err := s.repo.CreateCategory(ctx, c); err != nil {
		return nil, err
	}

	return c, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]*Category, error) {
	return s.repo.ListCategories(ctx)
}

func (s *Service) CreateActiveIngredient(ctx context.Context, name string) (*ActiveIngredient, error) {
	errs := apperr.FieldErrors{}
	validateName(errs, "name", name, maxNameLength)

	if len(errs) > 0 {
		return nil, errs
	}

	a := &ActiveIngredient{Name: strings.TrimSpace(name)}
	if err := s.repo.CreateActiveIngredient(ctx, a); err != nil {
		return nil, err
	}

	return a, nil
}

func (s *Service) ListActiveIngredients(ctx context.Context) ([]*ActiveIngredient, error) {
	return s.repo.ListActiveIngredients(ctx)
}

type MedicineParams struct {
	InternationalBarcode string
	Name                 string
	ActiveIngredientID   uuid.UUID
	CategoryID           uuid.UUID
	ManufacturerID       uuid.UUID
	UnitsPerPack         int
	Price                decimal.Decimal
}

func (p MedicineParams) validate() error {
	errs := apperr.FieldErrors{}
	validateInternationalBarcode(errs, p.InternationalBarcode)
	validateName(errs, "name", p.Name, maxNameLength)
	validateUnitsPerPack(errs, p.UnitsPerPack)

	if err := pricing.ValidatePrice("price", p.Price); err != nil {
		errs["price"] = apperr.Fields(err)["price"]
	}

	for field, id := range map[string]uuid.UUID{
		"active_ingredient": p.ActiveIngredientID,
		"category":          p.CategoryID,
		"manufacturer":      p.ManufacturerID,
	} {
		if id == uuid.Nil {
			errs[field] = "is required"
		}
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

func (s *Service) CreateMedicine(ctx context.Context, params MedicineParams) (*Medicine, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	m := &Medicine{
		InternationalBarcode: params.InternationalBarcode,
		Name:                 strings.TrimSpace(params.Name),
		ActiveIngredientID:   params.ActiveIngredientID,
		CategoryID:           params.CategoryID,
		ManufacturerID:       params.ManufacturerID,
		UnitsPerPack:         params.UnitsPerPack,
		Price:                params.Price,
	}
	if err := s.repo.CreateMedicine(ctx, m); err != nil {
		return nil, err
	}

	return s.repo.GetMedicine(ctx, m.ID)
}

func (s *Service) GetMedicine(ctx context.Context, id uuid.UUID) (*Medicine, error) {
	return s.repo.GetMedicine(ctx, id)
}

func (s *Service) ListMedicines(ctx context.Context) ([]*Medicine, error) {
	return s.repo.ListMedicines(ctx)
}

// SimilarMedicines lists other medicines with the same active ingredient and
// category as id.
func (s *Service) SimilarMedicines(ctx context.Context, id uuid.UUID) ([]*Medicine, error) {
	m, err := s.repo.GetMedicine(ctx, id)
	if err != nil {
		return nil, err
	}

	return s.repo.ListSimilarMedicines(ctx, m)
}

// MedicineUpdate carries the fields to change; nil fields are kept.
// The international barcode is immutable once created.
type MedicineUpdate struct {
	Name               *string
	ActiveIngredientID *uuid.UUID
	CategoryID         *uuid.UUID
	ManufacturerID     *uuid.UUID
	UnitsPerPack       *int
	Price              *decimal.Decimal
}

func (s *Service) UpdateMedicine(ctx context.Context, id uuid.UUID, upd MedicineUpdate) (*Medicine, error) {
	m, err := s.repo.GetMedicine(ctx, id)
	if err != nil {
		return nil, err
	}

	params := MedicineParams{
		InternationalBarcode: m.InternationalBarcode,
		Name:                 m.Name,
		ActiveIngredientID:   m.ActiveIngredientID,
		CategoryID:           m.CategoryID,
		ManufacturerID:       m.ManufacturerID,
		UnitsPerPack:         m.UnitsPerPack,
		Price:                m.Price,
	}

	if upd.Name != nil {
		params.Name = *upd.Name
	}

	if upd.ActiveIngredientID != nil {
		params.ActiveIngredientID = *upd.ActiveIngredientID
	}

	if upd.CategoryID != nil {
		params.CategoryID = *upd.CategoryID
	}

	if upd.ManufacturerID != nil {
		params.ManufacturerID = *upd.ManufacturerID
	}

	if upd.UnitsPerPack != nil {
		params.UnitsPerPack = *upd.UnitsPerPack
	}

	if upd.Price != nil {
		params.Price = *upd.Price
	}

	if err := params.validate(); err != nil {
		return nil, err
	}

	m.Name = strings.TrimSpace(params.Name)
	m.ActiveIngredientID = params.ActiveIngredientID
	m.CategoryID = params.CategoryID
	m.ManufacturerID = params.ManufacturerID
	m.UnitsPerPack = params.UnitsPerPack
	m.Price = params.Price

	if err := s.repo.UpdateMedicine(ctx, m); err != nil {
		return nil, err
	}

	return s.repo.GetMedicine(ctx, id)
}

func (s *Service) DeleteMedicine(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteMedicine(ctx, id)
}

type BatchParams struct {
	ExpiryMonth string
	Packs       int64
	Units       int64
}

// CreateBatch registers a batch directly under a medicine, outside of any order.
func (s *Service) CreateBatch(ctx context.Context, medicineID uuid.UUID, params BatchParams) (*Batch, error) {
	m, err := s.repo.GetMedicine(ctx, medicineID)
	if err != nil {
		return nil, err
	}

	expiry, err := ParseExpiryMonth(params.ExpiryMonth)
	if err != nil {
		return nil, err
	}

	if err := ValidateExpiry(expiry, s.now()); err != nil {
		return nil, err
	}

	units, err := Quantity(params.Packs, params.Units, m.UnitsPerPack)
	if err != nil {
		return nil, err
	}

	b := &Batch{
		ExpiryDate: expiry,
		MedicineID: m.ID,
		StockUnits: units,
		Medicine:   m,
	}

	_, err = barcode.Assign(ctx, s.barcodes, func(ctx context.Context, code string) error {
		b.Barcode = code
		return s.repo.CreateBatch(ctx, b)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"medicine": m.Name,
		"batch":    b.Barcode,
		"units":    units,
	}).Info("batch created")

	return b, nil
}

func (s *Service) ListBatches(ctx context.Context, medicineID uuid.UUID) ([]*Batch, error) {
	if _, err := s.repo.GetMedicine(ctx, medicineID); err != nil {
		return nil, err
	}

	return s.repo.ListBatches(ctx, BatchFilter{MedicineID: &medicineID})
}

// GetBatch returns the batch only when it belongs to medicineID.
func (s *Service) GetBatch(ctx context.Context, medicineID, batchID uuid.UUID) (*Batch, error) {
	b, err := s.repo.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}

	if b.MedicineID != medicineID {
		return nil, apperr.NotFound("batch")
	}

	return b, nil
}

// BatchUpdate recounts a batch. When Packs is nil the batch is left untouched.
type BatchUpdate struct {
	Packs *int64
	Units int64
}

// UpdateBatch overwrites the stock of a batch with a fresh count. This is a
// stock-take correction, not a ledger movement.
func (s *Service) UpdateBatch(ctx context.Context, medicineID, batchID uuid.UUID, upd BatchUpdate) (*Batch, error) {
	b, err := s.GetBatch(ctx, medicineID, batchID)
	if err != nil {
		return nil, err
	}

	if upd.Packs == nil {
		return b, nil
	}

	units, err := Quantity(*upd.Packs, upd.Units, b.Medicine.UnitsPerPack)
	if err != nil {
		return nil, err
	}

	if err := s.repo.SetBatchStock(ctx, b.ID, units); err != nil {
		return nil, fmt.Errorf("recounting batch %s: %w", b.Barcode, err)
	}

	s.log.WithFields(logrus.Fields{
		"batch": b.Barcode,
		"from":  b.StockUnits,
		"to":    units,
	}).Info("batch recounted")

	b.StockUnits = units

	return b, nil
}

func (s *Service) DeleteBatch(ctx context.Context, medicineID, batchID uuid.UUID) error {
	b, err := s.GetBatch(ctx, medicineID, batchID)
	if err != nil {
		return err
	}

	return s.repo.DeleteBatch(ctx, b.ID)
}
