package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/pharmacy/internal/apperr"
	"github.com/MrJamesThe3rd/pharmacy/internal/barcode"
	"github.com/MrJamesThe3rd/pharmacy/internal/catalog"
	"github.com/MrJamesThe3rd/pharmacy/internal/database"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

var uniqueMessages = map[string]string{
	"suppliers_name_key":                  "supplier name already exists",
	"manufacturers_name_key":              "manufacturer name already exists",
	"manufacturers_website_key":           "manufacturer website already exists",
	"categories_name_key":                 "category name already exists",
	"active_ingredients_name_key":         "active ingredient name already exists",
	"medicines_international_barcode_key": "international barcode already exists",
	"medicines_name_key":                  "medicine name already exists",
	"batches_medicine_id_expiry_date_key": "a batch with this expiry date already exists for the medicine",
}

var foreignKeyFields = map[string]string{
	"medicines_active_ingredient_id_fkey": "active_ingredient",
	"medicines_category_id_fkey":          "category",
	"medicines_manufacturer_id_fkey":      "manufacturer",
	"categories_parent_id_fkey":           "parent",
}

// translate maps constraint violations to domain errors and wraps anything else.
func translate(err error, doing string) error {
	if constraint, ok := database.UniqueViolation(err); ok {
		if constraint == "batches_barcode_key" {
			return barcode.ErrTaken
		}

		if msg, known := uniqueMessages[constraint]; known {
			return apperr.Conflict("%s", msg)
		}

		return apperr.Conflict("%s", doing)
	}

	if constraint, ok := database.ForeignKeyViolation(err); ok {
		if field, known := foreignKeyFields[constraint]; known {
			return apperr.Invalid(field, "does not exist")
		}

		return apperr.Conflict("%s: record is still referenced", doing)
	}

	if constraint, ok := database.CheckViolation(err); ok {
		return apperr.Invalid("", "violates %s", constraint)
	}

	return fmt.Errorf("%s: %w", doing, err)
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (s *Store) CreateSupplier(ctx context.Context, sup *catalog.Supplier) error {
	query := `
		INSERT INTO suppliers (name, phone_number, address, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	err := s.db.QueryRowContext(ctx, query, sup.Name, sup.PhoneNumber, sup.Address).
		Scan(&sup.ID, &sup.CreatedAt, &sup.UpdatedAt)
	if err != nil {
		return translate(err, "creating supplier")
	}

	return nil
}

func (s *Store) ListSuppliers(ctx context.Context) ([]*catalog.Supplier, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, phone_number, address, created_at, updated_at
		FROM suppliers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing suppliers: %w", err)
	}
	defer rows.Close()

	var out []*catalog.Supplier

	for rows.Next() {
		var sup catalog.Supplier
		if err := rows.Scan(&sup.ID, &sup.Name, &sup.PhoneNumber, &sup.Address, &sup.CreatedAt, &sup.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning supplier: %w", err)
		}

		out = append(out, &sup)
	}

	return out, rows.Err()
}

// GetSupplier loads a supplier through q, which may be a transaction.
func GetSupplier(ctx context.Context, q database.Querier, id uuid.UUID) (*catalog.Supplier, error) {
	var sup catalog.Supplier

	err := q.QueryRowContext(ctx, `
		SELECT id, name, phone_number, address, created_at, updated_at
		FROM suppliers WHERE id = $1`, id).
		Scan(&sup.ID, &sup.Name, &sup.PhoneNumber, &sup.Address, &sup.CreatedAt, &sup.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("supplier")
	}

	if err != nil {
		return nil, fmt.Errorf("getting supplier: %w", err)
	}

	return &sup, nil
}

func (s *Store) CreateManufacturer(ctx context.Context, mf *catalog.Manufacturer) error {
	query := `
		INSERT INTO manufacturers (name, country, phone_number, address, website, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	err := s.db.QueryRowContext(ctx, query,
		mf.Name, mf.Country, mf.PhoneNumber, mf.Address, nullIfEmpty(mf.Website),
	).Scan(&mf.ID, &mf.CreatedAt, &mf.UpdatedAt)
	if err != nil {
		return translate(err, "creating manufacturer")
	}

	return nil
}

func (s *Store) ListManufacturers(ctx context.Context) ([]*catalog.Manufacturer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, country, phone_number, address, website, created_at, updated_at
		FROM manufacturers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing manufacturers: %w", err)
	}
	defer rows.Close()

	var out []*catalog.Manufacturer

	for rows.Next() {
		var (
			mf      catalog.Manufacturer
			website sql.NullString
		)

		if err := rows.Scan(&mf.ID, &mf.Name, &mf.Country, &mf.PhoneNumber, &mf.Address, &website, &mf.CreatedAt, &mf.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning manufacturer: %w", err)
		}

		mf.Website = website.String
		out = append(out, &mf)
	}

	return out, rows.Err()
}

// EnsureManufacturer returns the id of the manufacturer called name, creating it when missing.
func (s *Store) EnsureManufacturer(ctx context.Context, name, country string) (uuid.UUID, error) {
	return s.ensure(ctx,
		`INSERT INTO manufacturers (name, country) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`,
		`SELECT id FROM manufacturers WHERE name = $1`,
		name, country)
}

func (s *Store) EnsureCategory(ctx context.Context, name string) (uuid.UUID, error) {
	return s.ensure(ctx,
		`INSERT INTO categories (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`,
		`SELECT id FROM categories WHERE name = $1`,
		name)
}

func (s *Store) EnsureActiveIngredient(ctx context.Context, name string) (uuid.UUID, error) {
	return s.ensure(ctx,
		`INSERT INTO active_ingredients (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`,
		`SELECT id FROM active_ingredients WHERE name = $1`,
		name)
}

func (s *Store) ensure(ctx context.Context, insert, lookup string, args ...any) (uuid.UUID, error) {
	if _, err := s.db.ExecContext(ctx, insert, args...); err != nil {
		return uuid.Nil, translate(err, "ensuring lookup record")
	}

	var id uuid.UUID
	if err := s.db.QueryRowContext(ctx, lookup, args[0]).Scan(&id); err != nil {
		return uuid.Nil, fmt.Errorf("reading lookup record: %w", err)
	}

	return id, nil
}

func (s *Store) CreateCategory(ctx context.Context, c *catalog.Category) error {
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO categories (name, parent_id) VALUES ($1, $2) RETURNING id`,
		c.Name, c.ParentID,
	).Scan(&c.ID)
	if err != nil {
		return translate(err, "creating category")
	}

	return nil
}

func (s *Store) GetCategory(ctx context.Context, id uuid.UUID) (*catalog.Category, error) {
	var c catalog.Category

	err := s.db.QueryRowContext(ctx, `SELECT id, name, parent_id FROM categories WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.ParentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("category")
	}

	if err != nil {
		return nil, fmt.Errorf("getting category: %w", err)
	}

	return &c, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]*catalog.Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, parent_id FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	var out []*catalog.Category

	for rows.Next() {
		var c catalog.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.ParentID); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}

		out = append(out, &c)
	}

	return out, rows.Err()
}

func (s *Store) CreateActiveIngredient(ctx context.Context, a *catalog.ActiveIngredient) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO active_ingredients (name, created_at, updated_at)
		VALUES ($1, NOW(), NOW())
		RETURNING id, created_at, updated_at`, a.Name,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return translate(err, "creating active ingredient")
	}

	return nil
}

func (s *Store) ListActiveIngredients(ctx context.Context) ([]*catalog.ActiveIngredient, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, created_at, updated_at FROM active_ingredients ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing active ingredients: %w", err)
	}
	defer rows.Close()

	var out []*catalog.ActiveIngredient

	for rows.Next() {
		var a catalog.ActiveIngredient
		if err := rows.Scan(&a.ID, &a.Name, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning active ingredient: %w", err)
		}

		out = append(out, &a)
	}

	return out, rows.Err()
}

const selectMedicineColumns = `
	m.id, m.international_barcode, m.name,
	m.active_ingredient_id, ai.name, m.category_id, c.name, m.manufacturer_id, mf.name,
	m.units_per_pack, m.price, m.created_at, m.updated_at,
	COALESCE((SELECT SUM(b.stock_units) FROM batches b WHERE b.medicine_id = m.id), 0),
	COALESCE((SELECT string_agg(b.barcode, ',' ORDER BY b.expiry_date) FROM batches b WHERE b.medicine_id = m.id), '')
`

const medicineJoins = `
	FROM medicines m
	JOIN active_ingredients ai ON ai.id = m.active_ingredient_id
	JOIN categories c ON c.id = m.category_id
	JOIN manufacturers mf ON mf.id = m.manufacturer_id
`

// scanMedicine expects the columns of selectMedicineColumns.
func scanMedicine(s scanner) (*catalog.Medicine, error) {
	var (
		m        catalog.Medicine
		barcodes string
	)

	if err := s.Scan(
		&m.ID, &m.InternationalBarcode, &m.Name,
		&m.ActiveIngredientID, &m.ActiveIngredient, &m.CategoryID, &m.Category, &m.ManufacturerID, &m.Manufacturer,
		&m.UnitsPerPack, &m.Price, &m.CreatedAt, &m.UpdatedAt,
		&m.StockUnits, &barcodes,
	); err != nil {
		return nil, err
	}

	if barcodes != "" {
		m.BatchBarcodes = strings.Split(barcodes, ",")
	}

	return &m, nil
}

func (s *Store) CreateMedicine(ctx context.Context, med *catalog.Medicine) error {
	query := `
		INSERT INTO medicines (international_barcode, name, active_ingredient_id, category_id, manufacturer_id,
			units_per_pack, price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	err := s.db.QueryRowContext(ctx, query,
		med.InternationalBarcode, med.Name, med.ActiveIngredientID, med.CategoryID, med.ManufacturerID,
		med.UnitsPerPack, med.Price,
	).Scan(&med.ID, &med.CreatedAt, &med.UpdatedAt)
	if err != nil {
		return translate(err, "creating medicine")
	}

	return nil
}

func (s *Store) GetMedicine(ctx context.Context, id uuid.UUID) (*catalog.Medicine, error) {
	query := `SELECT ` + selectMedicineColumns + medicineJoins + ` WHERE m.id = $1`

	m, err := scanMedicine(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("medicine")
	}

	if err != nil {
		return nil, fmt.Errorf("getting medicine: %w", err)
	}

	return m, nil
}

func (s *Store) ListMedicines(ctx context.Context) ([]*catalog.Medicine, error) {
	return s.listMedicines(ctx, `SELECT `+selectMedicineColumns+medicineJoins+` ORDER BY m.name`)
}

// ListSimilarMedicines returns the other medicines sharing med's active
// ingredient and category.
func (s *Store) ListSimilarMedicines(ctx context.Context, med *catalog.Medicine) ([]*catalog.Medicine, error) {
	query := `SELECT ` + selectMedicineColumns + medicineJoins + `
		WHERE m.active_ingredient_id = $1 AND m.category_id = $2 AND m.id <> $3
		ORDER BY m.name`

	return s.listMedicines(ctx, query, med.ActiveIngredientID, med.CategoryID, med.ID)
}

func (s *Store) listMedicines(ctx context.Context, query string, args ...any) ([]*catalog.Medicine, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing medicines: %w", err)
	}
	defer rows.Close()

	var out []*catalog.Medicine

	for rows.Next() {
		m, err := scanMedicine(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning medicine: %w", err)
		}

		out = append(out, m)
	}

	return out, rows.Err()
}

func (s *Store) UpdateMedicine(ctx context.Context, med *catalog.Medicine) error {
	query := `
		UPDATE medicines
		SET name = $1, active_ingredient_id = $2, category_id = $3, manufacturer_id = $4,
			units_per_pack = $5, price = $6, updated_at = NOW()
		WHERE id = $7
	`

	res, err := s.db.ExecContext(ctx, query,
		med.Name, med.ActiveIngredientID, med.CategoryID, med.ManufacturerID, med.UnitsPerPack, med.Price, med.ID)
	if err != nil {
		return translate(err, "updating medicine")
	}

	return expectRow(res, "medicine")
}

func (s *Store) DeleteMedicine(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM medicines WHERE id = $1`, id)
	if err != nil {
		if _, ok := database.ForeignKeyViolation(err); ok {
			return apperr.Conflict("medicine has batches referenced by orders or invoices")
		}

		return fmt.Errorf("deleting medicine: %w", err)
	}

	return expectRow(res, "medicine")
}

func expectRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}

	if n == 0 {
		return apperr.NotFound(what)
	}

	return nil
}
