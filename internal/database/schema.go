package database

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL CHECK (role IN ('admin', 'pharmacist', 'accountant', 'cashier')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS suppliers (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name VARCHAR(50) NOT NULL,
		phone_number VARCHAR(20) NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT suppliers_name_key UNIQUE (name)
	)`,
	`CREATE TABLE IF NOT EXISTS manufacturers (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name VARCHAR(50) NOT NULL,
		country CHAR(2) NOT NULL,
		phone_number VARCHAR(20) NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		website VARCHAR(200),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT manufacturers_name_key UNIQUE (name),
		CONSTRAINT manufacturers_website_key UNIQUE (website)
	)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name VARCHAR(100) NOT NULL,
		parent_id UUID REFERENCES categories(id) ON DELETE CASCADE,
		CONSTRAINT categories_name_key UNIQUE (name)
	)`,
	`CREATE TABLE IF NOT EXISTS active_ingredients (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name VARCHAR(50) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT active_ingredients_name_key UNIQUE (name)
	)`,
	`CREATE TABLE IF NOT EXISTS medicines (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		international_barcode VARCHAR(16) NOT NULL CHECK (international_barcode ~ '^[0-9]{13,16}$'),
		name VARCHAR(50) NOT NULL,
		active_ingredient_id UUID NOT NULL REFERENCES active_ingredients(id) ON DELETE CASCADE,
		category_id UUID NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
		manufacturer_id UUID NOT NULL REFERENCES manufacturers(id) ON DELETE CASCADE,
		units_per_pack SMALLINT NOT NULL DEFAULT 1 CHECK (units_per_pack >= 1),
		price NUMERIC(8, 2) NOT NULL CHECK (price >= 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT medicines_international_barcode_key UNIQUE (international_barcode),
		CONSTRAINT medicines_name_key UNIQUE (name)
	)`,
	`CREATE TABLE IF NOT EXISTS batches (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		barcode CHAR(16) NOT NULL,
		expiry_date DATE NOT NULL,
		medicine_id UUID NOT NULL REFERENCES medicines(id) ON DELETE CASCADE,
		stock_units BIGINT NOT NULL DEFAULT 0 CHECK (stock_units >= 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT batches_barcode_key UNIQUE (barcode),
		CONSTRAINT batches_medicine_id_expiry_date_key UNIQUE (medicine_id, expiry_date)
	)`,
	`CREATE INDEX IF NOT EXISTS batches_expiry_date_idx ON batches (expiry_date)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		supplier_id UUID NOT NULL REFERENCES suppliers(id) ON DELETE CASCADE,
		total_before NUMERIC(12, 2) NOT NULL DEFAULT 0 CHECK (total_before >= 0),
		total_after NUMERIC(12, 2) NOT NULL DEFAULT 0 CHECK (total_after >= 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS orders_created_at_idx ON orders (created_at)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		order_id UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		batch_id UUID NOT NULL REFERENCES batches(id) ON DELETE RESTRICT,
		quantity BIGINT NOT NULL CHECK (quantity > 0),
		discount NUMERIC(5, 2) NOT NULL DEFAULT 0 CHECK (discount >= 0 AND discount <= 100),
		CONSTRAINT order_items_order_id_batch_id_key UNIQUE (order_id, batch_id)
	)`,
	`CREATE INDEX IF NOT EXISTS order_items_batch_id_idx ON order_items (batch_id)`,
	`CREATE TABLE IF NOT EXISTS invoices (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		payment_status TEXT NOT NULL DEFAULT 'paid' CHECK (payment_status IN ('paid', 'refunded')),
		discount NUMERIC(5, 2) NOT NULL DEFAULT 0 CHECK (discount >= 0 AND discount <= 100),
		total_before_discount NUMERIC(12, 2) NOT NULL DEFAULT 0 CHECK (total_before_discount >= 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS invoices_created_at_idx ON invoices (created_at)`,
	`CREATE TABLE IF NOT EXISTS sale_items (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		invoice_id UUID NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
		batch_id UUID NOT NULL REFERENCES batches(id) ON DELETE RESTRICT,
		quantity BIGINT NOT NULL DEFAULT 1 CHECK (quantity > 0)
	)`,
	`CREATE INDEX IF NOT EXISTS sale_items_batch_id_idx ON sale_items (batch_id)`,
}

// Migrate creates any missing tables and indexes. It is safe to run on every start.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema statement %d: %w", i+1, err)
		}
	}

	return nil
}
