// Package stock moves units in and out of batches. It is the only code that
// changes a batch's stock as a side effect of orders and invoices.
package stock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/MrJamesThe3rd/pharmacy/internal/apperr"
	"github.com/MrJamesThe3rd/pharmacy/internal/catalog"
)

// Store applies a signed delta to a batch atomically and returns the new
// level. It must refuse, without changing anything, any delta that would make
// the stock negative, reporting apperr.ErrInsufficientStock.
type Store interface {
	AdjustStock(ctx context.Context, batchID uuid.UUID, delta int64) (int64, error)
}

type Ledger struct {
	store Store
	now   func() time.Time
	log   logrus.FieldLogger
}

func NewLedger(store Store, now func() time.Time, log logrus.FieldLogger) *Ledger {
	return &Ledger{store: store, now: now, log: log}
}

// Receive adds units delivered by a purchase order.
func (l *Ledger) Receive(ctx context.Context, b *catalog.Batch, quantity int64) error {
	if err := positive(quantity); err != nil {
		return err
	}

	return l.apply(ctx, "receive", b, quantity)
}

// ReverseReceipt takes back units of a removed purchase order line.
func (l *Ledger) ReverseReceipt(ctx context.Context, b *catalog.Batch, quantity int64) error {
	if err := positive(quantity); err != nil {
		return err
	}

	if err := l.apply(ctx, "reverse receipt", b, -quantity); err != nil {
		return fmt.Errorf("batch %s has already sold part of this delivery: %w", b.Barcode, err)
	}

	return nil
}

// CommitSale takes units out of a batch for an invoice line. Expired batches
// and quantities above the stock on hand are rejected before touching the store.
func (l *Ledger) CommitSale(ctx context.Context, b *catalog.Batch, quantity int64) error {
	if err := positive(quantity); err != nil {
		return err
	}

	if b.IsExpired(l.now()) {
		return fmt.Errorf("batch %s expired on %s: %w",
			b.Barcode, catalog.FormatExpiryMonth(b.ExpiryDate), apperr.ErrExpiredBatch)
	}

	if quantity > b.StockUnits {
		return fmt.Errorf("batch %s has %d units, %d requested: %w",
			b.Barcode, b.StockUnits, quantity, apperr.ErrInsufficientStock)
	}

	return l.apply(ctx, "sell", b, -quantity)
}

// ReverseSale puts back units of a refunded or replaced invoice line. Expired
// batches are accepted.
func (l *Ledger) ReverseSale(ctx context.Context, b *catalog.Batch, quantity int64) error {
	if err := positive(quantity); err != nil {
		return err
	}

	return l.apply(ctx, "reverse sale", b, quantity)
}

func positive(quantity int64) error {
	if quantity <= 0 {
		return apperr.Invalid("quantity", "must be positive")
	}

	return nil
}

func (l *Ledger) apply(ctx context.Context, op string, b *catalog.Batch, delta int64) error {
	level, err := l.store.AdjustStock(ctx, b.ID, delta)
	if err != nil {
		return err
	}

	l.log.WithFields(logrus.Fields{
		"op":    op,
		"batch": b.Barcode,
		"delta": delta,
		"stock": level,
	}).Debug("stock moved")

	b.StockUnits = level

	return nil
}
