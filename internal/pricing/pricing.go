// Package pricing derives unit prices and line totals from pack prices.
//
// Every function is pure and works on exact decimals; results are rounded
// half-up to two places. Amounts are never negative, so shopspring's
// half-away-from-zero rounding is half-up here.
package pricing

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/pharmacy/internal/apperr"
)

// Places is the number of fractional digits kept on every monetary figure.
const Places = 2

var ErrDivision = errors.New("units per pack must be positive")

var (
	hundred  = decimal.NewFromInt(100)
	maxPrice = decimal.NewFromInt(1_000_000)
)

// Round rounds d half-up to two places.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// UnitPrice is the price of one unit inside a pack.
func UnitPrice(packPrice decimal.Decimal, unitsPerPack int) (decimal.Decimal, error) {
	if unitsPerPack <= 0 {
		return decimal.Zero, ErrDivision
	}

	return packPrice.DivRound(decimal.NewFromInt(int64(unitsPerPack)), Places), nil
}

// LineTotal multiplies an already rounded unit price by a quantity.
func LineTotal(unitPrice decimal.Decimal, quantity int64) decimal.Decimal {
	return Round(unitPrice.Mul(decimal.NewFromInt(quantity)))
}

// SaleLineTotal prices quantity units straight from the pack price, rounding once.
func SaleLineTotal(packPrice decimal.Decimal, unitsPerPack int, quantity int64) (decimal.Decimal, error) {
	if unitsPerPack <= 0 {
		return decimal.Zero, ErrDivision
	}

	return packPrice.Mul(decimal.NewFromInt(quantity)).DivRound(decimal.NewFromInt(int64(unitsPerPack)), Places), nil
}

// DiscountedTotal applies a percentage discount to total.
func DiscountedTotal(total, discountPercent decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Sub(discountPercent.Div(hundred))
	return Round(total.Mul(factor))
}

// Sum adds the given amounts and rounds the result.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	return Round(decimal.Sum(decimal.Zero, amounts...))
}

// ValidateDiscount checks that a percentage lies in [0, 100] with at most two places.
func ValidateDiscount(field string, percent decimal.Decimal) error {
	if percent.IsNegative() || percent.GreaterThan(hundred) {
		return apperr.Invalid(field, "must be between 0 and 100")
	}

	if !percent.Equal(percent.Truncate(Places)) {
		return apperr.Invalid(field, "must have at most %d decimal places", Places)
	}

	return nil
}

// ValidatePrice checks a pack price: non-negative, two places, below one million.
func ValidatePrice(field string, price decimal.Decimal) error {
	if price.IsNegative() {
		return apperr.Invalid(field, "must not be negative")
	}

	if !price.LessThan(maxPrice) {
		return apperr.Invalid(field, "must be less than %s", maxPrice)
	}

	if !price.Equal(price.Truncate(Places)) {
		return apperr.Invalid(field, "must have at most %d decimal places", Places)
	}

	return nil
}
