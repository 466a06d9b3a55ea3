package catalog

import (
	"fmt"
	"strings"
	"time"

	"github.com/MrJamesThe3rd/pharmacy/internal/apperr"
)

const expiryMonthLayout = "2006-01"

// Quantity converts a packs/units pair into a unit count.
// Medicines with a single unit per pack can only be counted in packs.
func Quantity(packs, units int64, unitsPerPack int) (int64, error) {
	if unitsPerPack < 1 {
		return 0, apperr.Invalid("units_per_pack", "must be at least 1")
	}

	errs := apperr.FieldErrors{}

	if packs < 0 {
		errs["packs"] = "must not be negative"
	}

	if units < 0 {
		errs["units"] = "must not be negative"
	}

	if unitsPerPack == 1 && units > 0 {
		errs["units"] = "can't set units for a medicine with one unit per pack"
	}

	if len(errs) > 0 {
		return 0, errs
	}

	return units + packs*int64(unitsPerPack), nil
}

// Packets formats a unit count as "packs:units".
func Packets(units int64, unitsPerPack int) string {
	if unitsPerPack < 1 {
		unitsPerPack = 1
	}

	p := int64(unitsPerPack)

	return fmt.Sprintf("%d:%d", units/p, units%p)
}

// Today truncates t to midnight UTC of its calendar day.
func Today(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseExpiryMonth reads a "YYYY-MM" value as the first day of that month.
func ParseExpiryMonth(s string) (time.Time, error) {
	t, err := time.Parse(expiryMonthLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, apperr.Invalid("expiry_date", "must be a month in YYYY-MM format")
	}

	return t, nil
}

// FormatExpiryMonth renders an expiry date back to "YYYY-MM".
func FormatExpiryMonth(t time.Time) string {
	return t.Format(expiryMonthLayout)
}

// ValidateExpiry rejects expiry dates that are not strictly after today.
func ValidateExpiry(expiry, now time.Time) error {
	if !expiry.After(Today(now)) {
		return apperr.Invalid("expiry_date", "must be in the future")
	}

	return nil
}

// AddMonths moves t by n calendar months, clamping to the last day of the target month.
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	last := first.AddDate(0, 1, -1).Day()

	if d > last {
		d = last
	}

	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
