package catalog

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/ttacon/libphonenumber"
	"golang.org/x/text/language"

	"github.com/MrJamesThe3rd/pharmacy/internal/apperr"
)

const (
	maxNameLength     = 50
	maxCategoryLength = 100
	maxUnitsPerPack   = 32767
	minBarcodeDigits  = 13
	maxBarcodeDigits  = 16
)

func validateName(errs apperr.FieldErrors, field, name string, max int) {
	switch {
	case strings.TrimSpace(name) == "":
		errs[field] = "is required"
	case utf8.RuneCountInString(name) > max:
		errs[field] = "is too long"
	}
}

func validateInternationalBarcode(errs apperr.FieldErrors, code string) {
	if len(code) < minBarcodeDigits || len(code) > maxBarcodeDigits {
		errs["international_barcode"] = "must have 13 to 16 digits"
		return
	}

	for _, r := range code {
		if r < '0' || r > '9' {
			errs["international_barcode"] = "must contain digits only"
			return
		}
	}
}

func validateUnitsPerPack(errs apperr.FieldErrors, n int) {
	if n < 1 || n > maxUnitsPerPack {
		errs["units_per_pack"] = "must be between 1 and 32767"
	}
}

// normalizePhone parses raw in the context of region and returns it as E.164.
func normalizePhone(raw, region string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}

	num, err := libphonenumber.Parse(raw, region)
	if err != nil || !libphonenumber.IsValidNumber(num) {
		return "", apperr.Invalid("phone_number", "is not a valid phone number")
	}

	return libphonenumber.Format(num, libphonenumber.E164), nil
}

// normalizeCountry accepts an ISO 3166-1 alpha-2 code in any case.
func normalizeCountry(raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if len(code) != 2 {
		return "", apperr.Invalid("country", "must be a two-letter country code")
	}

	region, err := language.ParseRegion(code)
	if err != nil || !region.IsCountry() {
		return "", apperr.Invalid("country", "is not a known country")
	}

	return region.String(), nil
}

func validateWebsite(raw string) error {
	if raw == "" {
		return nil
	}

	u, err := url.ParseRequestURI(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apperr.Invalid("website", "must be an http or https URL")
	}

	if len(raw) > 200 {
		return apperr.Invalid("website", "is too long")
	}

	return nil
}
