package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/MrJamesThe3rd/pharmacy/internal/apperr"
)

// ImportRow is one medicine read from a catalogue file. Problem is set by the
// parser when the row could not be read at all.
type ImportRow struct {
	Line                 int
	Name                 string
	InternationalBarcode string
	ActiveIngredient     string
	Category             string
	Manufacturer         string
	ManufacturerCountry  string
	UnitsPerPack         int
	Price                decimal.Decimal
	Problem              string
}

type ImportIssue struct {
	Line   int
	Name   string
	Reason string
}

type ImportResult struct {
	Created []*Medicine
	Skipped []ImportIssue
	Invalid []ImportIssue
}

// Import creates the medicines described by rows. Ingredients, categories and
// manufacturers are looked up by name and created when missing. Rows that
// clash with an existing medicine are skipped; the rest of the file still loads.
func (s *Service) Import(ctx context.Context, rows []ImportRow) (*ImportResult, error) {
	res := &ImportResult{}

	for _, row := range rows {
		issue := ImportIssue{Line: row.Line, Name: row.Name}

		if row.Problem != "" {
			issue.Reason = row.Problem
			res.Invalid = append(res.Invalid, issue)

			continue
		}

		if err := validateImportRow(row); err != nil {
			issue.Reason = err.Error()
			res.Invalid = append(res.Invalid, issue)

			continue
		}

		m, err := s.importRow(ctx, row)

		switch {
		case errors.Is(err, apperr.ErrConflict):
			issue.Reason = err.Error()
			res.Skipped = append(res.Skipped, issue)
		case errors.Is(err, apperr.ErrValidation):
			issue.Reason = err.Error()
			res.Invalid = append(res.Invalid, issue)
		case err != nil:
			return nil, err
		default:
			res.Created = append(res.Created, m)
		}
	}

	s.log.WithFields(logrus.Fields{
		"created": len(res.Created),
		"skipped": len(res.Skipped),
		"invalid": len(res.Invalid),
	}).Info("medicine import finished")

	return res, nil
}

func validateImportRow(row ImportRow) error {
	errs := apperr.FieldErrors{}
	validateName(errs, "active_ingredient", row.ActiveIngredient, maxNameLength)
	validateName(errs, "category", row.Category, maxCategoryLength)
	validateName(errs, "manufacturer", row.Manufacturer, maxNameLength)

	if _, err := normalizeCountry(row.ManufacturerCountry); err != nil {
		errs["manufacturer_country"] = apperr.Fields(err)["country"]
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

func (s *Service) importRow(ctx context.Context, row ImportRow) (*Medicine, error) {
	ingredientID, err := s.repo.EnsureActiveIngredient(ctx, strings.TrimSpace(row.ActiveIngredient))
	if err != nil {
		return nil, err
	}

	categoryID, err := s.repo.EnsureCategory(ctx, strings.TrimSpace(row.Category))
	if err != nil {
		return nil, err
	}

	country, _ := normalizeCountry(row.ManufacturerCountry)

	manufacturerID, err := s.repo.EnsureManufacturer(ctx, strings.TrimSpace(row.Manufacturer), country)
	if err != nil {
		return nil, err
	}

	return s.CreateMedicine(ctx, MedicineParams{
		InternationalBarcode: strings.TrimSpace(row.InternationalBarcode),
		Name:                 row.Name,
		ActiveIngredientID:   ingredientID,
		CategoryID:           categoryID,
		ManufacturerID:       manufacturerID,
		UnitsPerPack:         row.UnitsPerPack,
		Price:                row.Price,
	})
}
