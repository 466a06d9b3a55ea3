// Package period filters records by their creation date.
package period

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/MrJamesThe3rd/pharmacy/internal/apperr"
)

// Filter restricts a listing to records created in a date range. Every field
// is optional and all set fields must hold.
type Filter struct {
	On    *time.Time // created that calendar day
	From  *time.Time // created on or after
	To    *time.Time // created on or before
	Month *int
	Year  *int
}

// FromQuery reads created, created_gte, created_lte, created_month and created_year.
func FromQuery(q url.Values) (Filter, error) {
	var (
		f    Filter
		errs = apperr.FieldErrors{}
	)

	dates := map[string]**time.Time{
		"created":     &f.On,
		"created_gte": &f.From,
		"created_lte": &f.To,
	}

	for key, dst := range dates {
		raw := q.Get(key)
		if raw == "" {
			continue
		}

		t, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			errs[key] = "must be a date in YYYY-MM-DD format"
			continue
		}

		*dst = &t
	}

	if raw := q.Get("created_month"); raw != "" {
		m, err := strconv.Atoi(raw)
		if err != nil || m < 1 || m > 12 {
			errs["created_month"] = "must be between 1 and 12"
		} else {
			f.Month = &m
		}
	}

	if raw := q.Get("created_year"); raw != "" {
		y, err := strconv.Atoi(raw)
		if err != nil || y < 1 {
			errs["created_year"] = "must be a year"
		} else {
			f.Year = &y
		}
	}

	if len(errs) > 0 {
		return Filter{}, errs
	}

	return f, nil
}

// Where renders the filter as SQL conditions on column, numbering
// placeholders from argIdx. It returns the conditions (each prefixed with
// " AND "), their arguments and the next free placeholder index.
func (f Filter) Where(column string, argIdx int) (string, []any, int) {
	var (
		sql  string
		args []any
	)

	add := func(cond string, v any) {
		sql += fmt.Sprintf(" AND "+cond, column, argIdx)
		args = append(args, v)
		argIdx++
	}

	if f.On != nil {
		add("%s::date = $%d", f.On.Format(time.DateOnly))
	}

	if f.From != nil {
		add("%s::date >= $%d", f.From.Format(time.DateOnly))
	}

	if f.To != nil {
		add("%s::date <= $%d", f.To.Format(time.DateOnly))
	}

	if f.Month != nil {
		add("EXTRACT(MONTH FROM %s) = $%d", *f.Month)
	}

	if f.Year != nil {
		add("EXTRACT(YEAR FROM %s) = $%d", *f.Year)
	}

	return sql, args, argIdx
}
