// Package report lists batches that need the pharmacist's attention.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/MrJamesThe3rd/pharmacy/internal/apperr"
	"github.com/MrJamesThe3rd/pharmacy/internal/catalog"
)

type Kind string

const (
	KindOutOfStock Kind = "out-of-stock"
	KindExpired    Kind = "expired"
	KindNearExpiry Kind = "near-expiry"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindOutOfStock, KindExpired, KindNearExpiry:
		return k, nil
	default:
		return "", apperr.NotFound(fmt.Sprintf("report %q", s))
	}
}

// Title is the human readable name of the report.
func (k Kind) Title() string {
	switch k {
	case KindOutOfStock:
		return "Out of stock"
	case KindExpired:
		return "Expired"
	case KindNearExpiry:
		return "Near expiry"
	default:
		return string(k)
	}
}

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=report
type Repository interface {
	ListBatches(ctx context.Context, filter catalog.BatchFilter) ([]*catalog.Batch, error)
}

type Service struct {
	repo          Repository
	now           func() time.Time
	defaultMonths int
}

// NewService builds a report service. defaultMonths is the near-expiry
// horizon used when the caller does not give one.
func NewService(repo Repository, now func() time.Time, defaultMonths int) *Service {
	if now == nil {
		now = time.Now
	}

	return &Service{repo: repo, now: now, defaultMonths: defaultMonths}
}

// Query selects a report. Months only applies to near-expiry.
type Query struct {
	Kind   Kind
	Months *int
}

// Result is a report ready to be rendered.
type Result struct {
	Kind        Kind
	GeneratedAt time.Time
	Months      int
	Batches     []*catalog.Batch
}

func (s *Service) Run(ctx context.Context, q Query) (*Result, error) {
	now := s.now()
	today := catalog.Today(now)
	res := &Result{Kind: q.Kind, GeneratedAt: now}

	var filter catalog.BatchFilter

	switch q.Kind {
	case KindOutOfStock:
		filter.OutOfStock = true
	case KindExpired:
		filter.ExpiresOnOrBefore = &today
	case KindNearExpiry:
		months := s.defaultMonths
		if q.Months != nil {
			months = *q.Months
		}

		if months < 0 {
			return nil, apperr.Invalid("months", "must not be negative")
		}

		until := catalog.AddMonths(today, months)
		filter.ExpiresFrom = &today
		filter.ExpiresOnOrBefore = &until
		res.Months = months
	default:
		return nil, apperr.NotFound(fmt.Sprintf("report %q", q.Kind))
	}

	batches, err := s.repo.ListBatches(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing %s batches: %w", q.Kind, err)
	}

	res.Batches = batches

	return res, nil
}

func (s *Service) OutOfStock(ctx context.Context) (*Result, error) {
	return s.Run(ctx, Query{Kind: KindOutOfStock})
}

func (s *Service) Expired(ctx context.Context) (*Result, error) {
	return s.Run(ctx, Query{Kind: KindExpired})
}

func (s *Service) NearExpiry(ctx context.Context, months int) (*Result, error) {
	return s.Run(ctx, Query{Kind: KindNearExpiry, Months: &months})
}
