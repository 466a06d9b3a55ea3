package importer

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/MrJamesThe3rd/pharmacy/internal/apperr"
	"github.com/MrJamesThe3rd/pharmacy/internal/catalog"
	"github.com/MrJamesThe3rd/pharmacy/internal/importer/medcsv"
)

// Catalog loads parsed rows into the medicine catalogue.
type Catalog interface {
	Import(ctx context.Context, rows []catalog.ImportRow) (*catalog.ImportResult, error)
}

type Service struct {
	catalog   Catalog
	importers map[Format]Importer
	log       logrus.FieldLogger
}

func NewService(c Catalog, log logrus.FieldLogger) *Service {
	return &Service{
		catalog: c,
		importers: map[Format]Importer{
			FormatCSV: medcsv.NewParser(),
		},
		log: log,
	}
}

// Import parses r in the given format and loads the medicines it lists.
func (s *Service) Import(ctx context.Context, format Format, r io.Reader) (*catalog.ImportResult, error) {
	importer, ok := s.importers[format]
	if !ok {
		return nil, apperr.Invalid("format", "unknown format %q", format)
	}

	rows, err := importer.Parse(r)
	if err != nil {
		return nil, apperr.Invalid("file", "%s", err.Error())
	}

	s.log.WithFields(logrus.Fields{"format": format, "rows": len(rows)}).Info("Parsed medicine catalogue")

	res, err := s.catalog.Import(ctx, rows)
	if err != nil {
		return nil, fmt.Errorf("importing medicines: %w", err)
	}

	return res, nil
}
