package importer

import (
	"io"

	"github.com/MrJamesThe3rd/pharmacy/internal/catalog"
)

type Format string

const (
	FormatCSV Format = "csv"
)

// Importer turns a catalogue file into rows ready for catalog.Service.Import.
type Importer interface {
	Parse(r io.Reader) ([]catalog.ImportRow, error)
}
