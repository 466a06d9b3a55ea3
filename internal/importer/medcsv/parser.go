// Package medcsv reads medicine catalogue exports in CSV form.
package medcsv

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/MrJamesThe3rd/pharmacy/internal/catalog"
	enc "github.com/MrJamesThe3rd/pharmacy/internal/encoding"
)

var ErrNoHeader = errors.New("no catalogue header found: expected name, international_barcode, active_ingredient, category, manufacturer, units_per_pack and price columns")

// Parser reads catalogue CSV files separated by ';' or ','. Rows before the
// header are ignored. Rows that cannot be read are returned with Problem set
// so the caller can report them by line.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(r io.Reader) ([]catalog.ImportRow, error) {
	utf8r, err := enc.NewUTF8Reader(r)
	if err != nil {
		return nil, fmt.Errorf("detect encoding: %w", err)
	}

	br := bufio.NewReader(utf8r)

	head, err := br.Peek(4096)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("peek: %w", err)
	}

	reader := csv.NewReader(br)
	reader.Comma = sniffDelimiter(head)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var (
		cols  colIndex
		out   []catalog.ImportRow
		empty = true
	)

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}

		empty = false

		if cols == nil {
			cols, _ = matchHeader(row)
			continue
		}

		if isBlank(row) {
			continue
		}

		line, _ := reader.FieldPos(0)
		out = append(out, parseRow(cols, row, line))
	}

	if cols == nil && !empty {
		return nil, ErrNoHeader
	}

	return out, nil
}

// sniffDelimiter picks ';' or ',' from whichever appears more on the first
// line that has either.
func sniffDelimiter(head []byte) rune {
	for line := range bytes.SplitSeq(head, []byte("\n")) {
		semi, comma := bytes.Count(line, []byte(";")), bytes.Count(line, []byte(","))
		if semi == 0 && comma == 0 {
			continue
		}

		if semi >= comma {
			return ';'
		}

		return ','
	}

	return ','
}

func parseRow(cols colIndex, row []string, line int) catalog.ImportRow {
	ir := catalog.ImportRow{
		Line:                 line,
		Name:                 cellValue(row, cols, fieldName),
		InternationalBarcode: cellValue(row, cols, fieldBarcode),
		ActiveIngredient:     cellValue(row, cols, fieldIngredient),
		Category:             cellValue(row, cols, fieldCategory),
		Manufacturer:         cellValue(row, cols, fieldManufacturer),
		ManufacturerCountry:  cellValue(row, cols, fieldCountry),
	}

	var problems []string

	upp, err := strconv.Atoi(cellValue(row, cols, fieldUnitsPerPack))
	if err != nil {
		problems = append(problems, "units_per_pack: must be a whole number")
	}

	ir.UnitsPerPack = upp

	price, err := parsePrice(cellValue(row, cols, fieldPrice))
	if err != nil {
		problems = append(problems, "price: must be a decimal number")
	}

	ir.Price = price
	ir.Problem = strings.Join(problems, "; ")

	return ir
}

// cellValue safely gets a trimmed cell value from a row.
func cellValue(row []string, cols colIndex, field string) string {
	idx, ok := cols[field]
	if !ok || idx >= len(row) {
		return ""
	}

	return strings.TrimSpace(row[idx])
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}

	return true
}
