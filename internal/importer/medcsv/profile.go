package medcsv

import "strings"

// column is a catalogue field and the header spellings that name it.
type column struct {
	Field    string
	Aliases  []string
	Required bool
}

// columns lists the fields read from a catalogue file. A header row matches
// when every required column is present under one of its aliases.
var columns = []column{
	{Field: fieldName, Aliases: []string{"name", "medicine", "medicine name", "trade name"}, Required: true},
	{Field: fieldBarcode, Aliases: []string{"international barcode", "barcode", "gtin", "ean"}, Required: true},
	{Field: fieldIngredient, Aliases: []string{"active ingredient", "ingredient", "scientific name"}, Required: true},
	{Field: fieldCategory, Aliases: []string{"category", "group"}, Required: true},
	{Field: fieldManufacturer, Aliases: []string{"manufacturer", "company"}, Required: true},
	{Field: fieldCountry, Aliases: []string{"manufacturer country", "country"}},
	{Field: fieldUnitsPerPack, Aliases: []string{"units per pack", "pack size", "units"}, Required: true},
	{Field: fieldPrice, Aliases: []string{"price", "pack price"}, Required: true},
}

const (
	fieldName         = "name"
	fieldBarcode      = "international_barcode"
	fieldIngredient   = "active_ingredient"
	fieldCategory     = "category"
	fieldManufacturer = "manufacturer"
	fieldCountry      = "manufacturer_country"
	fieldUnitsPerPack = "units_per_pack"
	fieldPrice        = "price"
)

// normalizeHeader folds case and treats '_' and '-' as spaces.
func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)

	return strings.Join(strings.Fields(s), " ")
}

// colIndex maps a field to its position in the row.
type colIndex map[string]int

// matchHeader returns the field positions when row is a catalogue header.
func matchHeader(row []string) (colIndex, bool) {
	byName := make(map[string]int, len(row))

	for i, cell := range row {
		if name := normalizeHeader(cell); name != "" {
			if _, seen := byName[name]; !seen {
				byName[name] = i
			}
		}
	}

	cols := make(colIndex, len(columns))

	for _, c := range columns {
		for _, alias := range c.Aliases {
			if i, ok := byName[alias]; ok {
				cols[c.Field] = i
				break
			}
		}

		if _, ok := cols[c.Field]; !ok && c.Required {
			return nil, false
		}
	}

	return cols, true
}
