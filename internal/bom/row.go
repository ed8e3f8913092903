package bom

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	pkgerrors "github.com/benchfab/circuitstock/pkg/errors"
)

// Row is one parsed line of a bill-of-materials file.
type Row struct {
	LineNumber    int
	References    []string
	Quantity      int
	Value         string
	FootprintName string
	VendorName    string
	ItemNumber    string
}

// Symbols derives the schematic symbol set from the reference
// designators: "R1, R12" yields just "R".
func (r Row) Symbols() []string {
	seen := make(map[string]struct{}, len(r.References))
	var symbols []string
	for _, ref := range r.References {
		symbol := strings.TrimRight(ref, "0123456789")
		if _, ok := seen[symbol]; ok {
			continue
		}
		seen[symbol] = struct{}{}
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// Summary is the human-readable rendition stored for unresolved rows.
func (r Row) Summary() string {
	return fmt.Sprintf("line=%d value=%s footprint=%s refs=%s vendor=%s part_num=%s qty=%d",
		r.LineNumber, r.Value, r.FootprintName, strings.Join(r.References, ","),
		r.VendorName, r.ItemNumber, r.Quantity)
}

// compactValueRe matches compact component values like "3M3" or "10k5".
// Uppercase N is deliberately absent so part numbers like 1N4148 pass
// through untouched.
var compactValueRe = regexp.MustCompile(`^(\d+)([mMkKuUpPn])(\d+)`)

// NormalizeValue rewrites compact SI notation to decimal form: "3M3"
// becomes "3.3M". The prefix is lower-cased only for U and P, which
// disambiguates micro and pico from case-insensitive mega/peta spellings
// in source data. Anything that doesn't match passes through unchanged.
func NormalizeValue(value string) string {
	m := compactValueRe.FindStringSubmatch(value)
	if m == nil {
		return value
	}
	prefix := m[2]
	if prefix == "U" || prefix == "P" {
		prefix = strings.ToLower(prefix)
	}
	return m[1] + "." + m[3] + prefix
}

// Column aliases seen across KiCad BOM exporters.
var columnAliases = map[string]string{
	"#":         "line",
	"line":      "line",
	"Reference": "references",
	"Ref":       "references",
	"Qty":       "quantity",
	"Qnty":      "quantity",
	"Value":     "value",
	"Footprint": "footprint",
	"Vendor":    "vendor",
	"PartNum":   "part_num",
}

// ParseRows reads a header-driven BOM CSV. A missing or empty
// line-number column falls back to the row's position in the file.
func ParseRows(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bom file is empty")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read bom header")
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		if canonical, ok := columnAliases[strings.TrimSpace(name)]; ok {
			columns[canonical] = i
		}
	}
	for _, required := range []string{"references", "quantity", "value", "footprint"} {
		if _, ok := columns[required]; !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("bom header missing %s column", required))
		}
	}

	field := func(record []string, name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	var rows []Row
	position := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read bom row")
		}
		position++

		row := Row{
			LineNumber:    position,
			Value:         NormalizeValue(field(record, "value")),
			FootprintName: field(record, "footprint"),
			VendorName:    field(record, "vendor"),
			ItemNumber:    field(record, "part_num"),
		}

		if raw := field(record, "line"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return nil, pkgerrors.New(pkgerrors.CodeValidation,
					fmt.Sprintf("bom row %d has invalid line number %q", position, raw))
			}
			row.LineNumber = n
		}

		qty := field(record, "quantity")
		n, err := strconv.Atoi(qty)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("bom row %d has invalid quantity %q", position, qty))
		}
		row.Quantity = n

		for _, ref := range strings.Split(field(record, "references"), ",") {
			ref = strings.TrimSpace(ref)
			if ref != "" {
				row.References = append(row.References, ref)
			}
		}

		rows = append(rows, row)
	}
	return rows, nil
}
