package services

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/xuri/excelize/v2"
)

// Spreadsheet formats accepted for import and produced by export.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// FormatFromFilename derives the spreadsheet format from the file extension.
func FormatFromFilename(filename string) (string, error) {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), ".")) {
	case FormatCSV, "txt":
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filename)
	}
}

// readSpreadsheet returns all rows of the file, header first. For workbooks
// only the first sheet is read.
func readSpreadsheet(filename string, r io.Reader) ([][]string, error) {
	format, err := FormatFromFilename(filename)
	if err != nil {
		return nil, err
	}
	if format == FormatXLSX {
		return readXLSX(r)
	}
	return readCSV(r)
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func readCSV(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading CSV: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sniffDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: invalid CSV: %v", ErrValidation, err)
	}
	return rows, nil
}

// sniffDelimiter picks ';' when the header line has more semicolons than
// commas, as spreadsheet programs in German locales write them.
func sniffDelimiter(data []byte) rune {
	firstLine := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		firstLine = data[:i]
	}
	if bytes.Count(firstLine, []byte(";")) > bytes.Count(firstLine, []byte(",")) {
		return ';'
	}
	return ','
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid XLSX: %v", ErrValidation, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrValidation)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

// normalizeHeader lowercases s and drops everything but letters and digits,
// so "Sales Order-ID" and "sales_order_id" compare equal.
func normalizeHeader(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// columnIndex maps a canonical field name to its column position.
type columnIndex map[string]int

// matchColumns resolves header cells against per-field alias lists. The
// first matching column wins.
func matchColumns(header []string, aliases map[string][]string) columnIndex {
	lookup := make(map[string]string)
	for field, names := range aliases {
		lookup[normalizeHeader(field)] = field
		for _, name := range names {
			lookup[normalizeHeader(name)] = field
		}
	}
	cols := columnIndex{}
	for i, cell := range header {
		field, ok := lookup[normalizeHeader(cell)]
		if !ok {
			continue
		}
		if _, taken := cols[field]; !taken {
			cols[field] = i
		}
	}
	return cols
}

func (c columnIndex) has(field string) bool {
	_, ok := c[field]
	return ok
}

// value returns the trimmed cell for field, or "" when the column is absent
// or the row is short.
func (c columnIndex) value(row []string, field string) string {
	i, ok := c[field]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// parseFlag reads the yes/no spellings found in exported sheets.
func parseFlag(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "ja", "j", "x":
		return true, true
	case "0", "false", "no", "n", "nein":
		return false, true
	default:
		return false, false
	}
}
