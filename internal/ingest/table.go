package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Format identifies the tabular encoding of a source.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

var (
	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0}
)

// Table is the raw grid read from the first sheet of a source.
type Table struct {
	Header []string
	Rows   [][]any
	// HeaderRow is the zero-based index of the header within the sheet.
	HeaderRow int
}

// ResolveFormat picks the format from the declared value, the file name and
// finally the leading bytes of the payload.
func ResolveFormat(name string, declared Format, head []byte) (Format, error) {
	switch Format(strings.ToLower(string(declared))) {
	case FormatXLSX:
		return FormatXLSX, nil
	case FormatCSV:
		return FormatCSV, nil
	case "":
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, declared)
	}
	switch strings.ToLower(filepath.Ext(strings.TrimSpace(name))) {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xls":
		return "", fmt.Errorf("%w: legacy .xls workbooks must be saved as .xlsx", ErrUnsupportedFormat)
	}
	switch {
	case bytes.HasPrefix(head, zipMagic):
		return FormatXLSX, nil
	case bytes.HasPrefix(head, oleMagic):
		return "", fmt.Errorf("%w: legacy .xls workbooks must be saved as .xlsx", ErrUnsupportedFormat)
	}
	return FormatCSV, nil
}

// ReadTable reads the first sheet (xlsx) or the whole file (csv) into a Table.
func ReadTable(r io.Reader, format Format) (Table, error) {
	var (
		grid [][]string
		err  error
	)
	switch format {
	case FormatXLSX:
		grid, err = readWorkbook(r)
	case FormatCSV:
		grid, err = readCSV(r)
	default:
		return Table{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return Table{}, err
	}
	return buildTable(grid)
}

func readWorkbook(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableSource, err)
	}
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrUnreadableSource)
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %v", ErrUnreadableSource, sheet, err)
	}
	return rows, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableSource, err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.Comma = sniffDelimiter(data)
	rows, err := reader.ReadAll()
	if err != nil {
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			return nil, fmt.Errorf("%w: line %d: %v", ErrUnreadableSource, parseErr.Line, parseErr.Err)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnreadableSource, err)
	}
	return rows, nil
}

// sniffDelimiter prefers ';' when the first line uses it more than ','.
func sniffDelimiter(data []byte) rune {
	line := data
	if idx := bytes.IndexByte(data, '\n'); idx >= 0 {
		line = data[:idx]
	}
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}

func buildTable(grid [][]string) (Table, error) {
	if len(grid) == 0 {
		return Table{}, ErrEmptySource
	}
	headerIdx := -1
	for i, row := range grid {
		if !blankStrings(row) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return Table{}, ErrMissingHeader
	}
	header := make([]string, len(grid[headerIdx]))
	for i, cell := range grid[headerIdx] {
		header[i] = strings.TrimSpace(cell)
	}
	rows := make([][]any, 0, len(grid)-headerIdx-1)
	for _, row := range grid[headerIdx+1:] {
		cells := make([]any, len(row))
		for i, cell := range row {
			cells[i] = cell
		}
		rows = append(rows, cells)
	}
	return Table{Header: header, Rows: rows, HeaderRow: headerIdx}, nil
}

func blankStrings(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
