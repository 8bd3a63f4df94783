// Package tabular turns uploaded CSV and XLSX files into in-memory tables and
// renders bounded text previews of them.
package tabular

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"meddatachat/internal/models"
)

const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

var allowedExtensions = []string{".csv", ".xlsx"}

// DefaultUnzipLimit caps the inflated size of a workbook when the caller
// gives no limit of its own.
const DefaultUnzipLimit int64 = 256 << 20

var utf8BOM = []byte("\ufeff")

// dateFormatIDs are the built-in number formats that render dates or times.
var dateFormatIDs = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 18: true, 19: true, 20: true,
	21: true, 22: true, 45: true, 46: true, 47: true,
}

// ErrEmptyFile is wrapped by ParseError when an upload carries no header row.
var ErrEmptyFile = errors.New("no columns to parse from file")

// ParseError reports upload content that does not match its declared format.
type ParseError struct {
	Format string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Format, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Supported reports whether name carries one of the accepted extensions.
func Supported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range allowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// AllowedExtensions lists the accepted upload extensions, for file pickers.
func AllowedExtensions() []string {
	out := make([]string, len(allowedExtensions))
	copy(out, allowedExtensions)
	return out
}

// FormatOf returns the parser a file name dispatches to: CSV for the .csv
// suffix, a workbook for everything else.
func FormatOf(name string) string {
	if strings.HasSuffix(strings.ToLower(name), ".csv") {
		return FormatCSV
	}
	return FormatXLSX
}

// Load parses r according to the extension of name. Header cells become the
// column names; every following non-blank line becomes a row.
func Load(r io.Reader, name string) (*models.Table, error) {
	return LoadLimit(r, name, 0)
}

// LoadLimit is Load with a cap on how many bytes a workbook may inflate to.
// A non-positive unzipLimit means DefaultUnzipLimit.
func LoadLimit(r io.Reader, name string, unzipLimit int64) (*models.Table, error) {
	if FormatOf(name) == FormatCSV {
		return loadCSV(r)
	}
	if unzipLimit <= 0 {
		unzipLimit = DefaultUnzipLimit
	}
	return loadWorkbook(r, unzipLimit)
}

func loadCSV(r io.Reader) (*models.Table, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, &ParseError{Format: FormatCSV, Err: err}
	}
	if len(records) == 0 {
		return nil, &ParseError{Format: FormatCSV, Err: ErrEmptyFile}
	}
	columns := normalizeHeader(records[0])
	rows := make([]models.Row, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) > len(columns) {
			// line numbers are 1-based and include the header
			return nil, &ParseError{
				Format: FormatCSV,
				Err:    fmt.Errorf("line %d: expected %d fields, saw %d", i+2, len(columns), len(rec)),
			}
		}
		rows = append(rows, buildRow(rec, len(columns)))
	}
	return &models.Table{Columns: columns, Rows: rows}, nil
}

func loadWorkbook(r io.Reader, unzipLimit int64) (*models.Table, error) {
	f, err := excelize.OpenReader(r, excelize.Options{UnzipSizeLimit: unzipLimit})
	if err != nil {
		return nil, &ParseError{Format: FormatXLSX, Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &ParseError{Format: FormatXLSX, Err: errors.New("workbook has no sheets")}
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, &ParseError{Format: FormatXLSX, Err: fmt.Errorf("read sheet %q: %w", sheets[0], err)}
	}
	raw, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &ParseError{Format: FormatXLSX, Err: fmt.Errorf("read sheet %q: %w", sheets[0], err)}
	}
	useStoredNumbers(f, sheets[0], records, raw)
	records = dropBlankRecords(records)
	if len(records) == 0 {
		return nil, &ParseError{Format: FormatXLSX, Err: ErrEmptyFile}
	}
	columns := normalizeHeader(records[0])
	rows := make([]models.Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) > len(columns) {
			rec = rec[:len(columns)]
		}
		rows = append(rows, buildRow(rec, len(columns)))
	}
	return &models.Table{Columns: columns, Rows: rows}, nil
}

// useStoredNumbers replaces display-formatted numeric cells ("12,345",
// "12.50%") with the number stored in the workbook. Booleans and cells with a
// date or time format keep their displayed text.
func useStoredNumbers(f *excelize.File, sheet string, shown, raw [][]string) {
	for r, rec := range shown {
		if r >= len(raw) {
			return
		}
		for c, text := range rec {
			if c >= len(raw[r]) || raw[r][c] == text {
				continue
			}
			stored := raw[r][c]
			if kind := Coerce(stored).Kind; kind != models.KindInt && kind != models.KindFloat {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				continue
			}
			if typ, err := f.GetCellType(sheet, cell); err != nil || typ == excelize.CellTypeBool || typ == excelize.CellTypeDate {
				continue
			}
			if dateStyled(f, sheet, cell) {
				continue
			}
			rec[c] = stored
		}
	}
}

func dateStyled(f *excelize.File, sheet, cell string) bool {
	idx, err := f.GetCellStyle(sheet, cell)
	if err != nil || idx == 0 {
		return false
	}
	style, err := f.GetStyle(idx)
	if err != nil {
		return false
	}
	if style.CustomNumFmt != nil {
		return isDateFormatCode(*style.CustomNumFmt)
	}
	return dateFormatIDs[style.NumFmt]
}

// isDateFormatCode reports whether a custom number format prints date or time
// parts. Quoted literals, escaped characters and bracketed sections such as
// colors or locales are skipped.
func isDateFormatCode(code string) bool {
	inQuote, inBracket := false, false
	for i := 0; i < len(code); i++ {
		ch := code[i]
		switch {
		case inQuote:
			inQuote = ch != '"'
		case inBracket:
			inBracket = ch != ']'
		case ch == '"':
			inQuote = true
		case ch == '[':
			// [h], [m] and [s] are elapsed-time tokens
			if i+2 < len(code) && code[i+2] == ']' && strings.ContainsRune("hmsHMS", rune(code[i+1])) {
				return true
			}
			inBracket = true
		case ch == '\\':
			i++
		default:
			if strings.ContainsRune("ymdhsYMDHS", rune(ch)) {
				return true
			}
		}
	}
	return false
}

func buildRow(rec []string, width int) models.Row {
	row := make(models.Row, width)
	for i := range row {
		if i < len(rec) {
			row[i] = Coerce(rec[i])
		} else {
			row[i] = models.Null()
		}
	}
	return row
}

// normalizeHeader strips a UTF-8 BOM, names blank headers "Unnamed: <i>" and
// de-duplicates repeated names with ".1", ".2" suffixes.
func normalizeHeader(raw []string) []string {
	columns := make([]string, len(raw))
	used := make(map[string]bool, len(raw))
	suffix := make(map[string]int)
	for i, h := range raw {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		name := h
		for used[name] {
			suffix[h]++
			name = fmt.Sprintf("%s.%d", h, suffix[h])
		}
		used[name] = true
		columns[i] = name
	}
	return columns
}

func dropBlankRecords(records [][]string) [][]string {
	out := records[:0]
	for _, rec := range records {
		blank := true
		for _, cell := range rec {
			if strings.TrimSpace(cell) != "" {
				blank = false
				break
			}
		}
		if !blank {
			out = append(out, rec)
		}
	}
	return out
}
