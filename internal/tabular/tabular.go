// Package tabular reads uploaded CSV and Excel files into column-keyed record sets.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	ErrUnsupportedFormat = errors.New("only CSV and Excel (.xlsx) files are allowed")
	ErrNoSheets          = errors.New("workbook has no worksheets")
)

// Record is one row keyed by column name. Blank cells are left out.
type Record map[string]any

type RecordSet struct {
	Columns []string
	Rows    []Record
}

func (rs RecordSet) Len() int { return len(rs.Rows) }

func (rs RecordSet) HasColumn(name string) bool {
	for _, c := range rs.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// MissingColumns returns the names in required that the set does not carry, in order.
func (rs RecordSet) MissingColumns(required ...string) []string {
	var missing []string
	for _, name := range required {
		if !rs.HasColumn(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// Filter returns a set with the same columns holding only rows that keep accepts.
func (rs RecordSet) Filter(keep func(Record) bool) RecordSet {
	out := RecordSet{Columns: rs.Columns}
	for _, row := range rs.Rows {
		if keep(row) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// IsSupported reports whether filename has a readable extension.
func IsSupported(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}

func IsExcel(filename string) bool {
	return strings.ToLower(filepath.Ext(filename)) == ".xlsx"
}

// Read dispatches on the file extension. sheet is only used for workbooks;
// an empty name selects the first worksheet.
func Read(filename string, r io.Reader, sheet string) (RecordSet, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return ReadCSV(r)
	case ".xlsx":
		return ReadXLSX(r, sheet)
	default:
		return RecordSet{}, ErrUnsupportedFormat
	}
}

func ReadCSV(r io.Reader) (RecordSet, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err == io.EOF {
		return RecordSet{}, nil
	}
	if err != nil {
		return RecordSet{}, fmt.Errorf("read CSV header: %w", err)
	}

	rs := RecordSet{Columns: cleanHeaders(headers)}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return RecordSet{}, fmt.Errorf("read CSV row %d: %w", rs.Len()+2, err)
		}
		if isBlankRow(row) {
			continue
		}
		rs.Rows = append(rs.Rows, toRecord(rs.Columns, row))
	}
	return rs, nil
}

// Sheets lists the worksheet names of a workbook in tab order.
func Sheets(r io.Reader) ([]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

func ReadXLSX(r io.Reader, sheet string) (RecordSet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return RecordSet{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return RecordSet{}, ErrNoSheets
		}
		sheet = sheets[0]
	}

	// Raw values keep full numeric precision; date cells are converted from
	// their serial below instead of going through the display format.
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return RecordSet{}, fmt.Errorf("read worksheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return RecordSet{}, nil
	}

	cells := newCellReader(f, sheet)
	rs := RecordSet{Columns: cleanHeaders(rows[0])}
	for i, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		rs.Rows = append(rs.Rows, cells.record(rs.Columns, i+2, row))
	}
	return rs, nil
}

// cellReader turns raw worksheet values into record values, yielding a
// time.Time for numeric cells styled with a date or time format.
type cellReader struct {
	f         *excelize.File
	sheet     string
	date1904  bool
	dateStyle map[int]bool
}

func newCellReader(f *excelize.File, sheet string) *cellReader {
	c := &cellReader{f: f, sheet: sheet, dateStyle: map[int]bool{}}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		c.date1904 = *props.Date1904
	}
	return c
}

func (c *cellReader) record(columns []string, rowNum int, row []string) Record {
	rec := make(Record, len(columns))
	for i, col := range columns {
		if i >= len(row) || col == "" {
			continue
		}
		v := strings.TrimSpace(row[i])
		if v == "" {
			continue
		}
		rec[col] = c.value(i+1, rowNum, v)
	}
	return rec
}

func (c *cellReader) value(col, rowNum int, raw string) any {
	serial, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return raw
	}
	name, err := excelize.CoordinatesToCellName(col, rowNum)
	if err != nil {
		return raw
	}
	styleID, err := c.f.GetCellStyle(c.sheet, name)
	if err != nil || !c.isDateStyle(styleID) {
		return raw
	}
	t, err := excelize.ExcelDateToTime(serial, c.date1904)
	if err != nil {
		return raw
	}
	return t
}

func (c *cellReader) isDateStyle(id int) bool {
	if id == 0 {
		return false
	}
	if is, ok := c.dateStyle[id]; ok {
		return is
	}
	is := false
	if style, err := c.f.GetStyle(id); err == nil && style != nil {
		if style.CustomNumFmt != nil {
			is = isDateFormat(*style.CustomNumFmt)
		} else {
			is = isBuiltinDateFormat(style.NumFmt)
		}
	}
	c.dateStyle[id] = is
	return is
}

// isBuiltinDateFormat reports whether a built-in number format id renders
// a date or time.
func isBuiltinDateFormat(id int) bool {
	return (id >= 14 && id <= 22) || (id >= 45 && id <= 47)
}

// isDateFormat looks for date or time tokens in a custom format code,
// ignoring quoted literals, escaped characters and bracketed sections.
func isDateFormat(code string) bool {
	code = strings.ToLower(code)
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
			inBracket = true
		case ch == '\\' || ch == '_' || ch == '*':
			i++
		case strings.IndexByte("ydmhs", ch) >= 0:
			return true
		}
	}
	return false
}

func cleanHeaders(headers []string) []string {
	out := make([]string, len(headers))
	for i, h := range headers {
		h = strings.TrimPrefix(h, "\ufeff")
		h = strings.ReplaceAll(h, `"`, "")
		out[i] = strings.TrimSpace(h)
	}
	return out
}

func toRecord(columns []string, row []string) Record {
	rec := make(Record, len(columns))
	for i, col := range columns {
		if i >= len(row) || col == "" {
			continue
		}
		if v := strings.TrimSpace(row[i]); v != "" {
			rec[col] = v
		}
	}
	return rec
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
