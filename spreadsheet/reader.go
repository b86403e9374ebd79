// Package spreadsheet reads listing sheets exported as CSV or XLSX into
// header-keyed rows.
package spreadsheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
)

// ErrUnsupportedFormat is returned for extensions other than csv/xlsx/xlsm.
var ErrUnsupportedFormat = errors.New("unsupported spreadsheet format")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Row is one data row. Number is the 1-based line in the sheet, header
// included, so it matches what a person sees in a spreadsheet program.
type Row struct {
	Number int
	Values map[string]string
}

// Get returns the trimmed cell under header col.
func (r Row) Get(col string) string {
	return strings.TrimSpace(r.Values[col])
}

// Sheet is a parsed spreadsheet.
type Sheet struct {
	Header []string
	Rows   []Row
}

// HasColumn reports whether the header contains col.
func (s *Sheet) HasColumn(col string) bool {
	for _, h := range s.Header {
		if h == col {
			return true
		}
	}
	return false
}

// Read parses r according to the extension of filename.
func Read(filename string, r io.Reader) (*Sheet, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return readCSV(r)
	case ".xlsx", ".xlsm":
		return readXLSX(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(filename))
	}
}

// readCSV accepts UTF-8 (with or without BOM) and cp949, which is what
// Korean spreadsheet programs write by default.
func readCSV(r io.Reader) (*Sheet, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	var src io.Reader = bytes.NewReader(data)
	if !utf8.Valid(data) {
		src = transform.NewReader(src, korean.EUCKR.NewDecoder())
	}

	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return fromRecords(records), nil
}

func readXLSX(r io.Reader) (*Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return &Sheet{}, nil
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return fromRecords(records), nil
}

func fromRecords(records [][]string) *Sheet {
	sheet := &Sheet{}
	if len(records) == 0 {
		return sheet
	}

	sheet.Header = make([]string, len(records[0]))
	for i, h := range records[0] {
		sheet.Header[i] = strings.TrimSpace(h)
	}

	for i, rec := range records[1:] {
		if blank(rec) {
			continue
		}
		values := make(map[string]string, len(sheet.Header))
		for j, h := range sheet.Header {
			if h == "" || j >= len(rec) {
				continue
			}
			values[h] = rec[j]
		}
		sheet.Rows = append(sheet.Rows, Row{Number: i + 2, Values: values})
	}
	return sheet
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
