package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrEmptyCSV is returned when the upload has no data rows.
	ErrEmptyCSV = errors.New("CSV file is empty")
	// ErrMalformedCSV is returned when the upload cannot be read as CSV at all.
	ErrMalformedCSV = errors.New("file is not a valid CSV")
)

const utf8BOM = "\ufeff"

// Table is a parsed CSV: one header row and the data rows below it.
type Table struct {
	Headers []string
	Records [][]string
}

// ReadTable parses CSV text. Ragged rows are accepted; blank lines are skipped.
func ReadTable(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCSV, err)
	}
	if len(records) < 2 {
		return nil, ErrEmptyCSV
	}

	headers := records[0]
	headers[0] = strings.TrimPrefix(headers[0], utf8BOM)

	return &Table{Headers: headers, Records: records[1:]}, nil
}

// Rows pairs each record with the headers. Cells missing from a short record
// are empty; extra cells are ignored. If two headers collide, the first wins.
func (t *Table) Rows(headers []string) []Row {
	rows := make([]Row, 0, len(t.Records))
	for _, rec := range t.Records {
		row := make(Row, len(headers))
		for i, h := range headers {
			if _, dup := row[h]; dup {
				continue
			}
			if i < len(rec) {
				row[h] = rec[i]
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows
}
