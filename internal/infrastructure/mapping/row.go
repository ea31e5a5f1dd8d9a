package mapping

import (
	"fmt"
	"strings"
)

// Cursor is a forward-only row source. *sql.Rows satisfies it.
type Cursor interface {
	Next() bool
	Columns() ([]string, error)
	Scan(dest ...any) error
	Err() error
	Close() error
}

// Row is one materialized cursor row with case-insensitive column lookup.
// A nil value is a storage NULL.
type Row struct {
	index  map[string]int
	values []any
}

// NewRow pairs column names with their values. When two columns share a
// name ignoring case, the first one wins.
func NewRow(columns []string, values []any) Row {
	return Row{index: columnIndex(columns), values: values}
}

func columnIndex(columns []string) map[string]int {
	index := make(map[string]int, len(columns))
	for i, column := range columns {
		key := strings.ToLower(strings.TrimSpace(column))
		if _, exists := index[key]; !exists {
			index[key] = i
		}
	}
	return index
}

// Lookup returns the value of column and whether the column exists
func (r Row) Lookup(column string) (any, bool) {
	i, ok := r.index[strings.ToLower(strings.TrimSpace(column))]
	if !ok || i >= len(r.values) {
		return nil, false
	}
	return r.values[i], true
}

// rowReader scans successive cursor rows, reading the column list once
type rowReader struct {
	cursor  Cursor
	columns []string
	index   map[string]int
}

func newRowReader(cursor Cursor) (*rowReader, error) {
	columns, err := cursor.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	return &rowReader{cursor: cursor, columns: columns, index: columnIndex(columns)}, nil
}

func (rr *rowReader) read() (Row, error) {
	values := make([]any, len(rr.columns))
	dest := make([]any, len(rr.columns))
	for i := range values {
		dest[i] = &values[i]
	}
	if err := rr.cursor.Scan(dest...); err != nil {
		return Row{}, fmt.Errorf("scan row: %w", err)
	}
	return Row{index: rr.index, values: values}, nil
}

// ReadRow scans the row the cursor is positioned at
func ReadRow(cursor Cursor) (Row, error) {
	rr, err := newRowReader(cursor)
	if err != nil {
		return Row{}, err
	}
	return rr.read()
}
