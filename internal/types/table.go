package types

// Table is a fully materialized tabular file: a header and typed rows.
// Tables are produced by loaders and owned by the registry entry for their
// source file; they are released as a unit when the file is unloaded.
type Table struct {
	Columns []string
	Rows    [][]Value
}

// NewTable builds a table from a header and rows. Short rows are padded
// with nulls so every row has one cell per column.
func NewTable(columns []string, rows [][]Value) *Table {
	for i, row := range rows {
		for len(row) < len(columns) {
			row = append(row, Null())
		}
		rows[i] = row[:len(columns)]
	}
	return &Table{Columns: columns, Rows: rows}
}

// NumRows returns the number of data rows.
func (t *Table) NumRows() int { return len(t.Rows) }

// ColumnIndexOf returns the position of the named column, or -1.
func (t *Table) ColumnIndexOf(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Cell returns the value at (row, column position). Null when out of range.
func (t *Table) Cell(row, col int) Value {
	if row < 0 || row >= len(t.Rows) || col < 0 || col >= len(t.Rows[row]) {
		return Null()
	}
	return t.Rows[row][col]
}

// HasColumn reports whether the table defines the named column.
func (t *Table) HasColumn(name string) bool { return t.ColumnIndexOf(name) >= 0 }
