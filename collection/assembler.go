package collection

import "fmt"

// Row is the current row of a result cursor, already decoded to scalars.
// A nil value is SQL NULL.
type Row []any

// Assembler produces one logical column value for the current row.
// It is called at most once per row per column.
type Assembler interface {
	Assemble(row Row) (any, error)
}

// AssemblerFunc adapts a function to Assembler.
type AssemblerFunc func(row Row) (any, error)

func (f AssemblerFunc) Assemble(row Row) (any, error) { return f(row) }

// Column returns an Assembler reading the value at position i.
func Column(i int) Assembler {
	return column(i)
}

type column int

func (c column) Assemble(row Row) (any, error) {
	if int(c) < 0 || int(c) >= len(row) {
		return nil, fmt.Errorf("collection: column %d out of range for row of %d", int(c), len(row))
	}
	return Normalize(row[c]), nil
}

// Const returns an Assembler that always yields v, e.g. the single owner
// key of a statement that loads one collection.
func Const(v any) Assembler {
	return AssemblerFunc(func(Row) (any, error) { return v, nil })
}

// Cursor is a forward-only, non-restartable sequence of rows.
type Cursor interface {
	Next() bool
	Row() Row
	Err() error
}

// Rows returns an in-memory Cursor over rows.
func Rows(rows ...Row) Cursor {
	return &sliceCursor{rows: rows, pos: -1}
}

type sliceCursor struct {
	rows []Row
	pos  int
}

func (c *sliceCursor) Next() bool {
	if c.pos+1 >= len(c.rows) {
		c.pos = len(c.rows)
		return false
	}
	c.pos++
	return true
}

func (c *sliceCursor) Row() Row {
	if c.pos < 0 || c.pos >= len(c.rows) {
		return nil
	}
	return c.rows[c.pos]
}

func (c *sliceCursor) Err() error { return nil }
