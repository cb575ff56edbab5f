package orm

import (
	"database/sql"
	"fmt"

	"github.com/mickamy/ormcoll/collection"
)

// rowCursor adapts *sql.Rows to collection.Cursor. Each row is scanned
// into driver values; []byte values are normalized to strings so that
// MySQL text columns compare equal to their PostgreSQL and SQLite forms.
type rowCursor struct {
	rows *sql.Rows
	row  collection.Row
	dest []any
	err  error
}

// NewCursor returns a forward-only cursor over rows. The caller closes rows.
func NewCursor(rows *sql.Rows) collection.Cursor {
	return &rowCursor{rows: rows}
}

func (c *rowCursor) Next() bool {
	if c.err != nil || !c.rows.Next() {
		return false
	}
	if c.dest == nil {
		cols, err := c.rows.Columns()
		if err != nil {
			c.err = err
			return false
		}
		c.dest = make([]any, len(cols))
		for i := range c.dest {
			c.dest[i] = new(any)
		}
	}
	if err := c.rows.Scan(c.dest...); err != nil {
		c.err = err
		return false
	}
	row := make(collection.Row, len(c.dest))
	for i, d := range c.dest {
		row[i] = collection.Normalize(*d.(*any)) //nolint:forcetypeassert // allocated above
	}
	c.row = row
	return true
}

func (c *rowCursor) Row() collection.Row { return c.row }

func (c *rowCursor) Err() error {
	if c.err != nil {
		return c.err
	}
	return c.rows.Err() //nolint:wrapcheck // pass through
}

// Value converts column i of row to E. Generated row mappers use it to
// fill struct fields.
func Value[E any](row collection.Row, i int) (E, error) {
	var zero E
	if i < 0 || i >= len(row) {
		return zero, fmt.Errorf("orm: column %d out of range for row of %d", i, len(row))
	}
	v, err := collection.Convert[E](row[i])
	if err != nil {
		return zero, fmt.Errorf("orm: column %d: %w", i, err)
	}
	return v, nil
}
