package orm

import (
	"fmt"
	"strings"

	"github.com/mickamy/ormcoll/scope"
)

type whereClause struct {
	clause string
	args   []any
}

// clauses accumulates the filtering and paging parts of a SELECT. It
// implements scope.Applier so that scopes apply to any statement built on it.
type clauses struct {
	wheres   []whereClause
	orderBys []string
	limit    *int
	offset   *int
}

func (c clauses) clone() clauses {
	c.wheres = append([]whereClause(nil), c.wheres...)
	c.orderBys = append([]string(nil), c.orderBys...)
	return c
}

func (c *clauses) ApplyWhere(clause string, args []any) {
	c.wheres = append(c.wheres, whereClause{clause, args})
}

func (c *clauses) ApplyOrderBy(clause string) {
	c.orderBys = append(c.orderBys, clause)
}

func (c *clauses) ApplyLimit(n int)  { c.limit = &n }
func (c *clauses) ApplyOffset(n int) { c.offset = &n }

var _ scope.Applier = (*clauses)(nil)

func (c *clauses) appendWhere(b *strings.Builder) []any {
	if len(c.wheres) == 0 {
		return nil
	}

	var args []any
	b.WriteString(" WHERE ")
	for i, w := range c.wheres {
		if i > 0 {
			b.WriteString(" AND ")
		}
		b.WriteString(w.clause)
		args = append(args, w.args...)
	}
	return args
}

func (c *clauses) appendOrderBy(b *strings.Builder, extra ...string) {
	order := append(append([]string(nil), c.orderBys...), extra...)
	if len(order) == 0 {
		return
	}
	b.WriteString(" ORDER BY ")
	b.WriteString(strings.Join(order, ", "))
}

func (c *clauses) appendPaging(b *strings.Builder) {
	if c.limit != nil {
		fmt.Fprintf(b, " LIMIT %d", *c.limit)
	}
	if c.offset != nil {
		fmt.Fprintf(b, " OFFSET %d", *c.offset)
	}
}
