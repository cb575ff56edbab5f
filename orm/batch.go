package orm

import (
	"context"
	"fmt"
	"strings"

	"github.com/mickamy/ormcoll/collection"
	"github.com/mickamy/ormcoll/scope"
)

// CollectionTable describes the table that stores one collection role:
// one row per element, keyed by the owner.
type CollectionTable struct {
	Table   string
	Key     string // owner key column
	Element string // element column, or the value column of a map
	Index   string // list/array position or map key; empty for bags and sets
	ID      string // surrogate id of a bag row; optional
	OrderBy string // ORDER BY clause for unindexed collections; optional
}

// columns returns the selected columns in result order.
func (t CollectionTable) columns(role *collection.Role) []string {
	cols := []string{t.Key}
	if role.Shape.Indexed() {
		cols = append(cols, t.Index)
	}
	if t.idColumn(role) != "" {
		cols = append(cols, t.ID)
	}
	return append(cols, t.Element)
}

func (t CollectionTable) idColumn(role *collection.Role) string {
	if role.Shape == collection.Bag && role.IDColumn != "" {
		return t.ID
	}
	return ""
}

// layout returns the result positions of columns starting at offset.
func (t CollectionTable) layout(role *collection.Role, offset int) collection.Columns {
	pos := offset
	next := func() int { pos++; return pos - 1 }
	c := collection.NewColumns(next(), collection.NoColumn)
	if role.Shape.Indexed() {
		c = c.WithIndex(next())
	}
	if t.idColumn(role) != "" {
		c = c.WithID(next())
	}
	c.Element = next()
	return c
}

// Validate reports a table description that cannot serve role.
func (t CollectionTable) Validate(role *collection.Role) error {
	switch {
	case t.Table == "":
		return fmt.Errorf("orm: %s: no collection table", role.Name)
	case t.Key == "":
		return fmt.Errorf("orm: %s: no key column", role.Name)
	case t.Element == "":
		return fmt.Errorf("orm: %s: no element column", role.Name)
	case role.Shape.Indexed() && t.Index == "":
		return fmt.Errorf("orm: %s: %s without index column", role.Name, role.Shape)
	case role.Shape == collection.Bag && role.IDColumn != "" && t.ID == "":
		return fmt.Errorf("orm: %s: no id column", role.Name)
	}
	return nil
}

// Batch is the outcome of LoadBatch.
type Batch struct {
	session *collection.Session
	role    *collection.Role
	owners  []any
	rows    int
}

// Get returns the collection of owner. It is initialized, and empty when
// the owner had no rows, unless a concurrent load still holds it.
func (b *Batch) Get(owner any) (*collection.Collection, bool) {
	k, err := collection.NewKey(b.role, owner)
	if err != nil {
		return nil, false
	}
	return b.session.FindExisting(k)
}

// Owners returns the owner keys the batch was issued for.
func (b *Batch) Owners() []any { return b.owners }

// Rows returns the number of collection rows read.
func (b *Batch) Rows() int { return b.rows }

// LoadBatch loads the role collections of owners with one statement
// against t. Every owner is claimed up front, so owners without rows end
// up with an initialized empty collection. Collections already initialized
// in s are left as they are.
func LoadBatch(
	ctx context.Context,
	db Querier,
	s *collection.Session,
	role *collection.Role,
	t CollectionTable,
	owners []any,
	scopes ...scope.Scope,
) (*Batch, error) {
	b := &Batch{session: s, role: role, owners: owners}
	if len(owners) == 0 {
		return b, nil
	}
	if err := t.Validate(role); err != nil {
		return nil, err
	}
	producer, err := collection.NewProducer(role, t.layout(role, 0).Config())
	if err != nil {
		return nil, err //nolint:wrapcheck // collection error
	}
	it, err := producer.Joined(role.Name)
	if err != nil {
		return nil, err //nolint:wrapcheck // collection error
	}

	query, args := buildBatch(db.dialect(), role, t, owners, scopes)

	l := s.Begin(ctx)
	if err := it.Expect(l, owners...); err != nil {
		l.Abandon()
		return nil, fmt.Errorf("orm: %w", err)
	}
	n, err := Run(ctx, db, l, query, args, it)
	if err != nil {
		l.Abandon()
		return nil, err
	}
	b.rows = n
	if err := l.End(); err != nil {
		return b, fmt.Errorf("orm: %w", err)
	}
	return b, nil
}

func buildBatch(
	d Dialect,
	role *collection.Role,
	t CollectionTable,
	owners []any,
	scopes []scope.Scope,
) (string, []any) {
	cols := t.columns(role)
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = d.QuoteIdent(c)
	}

	var c clauses
	scope.In(d.QuoteIdent(t.Key), owners).Apply(&c)
	scope.Scopes(scopes).Apply(&c)

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(quoted, ", "))
	b.WriteString(" FROM ")
	b.WriteString(d.QuoteIdent(t.Table))
	args := c.appendWhere(&b)
	if !role.Shape.Indexed() && t.OrderBy != "" {
		c.appendOrderBy(&b, t.OrderBy)
	} else {
		c.appendOrderBy(&b)
	}
	c.appendPaging(&b)

	return rewrite(d, b.String()), args
}

// Pending loads every collection of role that s holds scheduled but not
// yet loaded: wrappers left by select-strategy fetches and, when
// includeLazy is set, lazy placeholders.
func Pending(
	ctx context.Context,
	db Querier,
	s *collection.Session,
	role *collection.Role,
	t CollectionTable,
	includeLazy bool,
) (*Batch, error) {
	return LoadBatch(ctx, db, s, role, t, s.Pending(role, includeLazy))
}
