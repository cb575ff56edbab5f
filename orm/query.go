package orm

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/mickamy/ormcoll/collection"
	"github.com/mickamy/ormcoll/scope"
)

// RowMapper builds a T from the owner columns of one result row.
// Generated per-type by ormcoll.
type RowMapper[T any] func(row collection.Row) (T, error)

// KeyFunc returns the key that owns T's collections, usually its
// primary key.
type KeyFunc[T any] func(t T) any

// AssignFunc copies loaded collections from s into results.
// Generated per-field by ormcoll.
type AssignFunc[T any] func(s *collection.Session, results []T) error

// CollectionFetch is the metadata of one collection field of T.
type CollectionFetch[T any] struct {
	Role   *collection.Role
	Table  CollectionTable
	Assign AssignFunc[T]
}

type fetchRequest struct {
	name     string
	strategy collection.FetchStrategy
}

// Query represents a pending query against a single owner table.
// All builder methods return a new Query; the receiver is never modified.
// RegisterCollection is the exception and is meant for generated factories.
type Query[T any] struct {
	db      Querier
	table   string
	columns []string
	pk      string
	mapRow  RowMapper[T]

	entity  string
	key     KeyFunc[T]
	session *collection.Session

	clauses
	fetches  map[string]CollectionFetch[T]
	requests []fetchRequest
}

// NewQuery is called by generated factory functions.
func NewQuery[T any](
	db Querier,
	table string,
	columns []string,
	pk string,
	mapRow RowMapper[T],
) *Query[T] {
	return &Query[T]{
		db:      db,
		table:   table,
		columns: columns,
		pk:      pk,
		mapRow:  mapRow,
	}
}

// Owner names the entity T is hydrated as and how its collection key is
// read. Collections can only be fetched for queries with an owner identity.
func (q *Query[T]) Owner(entity string, key KeyFunc[T]) *Query[T] {
	q2 := q.clone()
	q2.entity = entity
	q2.key = key
	return q2
}

// RegisterCollection registers a named collection field for use with
// JoinFetch, Preload and Lazy. It modifies q and every Query derived from
// it, so call it only while building the factory query.
func (q *Query[T]) RegisterCollection(name string, f CollectionFetch[T]) {
	if q.fetches == nil {
		q.fetches = make(map[string]CollectionFetch[T])
	}
	q.fetches[name] = f
}

// clone returns a shallow copy with slices copied to avoid aliasing.
func (q *Query[T]) clone() *Query[T] {
	q2 := *q
	q2.clauses = q.clauses.clone()
	q2.requests = append([]fetchRequest(nil), q.requests...)
	return &q2
}

// --- Builder methods ---

// WithSession makes the query load collections into s instead of a fresh
// session per execution, so collections already initialized there are
// reused and not read again.
func (q *Query[T]) WithSession(s *collection.Session) *Query[T] {
	q2 := q.clone()
	q2.session = s
	return q2
}

func (q *Query[T]) Where(clause string, args ...any) *Query[T] {
	q2 := q.clone()
	q2.ApplyWhere(clause, args)
	return q2
}

func (q *Query[T]) OrderBy(clause string) *Query[T] {
	q2 := q.clone()
	q2.ApplyOrderBy(clause)
	return q2
}

func (q *Query[T]) Limit(n int) *Query[T] {
	q2 := q.clone()
	q2.ApplyLimit(n)
	return q2
}

func (q *Query[T]) Offset(n int) *Query[T] {
	q2 := q.clone()
	q2.ApplyOffset(n)
	return q2
}

// JoinFetch loads the named collection from the owner statement itself
// through a LEFT JOIN. Limit and Offset of a join-fetching query page the
// owners in a derived table, so they count owners, not joined rows.
// A bag can only be join-fetched on its own.
func (q *Query[T]) JoinFetch(name string) *Query[T] {
	return q.fetch(name, collection.FetchJoin)
}

// Preload loads the named collection with one follow-up statement for all
// owners of the result.
func (q *Query[T]) Preload(name string) *Query[T] {
	return q.fetch(name, collection.FetchSelect)
}

// Lazy leaves an uninitialized placeholder of the named collection in the
// session for each owner. Pending loads the placeholders on demand.
func (q *Query[T]) Lazy(name string) *Query[T] {
	return q.fetch(name, collection.FetchLazy)
}

func (q *Query[T]) fetch(name string, strategy collection.FetchStrategy) *Query[T] {
	q2 := q.clone()
	q2.requests = append(q2.requests, fetchRequest{name: name, strategy: strategy})
	return q2
}

// Scopes applies the given scope.Scope values to the query.
func (q *Query[T]) Scopes(scopes ...scope.Scope) *Query[T] {
	q2 := q.clone()
	for _, s := range scopes {
		s.Apply(q2)
	}
	return q2
}

var _ scope.Applier = (*Query[any])(nil)

// --- Terminal methods ---

// All executes a SELECT and returns all matching rows with the requested
// collections loaded.
func (q *Query[T]) All(ctx context.Context) ([]T, error) {
	results, _, err := q.load(ctx)
	return results, err
}

// Session executes the query like All and also returns the session that
// holds its collections, for inspection or for Pending.
func (q *Query[T]) Session(ctx context.Context) ([]T, *collection.Session, error) {
	return q.load(ctx)
}

// First executes the query with LIMIT 1 and returns the first row.
// Returns ErrNotFound if no rows match.
func (q *Query[T]) First(ctx context.Context) (T, error) {
	var zero T
	items, err := q.Limit(1).All(ctx)
	if err != nil {
		return zero, err
	}
	if len(items) == 0 {
		return zero, ErrNotFound
	}
	return items[0], nil
}

// Count returns the number of owners matching the current query conditions.
func (q *Query[T]) Count(ctx context.Context) (int64, error) {
	query, args := q.buildCount()

	var count int64
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, err //nolint:wrapcheck // pass through
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		return 0, errors.New("orm: COUNT returned no rows")
	}
	if err := rows.Scan(&count); err != nil {
		return 0, err //nolint:wrapcheck // pass through
	}
	return count, rows.Err() //nolint:wrapcheck // pass through
}

// Exists returns true if at least one row matches the current query conditions.
func (q *Query[T]) Exists(ctx context.Context) (bool, error) {
	count, err := q.Limit(1).Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// plan is one execution of a Query: the owner collector plus one
// initializer per requested collection.
type plan[T any] struct {
	owners  *ownerRows[T]
	inits   []collection.Initializer
	joined  []CollectionFetch[T]
	selects []CollectionFetch[T]
	assigns []CollectionFetch[T]
	joins   []string
	orders  []string
	cols    []string
}

func (q *Query[T]) load(ctx context.Context) ([]T, *collection.Session, error) {
	p, err := q.plan()
	if err != nil {
		return nil, nil, err
	}
	s := q.session
	if s == nil {
		s = newSession(q.db, nil)
	}

	query, args := q.buildSelect(p)
	l := s.Begin(ctx)
	if _, err := Run(ctx, q.db, l, query, args, p.inits...); err != nil {
		l.Abandon()
		return nil, s, err
	}
	results := p.owners.results
	q.publish(s, results)
	if err := l.End(); err != nil {
		return nil, s, fmt.Errorf("orm: %w", err)
	}

	for _, f := range p.selects {
		if _, err := LoadBatch(ctx, q.db, s, f.Role, f.Table, l.Deferred(f.Role)); err != nil {
			return nil, s, err
		}
	}
	for _, f := range p.assigns {
		if f.Assign == nil {
			continue
		}
		if err := f.Assign(s, results); err != nil {
			return nil, s, err
		}
	}
	return results, s, nil
}

func (q *Query[T]) plan() (*plan[T], error) {
	p := &plan[T]{
		owners: &ownerRows[T]{width: len(q.columns), mapRow: q.mapRow, key: q.key},
		cols:   make([]string, len(q.columns)),
	}
	p.inits = append(p.inits, p.owners)
	for i, c := range q.columns {
		p.cols[i] = qualify(q.db.dialect(), q.table, c)
	}
	if len(q.requests) == 0 {
		return p, nil
	}
	if q.key == nil {
		return nil, ErrNoOwnerIdentity
	}
	pkPos := -1
	for i, c := range q.columns {
		if c == q.pk {
			pkPos = i
		}
	}
	if pkPos < 0 {
		return nil, fmt.Errorf("orm: %s: primary key %q not selected", q.table, q.pk)
	}

	bags := 0
	for _, r := range q.requests {
		f, ok := q.fetches[r.name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCollection, r.name)
		}
		path := q.entity + "." + r.name
		var it collection.Initializer
		switch r.strategy {
		case collection.FetchJoin:
			if f.Role.Shape == collection.Bag {
				bags++
			}
			joined, err := q.joinedInitializer(p, f, pkPos, path)
			if err != nil {
				return nil, err
			}
			it = joined
			p.joined = append(p.joined, f)
		default:
			producer, err := collection.NewProducer(f.Role, collection.NewColumns(pkPos, collection.NoColumn).Config())
			if err != nil {
				return nil, err //nolint:wrapcheck // collection error
			}
			deferred, err := producer.Deferred(path, r.strategy)
			if err != nil {
				return nil, err //nolint:wrapcheck // collection error
			}
			it = deferred
			if r.strategy == collection.FetchSelect {
				p.selects = append(p.selects, f)
			}
		}
		p.inits = append(p.inits, it)
		if r.strategy != collection.FetchLazy {
			p.assigns = append(p.assigns, f)
		}
	}
	if bags > 0 && len(p.joined) > 1 {
		names := make([]string, len(p.joined))
		for i, f := range p.joined {
			names[i] = f.Role.Name
		}
		return nil, fmt.Errorf("%w: %s", ErrBagJoinFetch, strings.Join(names, ", "))
	}
	return p, nil
}

// joinedInitializer appends the LEFT JOIN of f to p and returns the
// initializer reading its columns. A row without a joined element carries
// a NULL collection key and marks an empty collection.
func (q *Query[T]) joinedInitializer(p *plan[T], f CollectionFetch[T], pkPos int, path string) (collection.Initializer, error) {
	if err := f.Table.Validate(f.Role); err != nil {
		return nil, err
	}
	d := q.db.dialect()
	alias := fmt.Sprintf("c%d", len(p.joins))

	layout := f.Table.layout(f.Role, len(p.cols))
	for _, c := range f.Table.columns(f.Role) {
		p.cols = append(p.cols, qualify(d, alias, c))
	}
	p.joins = append(p.joins, fmt.Sprintf(
		"LEFT JOIN %s %s ON %s = %s",
		d.QuoteIdent(f.Table.Table), d.QuoteIdent(alias),
		qualify(d, alias, f.Table.Key),
		qualify(d, q.table, q.pk),
	))
	if !f.Role.Shape.Indexed() && f.Table.OrderBy != "" {
		p.orders = append(p.orders, qualifyOrder(d, alias, f.Table.OrderBy))
	}

	cfg := layout.Config()
	cfg.CollectionKey = cfg.OwnerKey
	cfg.OwnerKey = collection.Column(pkPos)
	producer, err := collection.NewProducer(f.Role, cfg)
	if err != nil {
		return nil, err //nolint:wrapcheck // collection error
	}
	return producer.Joined(path) //nolint:wrapcheck // collection error
}

// publish makes the hydrated owners known to the session, which wires them
// into the collections loaded for them.
func (q *Query[T]) publish(s *collection.Session, results []T) {
	if q.key == nil {
		return
	}
	pub, ok := s.Owners().(collection.OwnerPublisher)
	if !ok {
		return
	}
	for i := range results {
		pub.Resolve(q.entity, q.key(results[i]), &results[i])
	}
}

// --- SQL building ---

// buildSelect renders the owner statement of p. With joins, the owner
// table is read through a derived table when the query pages, so that
// LIMIT and OFFSET count owners.
func (q *Query[T]) buildSelect(p *plan[T]) (string, []any) {
	d := q.db.dialect()
	pk := qualify(d, q.table, q.pk)
	paged := len(p.joins) > 0 && (q.limit != nil || q.offset != nil)

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(p.cols, ", "))
	b.WriteString(" FROM ")

	var args []any
	if paged {
		b.WriteString("(SELECT * FROM ")
		b.WriteString(d.QuoteIdent(q.table))
		args = q.appendWhere(&b)
		q.appendOrderBy(&b, pk)
		q.appendPaging(&b)
		b.WriteString(") ")
	}
	b.WriteString(d.QuoteIdent(q.table))

	for _, j := range p.joins {
		b.WriteByte(' ')
		b.WriteString(j)
	}

	switch {
	case paged:
		q.appendOrderBy(&b, append([]string{pk}, p.orders...)...)
	case len(p.joins) > 0:
		args = q.appendWhere(&b)
		q.appendOrderBy(&b, append([]string{pk}, p.orders...)...)
	default:
		args = q.appendWhere(&b)
		q.appendOrderBy(&b)
		q.appendPaging(&b)
	}

	return rewrite(d, b.String()), args
}

// qualifyOrder prefixes each unqualified column of an ORDER BY clause
// with alias: "id DESC, host" becomes `"c0"."id" DESC, "c0"."host"`.
func qualifyOrder(d Dialect, alias, clause string) string {
	terms := strings.Split(clause, ",")
	for i, term := range terms {
		fields := strings.Fields(term)
		if len(fields) > 0 && !strings.Contains(fields[0], ".") {
			fields[0] = qualify(d, alias, fields[0])
		}
		terms[i] = strings.Join(fields, " ")
	}
	return strings.Join(terms, ", ")
}

func (q *Query[T]) buildCount() (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT COUNT(*) FROM ")
	b.WriteString(q.db.dialect().QuoteIdent(q.table))

	args := q.appendWhere(&b)
	q.appendPaging(&b)

	return rewrite(q.db.dialect(), b.String()), args
}

// ownerRows maps the owner columns of each row to a T, once per distinct
// primary key, so that joined collection rows do not repeat owners.
type ownerRows[T any] struct {
	width   int
	mapRow  RowMapper[T]
	key     KeyFunc[T]
	seen    map[any]struct{}
	results []T
}

func (o *ownerRows[T]) ResolveKey(*collection.Load, collection.Row) error      { return nil }
func (o *ownerRows[T]) ResolveInstance(*collection.Load, collection.Row) error { return nil }
func (o *ownerRows[T]) FinishUpRow()                                          {}

func (o *ownerRows[T]) InitializeInstance(_ *collection.Load, row collection.Row) error {
	if len(row) < o.width {
		return fmt.Errorf("orm: row of %d columns, want at least %d", len(row), o.width)
	}
	v, err := o.mapRow(row[:o.width])
	if err != nil {
		return err
	}
	if o.key != nil {
		k := collection.Normalize(o.key(v))
		if k != nil && !reflect.TypeOf(k).Comparable() {
			return fmt.Errorf("%w: owner key %T", collection.ErrUncomparable, k)
		}
		if o.seen == nil {
			o.seen = make(map[any]struct{})
		}
		if _, dup := o.seen[k]; dup {
			return nil
		}
		o.seen[k] = struct{}{}
	}
	o.results = append(o.results, v)
	return nil
}

var _ collection.Initializer = (*ownerRows[any])(nil)
