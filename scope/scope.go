// Package scope holds reusable query fragments. Scopes narrow both owner
// queries and the batch statements that load collections by owner key.
package scope

import "strings"

// Applier receives scope fragments. orm.Query and the batch collection
// statement implement it; keeping it here lets orm import scope without a
// cycle.
type Applier interface {
	ApplyWhere(clause string, args []any)
	ApplyOrderBy(clause string)
	ApplyLimit(n int)
	ApplyOffset(n int)
}

type kind int

const (
	kindWhere kind = iota
	kindOrderBy
	kindLimit
	kindOffset
)

// Scope is one immutable query fragment.
type Scope struct {
	kind   kind
	clause string
	args   []any
	n      int
}

// Apply hands the fragment to a.
func (s Scope) Apply(a Applier) {
	switch s.kind {
	case kindWhere:
		a.ApplyWhere(s.clause, s.args)
	case kindOrderBy:
		a.ApplyOrderBy(s.clause)
	case kindLimit:
		a.ApplyLimit(s.n)
	case kindOffset:
		a.ApplyOffset(s.n)
	}
}

// Where adds a WHERE fragment with ? placeholders.
//
//	scope.Where("archived = ?", false)
func Where(clause string, args ...any) Scope {
	return Scope{kind: kindWhere, clause: clause, args: args}
}

// OrderBy adds an ORDER BY fragment.
func OrderBy(clause string) Scope {
	return Scope{kind: kindOrderBy, clause: clause}
}

// Limit caps the number of rows. A query that join-fetches a collection
// applies it to owners, not to joined rows.
func Limit(n int) Scope {
	return Scope{kind: kindLimit, n: n}
}

// Offset skips rows.
func Offset(n int) Scope {
	return Scope{kind: kindOffset, n: n}
}

// In expands values into an IN list. An empty list matches nothing.
//
//	scope.In("user_id", []int{1, 2, 3}) // user_id IN (?, ?, ?)
func In[T any](column string, values []T) Scope {
	if len(values) == 0 {
		return Where("1 = 0")
	}
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return Where(column+" IN ("+placeholders(len(values))+")", args...)
}

// Scopes is an ordered list of fragments.
type Scopes []Scope

// Append returns a new Scopes with scopes added; the receiver is unchanged.
func (ss Scopes) Append(scopes ...Scope) Scopes {
	return append(append(Scopes(nil), ss...), scopes...)
}

// Apply applies every fragment in order.
func (ss Scopes) Apply(a Applier) {
	for _, s := range ss {
		s.Apply(a)
	}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
