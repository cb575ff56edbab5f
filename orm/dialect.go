package orm

import (
	"fmt"
	"strings"
)

// Dialect abstracts SQL differences between database engines.
type Dialect interface {
	// Name identifies the dialect in logs and traces.
	Name() string

	// Placeholder returns the bind parameter placeholder for the given
	// 1-based index. MySQL and SQLite return "?" regardless of index;
	// PostgreSQL returns "$1", "$2", etc.
	Placeholder(index int) string

	// QuoteIdent quotes an identifier (table name, column name) to safely
	// handle SQL reserved words.
	QuoteIdent(name string) string
}

// MySQL is the Dialect for MySQL / MariaDB.
var MySQL Dialect = mysqlDialect{}

// PostgreSQL is the Dialect for PostgreSQL.
var PostgreSQL Dialect = postgresDialect{}

// SQLite is the Dialect for SQLite.
var SQLite Dialect = sqliteDialect{}

type mysqlDialect struct{}

func (mysqlDialect) Name() string                  { return "mysql" }
func (mysqlDialect) Placeholder(_ int) string      { return "?" }
func (mysqlDialect) QuoteIdent(name string) string { return "`" + name + "`" }

type postgresDialect struct{}

func (postgresDialect) Name() string                  { return "postgresql" }
func (postgresDialect) Placeholder(index int) string  { return fmt.Sprintf("$%d", index) }
func (postgresDialect) QuoteIdent(name string) string { return `"` + name + `"` }

type sqliteDialect struct{}

func (sqliteDialect) Name() string                  { return "sqlite" }
func (sqliteDialect) Placeholder(_ int) string      { return "?" }
func (sqliteDialect) QuoteIdent(name string) string { return `"` + name + `"` }

// rewrite converts ? placeholders to the dialect's placeholders.
// It is a no-op for dialects that use ? natively.
func rewrite(d Dialect, query string) string {
	if d.Placeholder(1) == "?" {
		return query
	}
	var b strings.Builder
	b.Grow(len(query))
	idx := 1
	for i := range len(query) {
		if query[i] == '?' {
			b.WriteString(d.Placeholder(idx))
			idx++
		} else {
			b.WriteByte(query[i])
		}
	}
	return b.String()
}

// qualify quotes a table-qualified column reference.
func qualify(d Dialect, table, column string) string {
	return d.QuoteIdent(table) + "." + d.QuoteIdent(column)
}
