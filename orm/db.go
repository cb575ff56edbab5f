package orm

import (
	"context"
	"database/sql"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/mickamy/ormcoll/collection"
)

const instrumentationName = "github.com/mickamy/ormcoll/orm"

// Querier is the common interface for DB and Tx.
// Generated factory functions accept this so that queries work with both.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	dialect() Dialect
	tracer() trace.Tracer
	logger() Logger
}

// Logger is the interface for query logging. It has the shape of
// collection.Logger, so a single value serves both layers.
type Logger interface {
	Log(ctx context.Context, msg string, args ...any)
}

// DB wraps *sql.DB with a Dialect and satisfies Querier.
type DB struct {
	raw *sql.DB
	d   Dialect
	log Logger
	tr  trace.Tracer
}

// New wraps a *sql.DB with the given Dialect.
func New(db *sql.DB, d Dialect) *DB {
	return &DB{raw: db, d: d, tr: otel.Tracer(instrumentationName)}
}

// Open opens a database with a registered driver and picks the Dialect
// from the driver name: "mysql", "pgx" or "postgres", "sqlite".
// The caller imports the driver package.
func Open(driver, dsn string) (*DB, error) {
	var d Dialect
	switch driver {
	case "mysql":
		d = MySQL
	case "pgx", "postgres":
		d = PostgreSQL
	case "sqlite", "sqlite3":
		d = SQLite
	default:
		return nil, fmt.Errorf("orm: no dialect for driver %q", driver)
	}
	raw, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("orm: open %s: %w", driver, err)
	}
	return New(raw, d), nil
}

// Debug returns a new *DB that logs every query and collection event
// using the given Logger. The original DB is not modified.
func (db *DB) Debug(l Logger) *DB {
	db2 := *db
	db2.log = l
	return &db2
}

// Trace returns a new *DB that records spans with tracers from tp.
func (db *DB) Trace(tp trace.TracerProvider) *DB {
	db2 := *db
	db2.tr = tp.Tracer(instrumentationName)
	return &db2
}

// Session starts a collection cache bound to this DB's logger.
func (db *DB) Session(opts ...collection.Option) *collection.Session {
	return newSession(db, opts)
}

func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if db.log != nil {
		db.log.Log(ctx, query, args...)
	}
	return db.raw.QueryContext(ctx, query, args...) //nolint:wrapcheck // thin wrapper
}

func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if db.log != nil {
		db.log.Log(ctx, query, args...)
	}
	return db.raw.ExecContext(ctx, query, args...) //nolint:wrapcheck // thin wrapper
}

// Begin starts a transaction. Collection loads issued through the Tx
// see one snapshot of owners and collection tables.
func (db *DB) Begin(ctx context.Context) (*Tx, error) {
	tx, err := db.raw.BeginTx(ctx, nil)
	if err != nil {
		return nil, err //nolint:wrapcheck // thin wrapper
	}
	return &Tx{raw: tx, d: db.d, log: db.log, tr: db.tr}, nil
}

// Transaction executes fn within a transaction.
// If fn returns nil the transaction is committed.
// If fn returns an error or panics the transaction is rolled back.
func (db *DB) Transaction(ctx context.Context, fn func(tx *Tx) error) (err error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Close closes the underlying *sql.DB.
func (db *DB) Close() error { return db.raw.Close() } //nolint:wrapcheck // thin wrapper

func (db *DB) dialect() Dialect      { return db.d }
func (db *DB) tracer() trace.Tracer { return db.tr }
func (db *DB) logger() Logger        { return db.log }

// Tx wraps *sql.Tx with a Dialect and satisfies Querier.
type Tx struct {
	raw *sql.Tx
	d   Dialect
	log Logger
	tr  trace.Tracer
}

func (tx *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if tx.log != nil {
		tx.log.Log(ctx, query, args...)
	}
	return tx.raw.QueryContext(ctx, query, args...) //nolint:wrapcheck // thin wrapper
}

func (tx *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if tx.log != nil {
		tx.log.Log(ctx, query, args...)
	}
	return tx.raw.ExecContext(ctx, query, args...) //nolint:wrapcheck // thin wrapper
}

// Session starts a collection cache bound to this Tx's logger.
func (tx *Tx) Session(opts ...collection.Option) *collection.Session {
	return newSession(tx, opts)
}

// Commit commits the transaction.
func (tx *Tx) Commit() error { return tx.raw.Commit() } //nolint:wrapcheck // thin wrapper

// Rollback rolls back the transaction.
func (tx *Tx) Rollback() error { return tx.raw.Rollback() } //nolint:wrapcheck // thin wrapper

func (tx *Tx) dialect() Dialect      { return tx.d }
func (tx *Tx) tracer() trace.Tracer { return tx.tr }
func (tx *Tx) logger() Logger        { return tx.log }

func newSession(q Querier, opts []collection.Option) *collection.Session {
	if l := q.logger(); l != nil {
		opts = append([]collection.Option{collection.WithLogger(l)}, opts...)
	}
	return collection.NewSession(opts...)
}
