package orm

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mickamy/ormcoll/collection"
)

// Run executes query and feeds every row to inits within l. It does not
// end l: a statement may span several Run calls before End.
func Run(
	ctx context.Context,
	db Querier,
	l *collection.Load,
	query string,
	args []any,
	inits ...collection.Initializer,
) (int, error) {
	ctx, span := db.tracer().Start(ctx, "orm.run",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", db.dialect().Name()),
			attribute.String("db.statement", query),
			attribute.String("ormcoll.load", l.ID().String()),
			attribute.Int("ormcoll.initializers", len(inits)),
		),
	)
	defer span.End()

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("orm: query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	n, err := collection.Process(l, NewCursor(rows), inits...)
	span.SetAttributes(attribute.Int("ormcoll.rows", n))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return n, fmt.Errorf("orm: %w", err)
	}
	return n, nil
}

// Fetch runs one complete statement in a fresh Load of s: the rows are
// processed, then the Load is ended. On failure the Load is abandoned and
// its claims released.
func Fetch(
	ctx context.Context,
	db Querier,
	s *collection.Session,
	query string,
	args []any,
	inits ...collection.Initializer,
) (*collection.Load, error) {
	l := s.Begin(ctx)
	if _, err := Run(ctx, db, l, query, args, inits...); err != nil {
		l.Abandon()
		return nil, err
	}
	if err := l.End(); err != nil {
		return l, fmt.Errorf("orm: %w", err)
	}
	return l, nil
}
