package collection

import "fmt"

// Process reads cur to the end, driving every initializer through each row.
// It does not end l; the caller calls End once all cursors of the
// statement are drained, or Abandon when it gives up.
func Process(l *Load, cur Cursor, inits ...Initializer) (int, error) {
	if l.closed {
		return 0, ErrLoadClosed
	}
	n := 0
	for cur.Next() {
		if err := processRow(l, cur.Row(), inits); err != nil {
			l.session.metrics.addRows(n)
			return n, fmt.Errorf("row %d: %w", n, err)
		}
		n++
	}
	l.session.metrics.addRows(n)
	if err := cur.Err(); err != nil {
		return n, err //nolint:wrapcheck // cursor error
	}
	return n, nil
}

func processRow(l *Load, row Row, inits []Initializer) error {
	defer func() {
		for _, it := range inits {
			it.FinishUpRow()
		}
	}()
	for _, it := range inits {
		if err := it.ResolveKey(l, row); err != nil {
			return err
		}
	}
	for _, it := range inits {
		if err := it.ResolveInstance(l, row); err != nil {
			return err
		}
	}
	for _, it := range inits {
		if err := it.InitializeInstance(l, row); err != nil {
			return err
		}
	}
	return nil
}
