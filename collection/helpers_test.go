package collection_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/mickamy/ormcoll/collection"
)

func newRole(name string, shape collection.Shape) *collection.Role {
	r := &collection.Role{
		Name:       name,
		Owner:      "User",
		Shape:      shape,
		KeyColumns: []string{"user_id"},
	}
	if shape == collection.Array {
		r.Size = 3
	}
	return r
}

func joined(t *testing.T, role *collection.Role, cols collection.Columns, path string) *collection.JoinedInitializer {
	t.Helper()

	p, err := collection.NewProducer(role, cols.Config())
	if err != nil {
		t.Fatalf("NewProducer: %v", err)
	}
	it, err := p.Joined(path)
	if err != nil {
		t.Fatalf("Joined: %v", err)
	}
	return it
}

// runStatement processes rows in a fresh Load and ends it.
func runStatement(t *testing.T, s *collection.Session, rows []collection.Row, inits ...collection.Initializer) {
	t.Helper()

	l := s.Begin(t.Context())
	if _, err := collection.Process(l, collection.Rows(rows...), inits...); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if err := l.End(); err != nil {
		t.Fatalf("End: %v", err)
	}
}

func mustFind(t *testing.T, s *collection.Session, role *collection.Role, owner any) *collection.Collection {
	t.Helper()

	k, err := collection.NewKey(role, owner)
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}
	c, ok := s.FindExisting(k)
	if !ok {
		t.Fatalf("collection %s not cached", k)
	}
	return c
}

type recordingLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (l *recordingLogger) Log(_ context.Context, msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, fmt.Sprint(append([]any{msg}, args...)...))
}

func (l *recordingLogger) count(prefix string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, m := range l.msgs {
		if len(m) >= len(prefix) && m[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}
