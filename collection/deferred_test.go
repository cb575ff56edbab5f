package collection_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mickamy/ormcoll/collection"
)

func deferred(t *testing.T, role *collection.Role, strategy collection.FetchStrategy) *collection.DeferredInitializer {
	t.Helper()

	p, err := collection.NewProducer(role, collection.ProducerConfig{OwnerKey: collection.Column(0)})
	if err != nil {
		t.Fatalf("NewProducer: %v", err)
	}
	it, err := p.Deferred("User.Tags", strategy)
	if err != nil {
		t.Fatalf("Deferred: %v", err)
	}
	return it
}

func TestDeferredNeverMaterializes(t *testing.T) {
	t.Parallel()

	s := collection.NewSession()
	role := newRole("User.Tags", collection.Set)
	it := deferred(t, role, collection.FetchSelect)

	l := s.Begin(t.Context())
	n, err := collection.Process(l, collection.Rows(
		collection.Row{1, "go"},
		collection.Row{1, "rust"},
		collection.Row{2, "zig"},
	), it)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if n != 3 {
		t.Errorf("rows = %d, want 3", n)
	}
	if diff := cmp.Diff([]any{int64(1), int64(2)}, l.Deferred(role)); diff != "" {
		t.Errorf("Deferred() mismatch (-want +got):\n%s", diff)
	}
	if err := l.End(); err != nil {
		t.Fatalf("End: %v", err)
	}

	c := mustFind(t, s, role, 1)
	if c.State() != collection.Loading {
		t.Errorf("State() = %v, want loading", c.State())
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
	if diff := cmp.Diff([]any{int64(1), int64(2)}, s.Pending(role, false)); diff != "" {
		t.Errorf("Pending() mismatch (-want +got):\n%s", diff)
	}
}

func TestDeferredThenSelectPass(t *testing.T) {
	t.Parallel()

	owners := collection.NewOwners()
	s := collection.NewSession(collection.WithOwners(owners))
	role := newRole("User.Tags", collection.Set)

	// Owner statement: users 1 and 2, tags deferred.
	runStatement(t, s, []collection.Row{{1}, {2}}, deferred(t, role, collection.FetchSelect))
	owners.Resolve("User", 1, "alice")
	owners.Resolve("User", 2, "bob")

	// Follow-up statement: SELECT user_id, name FROM user_tags WHERE user_id IN (1, 2)
	sel := joined(t, role, collection.NewColumns(0, 1), "User.Tags")
	l := s.Begin(t.Context())
	if err := sel.Expect(l, s.Pending(role, false)...); err != nil {
		t.Fatalf("Expect: %v", err)
	}
	if _, err := collection.Process(l, collection.Rows(collection.Row{1, "go"}, collection.Row{1, "sql"}), sel); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if err := l.End(); err != nil {
		t.Fatalf("End: %v", err)
	}

	alice := mustFind(t, s, role, 1)
	if diff := cmp.Diff([]any{"go", "sql"}, alice.Elements()); diff != "" {
		t.Errorf("alice mismatch (-want +got):\n%s", diff)
	}
	if owner, _ := alice.Owner(); owner != "alice" {
		t.Errorf("alice.Owner() = %v", owner)
	}
	bob := mustFind(t, s, role, 2)
	if bob.State() != collection.Initialized || bob.Len() != 0 {
		t.Errorf("bob = %v, want initialized and empty", bob)
	}
	if pending := s.Pending(role, false); len(pending) != 0 {
		t.Errorf("Pending() = %v, want none", pending)
	}
}

func TestLazyPlaceholder(t *testing.T) {
	t.Parallel()

	s := collection.NewSession()
	role := newRole("User.Tags", collection.Set)
	it := deferred(t, role, collection.FetchLazy)

	l := s.Begin(t.Context())
	if _, err := collection.Process(l, collection.Rows(collection.Row{1}), it); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got := l.Deferred(role); len(got) != 0 {
		t.Errorf("Deferred() = %v, want none for lazy", got)
	}
	if err := l.End(); err != nil {
		t.Fatalf("End: %v", err)
	}

	if c := mustFind(t, s, role, 1); c.State() != collection.Uninitialized {
		t.Errorf("State() = %v, want uninitialized", c.State())
	}
	if got := s.Pending(role, false); len(got) != 0 {
		t.Errorf("Pending(false) = %v", got)
	}
	if diff := cmp.Diff([]any{int64(1)}, s.Pending(role, true)); diff != "" {
		t.Errorf("Pending(true) mismatch (-want +got):\n%s", diff)
	}
}

func TestDeferredSkipsInitializedCollections(t *testing.T) {
	t.Parallel()

	s := collection.NewSession()
	role := newRole("User.Tags", collection.Set)

	runStatement(t, s, []collection.Row{{1, "go"}}, joined(t, role, collection.NewColumns(0, 1), "User.Tags"))

	it := deferred(t, role, collection.FetchSelect)
	l := s.Begin(t.Context())
	if _, err := collection.Process(l, collection.Rows(collection.Row{1}), it); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got := l.Deferred(role); len(got) != 0 {
		t.Errorf("Deferred() = %v, want none", got)
	}
	if it.Collection().State() != collection.Initialized {
		t.Errorf("State() = %v", it.Collection().State())
	}
	_ = l.End()
}

func TestDeferredRejectsJoinStrategy(t *testing.T) {
	t.Parallel()

	p, err := collection.NewProducer(newRole("User.Tags", collection.Set), collection.ProducerConfig{OwnerKey: collection.Column(0)})
	if err != nil {
		t.Fatalf("NewProducer: %v", err)
	}
	if _, err := p.Deferred("User.Tags", collection.FetchJoin); err == nil {
		t.Error("Deferred(FetchJoin) succeeded")
	}
	if _, err := p.Joined("User.Tags"); err == nil {
		t.Error("Joined without element column succeeded")
	}
}
