package collection

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// LoadingEntry records which initializer is responsible for filling a
// collection during one statement execution.
type LoadingEntry struct {
	Key         Key
	Initializer Initializer
	Collection  *Collection

	load *Load
	rows int
}

// Rows returns the number of rows applied to the collection so far.
func (e *LoadingEntry) Rows() int { return e.rows }

// Load is the loading registry of one statement execution. It is driven by
// a single goroutine; only its Session is shared.
type Load struct {
	ctx     context.Context
	id      uuid.UUID
	session *Session

	entries map[Key]*LoadingEntry
	order   []Key

	deferred     map[string][]any
	deferredSeen map[Key]struct{}

	closed bool
}

func newLoad(ctx context.Context, s *Session) *Load {
	return &Load{
		ctx:          ctx,
		id:           uuid.New(),
		session:      s,
		entries:      make(map[Key]*LoadingEntry),
		deferred:     make(map[string][]any),
		deferredSeen: make(map[Key]struct{}),
	}
}

func (l *Load) ID() uuid.UUID               { return l.id }
func (l *Load) Context() context.Context    { return l.ctx }
func (l *Load) Session() *Session           { return l.session }
func (l *Load) Closed() bool                { return l.closed }
func (l *Load) Entries() int                { return len(l.entries) }
func (l *Load) String() string              { return "load " + l.id.String() }
func (l *Load) log(msg string, args ...any) { l.session.log(l.ctx, msg, args...) }

// RegisterLoadingEntry makes init responsible for filling c under k. When
// another Load already holds k, that entry is returned with false.
// Registering the same key twice within one Load is a bug in the caller.
func (l *Load) RegisterLoadingEntry(k Key, init Initializer, c *Collection) (*LoadingEntry, bool) {
	assert(!l.closed, "%s: register %s after end", l, k)
	_, dup := l.entries[k]
	assert(!dup, "%s: %s claimed twice", l, k)

	e, ok := l.session.claim(&LoadingEntry{Key: k, Initializer: init, Collection: c, load: l})
	if !ok {
		l.session.metrics.addClaim(k.Role, "claimed_by_other")
		l.log("collection: claimed by another load", "key", k.String(), "load", l.id.String())
		return e, false
	}
	if err := c.beginRead(); err != nil {
		l.session.release(e, false)
		assert(false, "%s: claimed initialized collection %s", l, k)
	}
	l.entries[k] = e
	l.order = append(l.order, k)
	l.session.metrics.addClaim(k.Role, "claimed")
	l.log("collection: claimed", "key", k.String(), "load", l.id.String())
	return e, true
}

// FindLoadingEntry returns the entry responsible for k in this Load or in
// any other open Load of the same Session.
func (l *Load) FindLoadingEntry(k Key) (*LoadingEntry, bool) {
	if e, ok := l.entries[k]; ok {
		return e, true
	}
	return l.session.claimed(k)
}

func (l *Load) deferKey(role *Role, k Key) {
	if _, ok := l.deferredSeen[k]; ok {
		return
	}
	l.deferredSeen[k] = struct{}{}
	l.deferred[role.Name] = append(l.deferred[role.Name], k.Owner)
}

// Deferred returns the owner keys whose role collections were scheduled
// for a follow-up select by a deferred initializer in this Load.
func (l *Load) Deferred(role *Role) []any {
	return append([]any(nil), l.deferred[role.Name]...)
}

// End finishes the statement: every claimed collection is finalized, an
// empty one included, and all claims are released. Collections that fail
// to finalize are evicted from the session and their errors joined.
func (l *Load) End() error {
	if l.closed {
		return ErrLoadClosed
	}
	l.closed = true

	var errs []error
	for _, k := range l.order {
		e := l.entries[k]
		c := e.Collection
		if err := c.endRead(); err != nil {
			l.session.release(e, true)
			errs = append(errs, fmt.Errorf("%s: %w", l, err))
			continue
		}
		assert(c.state == Initialized, "%s: %s still %s after end", l, k, c.state)
		l.session.release(e, false)
		l.session.metrics.addInitialized(c.role)
		l.log("collection: initialized", "key", k.String(), "rows", e.rows, "len", c.Len())
	}
	l.entries = nil
	l.order = nil
	return errors.Join(errs...)
}

// Abandon releases every claim without finalizing, for a statement that
// stopped delivering rows. Abandoned wrappers are evicted from the session.
func (l *Load) Abandon() {
	if l.closed {
		return
	}
	l.closed = true
	for _, k := range l.order {
		l.session.release(l.entries[k], true)
	}
	l.session.metrics.addAbandoned(len(l.order))
	l.log("collection: load abandoned", "load", l.id.String(), "claims", len(l.order))
	l.entries = nil
	l.order = nil
}
