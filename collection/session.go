package collection

import (
	"context"
	"sync"
)

// Logger receives hydration events. orm.Logger satisfies it.
type Logger interface {
	Log(ctx context.Context, msg string, args ...any)
}

// Session is the cache of collection wrappers shared by every statement
// executed on behalf of one unit of work. It guarantees at most one
// in-progress claim per collection identity across all open Loads.
type Session struct {
	mu          sync.Mutex
	collections map[Key]*Collection
	order       []Key
	unowned     map[Key]*Collection
	claims      map[Key]*LoadingEntry

	owners  OwnerResolver
	logger  Logger
	metrics *Metrics
}

// Option configures a Session.
type Option func(*Session)

// WithLogger logs claims, finalization and abandonment to l.
func WithLogger(l Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithMetrics records hydration counters to m.
func WithMetrics(m *Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithOwners replaces the default in-process owner registry.
func WithOwners(r OwnerResolver) Option {
	return func(s *Session) { s.owners = r }
}

// NewSession returns an empty Session.
func NewSession(opts ...Option) *Session {
	s := &Session{
		collections: make(map[Key]*Collection),
		unowned:     make(map[Key]*Collection),
		claims:      make(map[Key]*LoadingEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.owners == nil {
		s.owners = NewOwners()
	}
	return s
}

// Owners returns the owner resolution registry.
func (s *Session) Owners() OwnerResolver { return s.owners }

// FindExisting returns the wrapper cached under k.
func (s *Session) FindExisting(k Key) (*Collection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[k]
	return c, ok
}

// PromoteUnowned moves a wrapper registered from the non-owning side of a
// bidirectional association into the cache and returns it.
func (s *Session) PromoteUnowned(k Key) (*Collection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.unowned[k]
	if !ok {
		return nil, false
	}
	delete(s.unowned, k)
	if existing, ok := s.collections[k]; ok {
		return existing, true
	}
	s.put(k, c)
	return c, true
}

// AddUnowned keeps c aside until an owning-side load promotes it.
func (s *Session) AddUnowned(c *Collection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unowned[c.key] = c
}

// RegisterUninitialized caches c under k unless another wrapper is already
// cached there, and returns the wrapper that is cached afterwards.
func (s *Session) RegisterUninitialized(k Key, c *Collection) *Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.collections[k]; ok {
		return existing
	}
	s.put(k, c)
	return c
}

func (s *Session) put(k Key, c *Collection) {
	s.collections[k] = c
	s.order = append(s.order, k)
}

// Evict drops the wrapper cached under k. A wrapper currently claimed by a
// Load is kept.
func (s *Session) Evict(k Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, claimed := s.claims[k]; claimed {
		return
	}
	s.evict(k)
}

func (s *Session) evict(k Key) {
	delete(s.collections, k)
	for i, o := range s.order {
		if o == k {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Pending returns, in registration order, the owner keys of role whose
// wrappers are scheduled for loading but not claimed by any Load. Lazy
// placeholders are included only when includeLazy is set.
func (s *Session) Pending(role *Role, includeLazy bool) []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []any
	for _, k := range s.order {
		if k.Role != role.Name {
			continue
		}
		c := s.collections[k]
		if c == nil || c.state == Initialized {
			continue
		}
		if c.state == Uninitialized && !includeLazy {
			continue
		}
		if _, claimed := s.claims[k]; claimed {
			continue
		}
		keys = append(keys, k.Owner)
	}
	return keys
}

// Len returns the number of cached wrappers.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.collections)
}

// Begin starts the loading registry of one statement execution.
func (s *Session) Begin(ctx context.Context) *Load {
	return newLoad(ctx, s)
}

// claim registers e unless another entry holds e.Key.
func (s *Session) claim(e *LoadingEntry) (*LoadingEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if held, ok := s.claims[e.Key]; ok {
		return held, false
	}
	s.claims[e.Key] = e
	return e, true
}

func (s *Session) claimed(k Key) (*LoadingEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.claims[k]
	return e, ok
}

func (s *Session) release(e *LoadingEntry, evict bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claims[e.Key] == e {
		delete(s.claims, e.Key)
	}
	if evict {
		s.evict(e.Key)
	}
}

func (s *Session) log(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.Log(ctx, msg, args...)
	}
}
