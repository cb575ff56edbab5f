package collection

import "sync"

// OwnerResolver is the view of the entity hydration side that collection
// loading needs: whether an owner is constructed yet, and a way to be told
// when it is.
type OwnerResolver interface {
	Resolved(entity string, key any) (any, bool)
	// OnResolved registers fn to be called exactly once with the owner
	// when it is constructed, or immediately if it already is.
	OnResolved(entity string, key any, fn func(owner any))
}

// OwnerPublisher is implemented by registries that accept constructed
// owners from the entity hydration side.
type OwnerPublisher interface {
	Resolve(entity string, key, owner any)
}

type ownerKey struct {
	entity string
	key    any
}

// Owners is an in-process OwnerResolver. The entity hydration side calls
// Resolve once per constructed owner.
type Owners struct {
	mu       sync.Mutex
	resolved map[ownerKey]any
	waiting  map[ownerKey][]func(any)
}

// NewOwners returns an empty registry.
func NewOwners() *Owners {
	return &Owners{
		resolved: make(map[ownerKey]any),
		waiting:  make(map[ownerKey][]func(any)),
	}
}

// Resolve records that the owner identified by (entity, key) is constructed
// and runs the listeners waiting for it. Resolving an owner twice keeps the
// first object.
func (o *Owners) Resolve(entity string, key, owner any) {
	k, ok := newOwnerKey(entity, key)
	if !ok {
		return
	}
	o.mu.Lock()
	if _, done := o.resolved[k]; done {
		o.mu.Unlock()
		return
	}
	o.resolved[k] = owner
	fns := o.waiting[k]
	delete(o.waiting, k)
	o.mu.Unlock()

	for _, fn := range fns {
		fn(owner)
	}
}

func (o *Owners) Resolved(entity string, key any) (any, bool) {
	k, ok := newOwnerKey(entity, key)
	if !ok {
		return nil, false
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	owner, ok := o.resolved[k]
	return owner, ok
}

func (o *Owners) OnResolved(entity string, key any, fn func(owner any)) {
	k, ok := newOwnerKey(entity, key)
	if !ok {
		return
	}
	o.mu.Lock()
	owner, done := o.resolved[k]
	if !done {
		o.waiting[k] = append(o.waiting[k], fn)
	}
	o.mu.Unlock()

	if done {
		fn(owner)
	}
}

// Waiting returns the number of listeners not yet fired.
func (o *Owners) Waiting() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, fns := range o.waiting {
		n += len(fns)
	}
	return n
}

func newOwnerKey(entity string, key any) (ownerKey, bool) {
	key = Normalize(key)
	if key == nil || !isComparable(key) {
		return ownerKey{}, false
	}
	return ownerKey{entity: entity, key: key}, true
}

var (
	_ OwnerResolver  = (*Owners)(nil)
	_ OwnerPublisher = (*Owners)(nil)
)
