package collection

import (
	"fmt"
	"sort"
)

// State is the lifecycle of a Collection. It only ever moves forward.
type State int

const (
	Uninitialized State = iota
	Loading
	Initialized
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Loading:
		return "loading"
	case Initialized:
		return "initialized"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Entry is one key/value pair of a Map collection.
type Entry struct {
	Key   any
	Value any
}

// Collection stands in for the real collection of one owner while rows are
// read into it. Which content fields are live depends on the role's shape.
type Collection struct {
	key   Key
	role  *Role
	state State

	owner    any
	hasOwner bool

	elems   []any            // Bag, Set: encounter order. List, Array: by position.
	ids     []any            // Bag surrogate ids, parallel to elems
	members map[any]struct{} // Set
	indexed map[int]any      // List while loading
	keys    []any            // Map, first-insertion order
	values  map[any]any      // Map
}

// rowValues is what one row contributes to a collection.
type rowValues struct {
	element any
	index   any
	id      any
}

func newCollection(role *Role, key Key) *Collection {
	c := &Collection{key: key, role: role}
	switch role.Shape {
	case Set:
		c.members = make(map[any]struct{})
	case Map:
		c.values = make(map[any]any)
	case List:
		c.indexed = make(map[int]any)
	case Array:
		c.elems = make([]any, role.Size)
	}
	return c
}

// NewUninitialized returns an empty placeholder for key, e.g. for a session
// that knows a collection exists before any statement has loaded it.
func NewUninitialized(role *Role, owner any) (*Collection, error) {
	k, err := NewKey(role, owner)
	if err != nil {
		return nil, err
	}
	return newCollection(role, k), nil
}

func (c *Collection) Key() Key     { return c.key }
func (c *Collection) Role() *Role  { return c.role }
func (c *Collection) State() State { return c.state }

// Owner returns the owning object once it has been resolved.
func (c *Collection) Owner() (any, bool) { return c.owner, c.hasOwner }

// setOwner fills the pending owner slot. Only the first call has an effect.
func (c *Collection) setOwner(owner any) {
	if c.hasOwner {
		return
	}
	c.owner = owner
	c.hasOwner = true
}

// Len returns the number of elements (entries for a Map).
func (c *Collection) Len() int {
	switch c.role.Shape {
	case Map:
		return len(c.keys)
	case List:
		if c.state != Initialized {
			return len(c.indexed)
		}
	}
	return len(c.elems)
}

// Elements returns a copy of the elements: encounter order for bags and
// sets, index order for lists and arrays, key insertion order for maps.
// A list exposes no elements until it is initialized.
func (c *Collection) Elements() []any {
	if c.role.Shape == Map {
		out := make([]any, len(c.keys))
		for i, k := range c.keys {
			out[i] = c.values[k]
		}
		return out
	}
	return append([]any(nil), c.elems...)
}

// IDs returns the surrogate ids of a bag, parallel to Elements.
func (c *Collection) IDs() []any {
	return append([]any(nil), c.ids...)
}

// Entries returns the pairs of a Map in first-insertion order.
func (c *Collection) Entries() []Entry {
	out := make([]Entry, len(c.keys))
	for i, k := range c.keys {
		out[i] = Entry{Key: k, Value: c.values[k]}
	}
	return out
}

// Lookup returns the value stored under key in a Map.
func (c *Collection) Lookup(key any) (any, bool) {
	key = Normalize(key)
	if c.values == nil || !isComparable(key) {
		return nil, false
	}
	v, ok := c.values[key]
	return v, ok
}

// Contains reports whether v is an element of the collection.
func (c *Collection) Contains(v any) bool {
	v = Normalize(v)
	if c.members != nil && isComparable(v) {
		_, ok := c.members[v]
		return ok
	}
	for _, e := range c.Elements() {
		if isComparable(e) && isComparable(v) && e == v {
			return true
		}
	}
	return false
}

func (c *Collection) String() string {
	return fmt.Sprintf("%s[%s,%d]", c.key, c.state, c.Len())
}

// beginRead moves the collection into Loading.
func (c *Collection) beginRead() error {
	if c.state == Initialized {
		return fmt.Errorf("%w: %s", ErrInitialized, c.key)
	}
	c.state = Loading
	return nil
}

// add applies one row to the collection according to its shape.
func (c *Collection) add(r rowValues) error {
	if c.state == Initialized {
		return fmt.Errorf("%w: %s", ErrInitialized, c.key)
	}
	el := Normalize(r.element)
	switch c.role.Shape {
	case Bag:
		c.elems = append(c.elems, el)
		if c.role.IDColumn != "" {
			c.ids = append(c.ids, Normalize(r.id))
		}
	case Set:
		if !isComparable(el) {
			return fmt.Errorf("%w: set element %T", ErrUncomparable, r.element)
		}
		if _, dup := c.members[el]; dup {
			return nil
		}
		c.members[el] = struct{}{}
		c.elems = append(c.elems, el)
	case Map:
		k := Normalize(r.index)
		if k == nil {
			return ErrNullIndex
		}
		if !isComparable(k) {
			return fmt.Errorf("%w: map key %T", ErrUncomparable, r.index)
		}
		if _, ok := c.values[k]; !ok {
			c.keys = append(c.keys, k)
		}
		c.values[k] = el
	case List:
		pos, err := c.position(r.index)
		if err != nil {
			return err
		}
		c.indexed[pos] = el
	case Array:
		pos, err := c.position(r.index)
		if err != nil {
			return err
		}
		if pos >= len(c.elems) {
			return fmt.Errorf("%w: index %d, size %d", ErrIndexOutOfBounds, pos+c.role.BaseIndex, len(c.elems))
		}
		c.elems[pos] = el
	}
	return nil
}

// position converts a raw index value to a zero-based position.
func (c *Collection) position(index any) (int, error) {
	var i int64
	switch x := Normalize(index).(type) {
	case nil:
		return 0, ErrNullIndex
	case int64:
		i = x
	case uint64:
		i = int64(x) //nolint:gosec // bounds checked below
	default:
		return 0, fmt.Errorf("collection: index of type %T", index)
	}
	pos := i - int64(c.role.BaseIndex)
	if pos < 0 {
		return 0, fmt.Errorf("%w: index %d below base %d", ErrIndexOutOfBounds, i, c.role.BaseIndex)
	}
	return int(pos), nil
}

// endRead finishes loading. A list must cover every position from its base
// index without gaps.
func (c *Collection) endRead() error {
	if c.state == Initialized {
		return nil
	}
	if c.role.Shape == List {
		elems := make([]any, len(c.indexed))
		for pos, el := range c.indexed {
			if pos >= len(elems) {
				return fmt.Errorf("%w: %s: missing index %d", ErrIndexGap, c.key, firstGap(c.indexed)+c.role.BaseIndex)
			}
			elems[pos] = el
		}
		c.elems = elems
		c.indexed = nil
	}
	c.state = Initialized
	return nil
}

func firstGap(indexed map[int]any) int {
	positions := make([]int, 0, len(indexed))
	for pos := range indexed {
		positions = append(positions, pos)
	}
	sort.Ints(positions)
	for want, pos := range positions {
		if pos != want {
			return want
		}
	}
	return len(positions)
}
