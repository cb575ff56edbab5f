package collection

import "fmt"

// Initializer takes part in the per-row choreography of Process. For each
// row every initializer resolves its key, then its instance, then
// contributes, and finally clears its per-row state.
type Initializer interface {
	ResolveKey(l *Load, row Row) error
	ResolveInstance(l *Load, row Row) error
	InitializeInstance(l *Load, row Row) error
	FinishUpRow()
}

// Status is an initializer's relation to the collection of the current
// owner group.
type Status int

const (
	Unseen Status = iota
	ClaimedBySelf
	ClaimedByOther
	AlreadyCached
)

func (s Status) String() string {
	switch s {
	case Unseen:
		return "unseen"
	case ClaimedBySelf:
		return "claimed-by-self"
	case ClaimedByOther:
		return "claimed-by-other"
	case AlreadyCached:
		return "already-cached"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// scratch is the per-row state of an initializer.
type scratch struct {
	owner  any // owner key as read
	coll   any // association-side key as read
	key    Key
	hasKey bool
}

// group memoizes resolution for consecutive rows of one owner.
type group struct {
	load  *Load
	key   Key
	valid bool
}

func (g *group) same(l *Load, k Key) bool {
	return g.valid && g.load == l && g.key == k
}

func (g *group) set(l *Load, k Key) {
	g.load, g.key, g.valid = l, k, true
}

// JoinedInitializer fills collections from rows of the current statement:
// an owner query joined to its collection table, or a select issued for
// known owner keys.
type JoinedInitializer struct {
	role *Role
	path string

	ownerKey      Assembler
	collKey       Assembler // nil when the owner key column doubles as the association key
	element       Assembler
	index         Assembler
	id            Assembler
	optionalOwner bool

	row    scratch
	group  group
	status Status
	coll   *Collection
	entry  *LoadingEntry
}

func (i *JoinedInitializer) Role() *Role { return i.role }
func (i *JoinedInitializer) Path() string { return i.path }

// Status reports the responsibility state for the current owner group.
func (i *JoinedInitializer) Status() Status { return i.status }

// Collection returns the wrapper of the current owner group, including one
// claimed by another initializer.
func (i *JoinedInitializer) Collection() *Collection { return i.coll }

// ResolveKey reads the owner key and, when distinct, the association key.
func (i *JoinedInitializer) ResolveKey(_ *Load, row Row) error {
	owner, err := i.ownerKey.Assemble(row)
	if err != nil {
		return fmt.Errorf("%s owner key: %w", i.path, err)
	}
	coll := owner
	if i.collKey != nil {
		if coll, err = i.collKey.Assemble(row); err != nil {
			return fmt.Errorf("%s collection key: %w", i.path, err)
		}
	}
	if owner == nil {
		if i.optionalOwner {
			return nil
		}
		return fmt.Errorf("%w: %s at %s", ErrNullOwnerKey, i.role.Name, i.path)
	}
	k, err := NewKey(i.role, owner)
	if err != nil {
		return err
	}
	i.row = scratch{owner: owner, coll: coll, key: k, hasKey: true}
	return nil
}

// ResolveInstance runs the responsibility protocol once per owner group.
func (i *JoinedInitializer) ResolveInstance(l *Load, _ Row) error {
	if !i.row.hasKey {
		return nil
	}
	if i.group.same(l, i.row.key) {
		return nil
	}
	if err := i.resolve(l, i.row.key, i.row.owner); err != nil {
		return err
	}
	i.group.set(l, i.row.key)
	return nil
}

func (i *JoinedInitializer) resolve(l *Load, k Key, owner any) error {
	if l.closed {
		return ErrLoadClosed
	}
	i.status, i.coll, i.entry = Unseen, nil, nil

	if e, ok := l.FindLoadingEntry(k); ok {
		i.coll = e.Collection
		if e.Initializer != Initializer(i) {
			i.status = ClaimedByOther
			return nil
		}
		i.entry, i.status = e, ClaimedBySelf
		return nil
	}

	s := l.session
	c, ok := s.FindExisting(k)
	if !ok {
		c, ok = s.PromoteUnowned(k)
	}
	if ok && c.state == Initialized {
		i.coll, i.status = c, AlreadyCached
		l.session.metrics.addClaim(k.Role, "already_cached")
		return nil
	}
	if !ok {
		c = s.RegisterUninitialized(k, newCollection(i.role, k))
		if c.state == Initialized {
			i.coll, i.status = c, AlreadyCached
			return nil
		}
	}

	e, claimed := l.RegisterLoadingEntry(k, i, c)
	i.coll = e.Collection
	if !claimed {
		i.status = ClaimedByOther
		return nil
	}
	i.entry, i.status = e, ClaimedBySelf
	wireOwner(s, c, owner)
	return nil
}

// InitializeInstance appends the current row to the collection when this
// initializer is responsible for it. A row without an association key is
// the marker row of an empty collection and contributes nothing.
func (i *JoinedInitializer) InitializeInstance(_ *Load, row Row) error {
	if !i.row.hasKey || i.status != ClaimedBySelf || i.row.coll == nil {
		return nil
	}
	var (
		v   rowValues
		err error
	)
	if i.index != nil {
		if v.index, err = i.index.Assemble(row); err != nil {
			return fmt.Errorf("%s index: %w", i.path, err)
		}
	}
	if i.id != nil {
		if v.id, err = i.id.Assemble(row); err != nil {
			return fmt.Errorf("%s id: %w", i.path, err)
		}
	}
	if v.element, err = i.element.Assemble(row); err != nil {
		return fmt.Errorf("%s element: %w", i.path, err)
	}
	if err := i.entry.Collection.add(v); err != nil {
		return fmt.Errorf("%s at %s: %w", i.row.key, i.path, err)
	}
	i.entry.rows++
	return nil
}

// FinishUpRow clears the per-row state.
func (i *JoinedInitializer) FinishUpRow() {
	i.row = scratch{}
}

// Expect claims the collections of the given owner keys before any row is
// read, so that owners without rows still end up with an initialized empty
// collection. It is used by statements issued for a known set of keys.
func (i *JoinedInitializer) Expect(l *Load, owners ...any) error {
	for _, owner := range owners {
		k, err := NewKey(i.role, owner)
		if err != nil {
			return err
		}
		if e, ok := l.entries[k]; ok && e.Initializer == Initializer(i) {
			continue
		}
		if err := i.resolve(l, k, owner); err != nil {
			return err
		}
	}
	i.group = group{}
	i.status, i.coll, i.entry = Unseen, nil, nil
	return nil
}

// wireOwner sets the owner of c now if it is constructed, or once it is.
func wireOwner(s *Session, c *Collection, owner any) {
	if c.hasOwner {
		return
	}
	entity := c.role.Owner
	if o, ok := s.owners.Resolved(entity, owner); ok {
		c.setOwner(o)
		return
	}
	s.owners.OnResolved(entity, owner, c.setOwner)
}

var _ Initializer = (*JoinedInitializer)(nil)
