package collection

import "fmt"

// DeferredInitializer registers collections whose rows are read by a later
// statement (FetchSelect) or on first access (FetchLazy). It never reads
// element columns and never initializes a collection.
type DeferredInitializer struct {
	role     *Role
	path     string
	strategy FetchStrategy

	ownerKey      Assembler
	optionalOwner bool

	row   scratch
	group group
	coll  *Collection
}

func (i *DeferredInitializer) Role() *Role             { return i.role }
func (i *DeferredInitializer) Path() string            { return i.path }
func (i *DeferredInitializer) Collection() *Collection { return i.coll }

func (i *DeferredInitializer) ResolveKey(_ *Load, row Row) error {
	owner, err := i.ownerKey.Assemble(row)
	if err != nil {
		return fmt.Errorf("%s owner key: %w", i.path, err)
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
	i.row = scratch{owner: owner, coll: owner, key: k, hasKey: true}
	return nil
}

// ResolveInstance creates or adopts the wrapper and wires its owner.
// Select-strategy wrappers are left Loading and recorded on the Load for
// a follow-up statement; lazy ones stay Uninitialized.
func (i *DeferredInitializer) ResolveInstance(l *Load, _ Row) error {
	if !i.row.hasKey || i.group.same(l, i.row.key) {
		return nil
	}
	if l.closed {
		return ErrLoadClosed
	}
	i.group.set(l, i.row.key)

	k, s := i.row.key, l.session
	c, ok := s.FindExisting(k)
	if !ok {
		c, ok = s.PromoteUnowned(k)
	}
	if !ok {
		c = newCollection(i.role, k)
		if i.strategy == FetchSelect {
			c.state = Loading
		}
		c = s.RegisterUninitialized(k, c)
	}
	i.coll = c
	if c.state == Initialized {
		return nil
	}
	wireOwner(s, c, i.row.owner)
	if i.strategy == FetchSelect {
		l.deferKey(i.role, k)
	}
	return nil
}

// InitializeInstance does nothing: deferred collections are filled by a
// separate pass.
func (i *DeferredInitializer) InitializeInstance(*Load, Row) error { return nil }

func (i *DeferredInitializer) FinishUpRow() { i.row = scratch{} }

var _ Initializer = (*DeferredInitializer)(nil)
