package collection

import "fmt"

// FetchStrategy selects how a collection is loaded relative to its owner's
// statement.
type FetchStrategy int

const (
	// FetchJoin reads collection rows from the owner's statement.
	FetchJoin FetchStrategy = iota
	// FetchSelect loads collections with a follow-up statement by owner key.
	FetchSelect
	// FetchLazy leaves an uninitialized placeholder for on-demand loading.
	FetchLazy
)

func (f FetchStrategy) String() string {
	switch f {
	case FetchJoin:
		return "join"
	case FetchSelect:
		return "select"
	case FetchLazy:
		return "lazy"
	default:
		return fmt.Sprintf("fetch(%d)", int(f))
	}
}

// ProducerConfig supplies the assemblers of one association.
type ProducerConfig struct {
	// OwnerKey yields the owning side's key. Required.
	OwnerKey Assembler
	// CollectionKey yields the association side's key when it is selected
	// under a different expression than OwnerKey, e.g. the foreign key of
	// a left-joined child row. Optional.
	CollectionKey Assembler
	// Element yields the element, or the value of a map entry.
	Element Assembler
	// Index yields the list/array index or the map key.
	Index Assembler
	// ID yields the surrogate id of a bag row. Optional.
	ID Assembler
	// OptionalOwner skips rows without an owner key instead of failing.
	OptionalOwner bool
}

// NoColumn marks an absent column in Columns.
const NoColumn = -1

// Columns is a ProducerConfig expressed as result column positions.
type Columns struct {
	Owner, Key, Element, Index, ID int
}

// NewColumns returns a layout with only the owner key and element columns.
func NewColumns(owner, element int) Columns {
	return Columns{Owner: owner, Key: NoColumn, Element: element, Index: NoColumn, ID: NoColumn}
}

func (c Columns) WithKey(i int) Columns   { c.Key = i; return c }
func (c Columns) WithIndex(i int) Columns { c.Index = i; return c }
func (c Columns) WithID(i int) Columns    { c.ID = i; return c }

// Config builds column assemblers for the layout.
func (c Columns) Config() ProducerConfig {
	opt := func(i int) Assembler {
		if i == NoColumn {
			return nil
		}
		return Column(i)
	}
	return ProducerConfig{
		OwnerKey:      Column(c.Owner),
		CollectionKey: opt(c.Key),
		Element:       opt(c.Element),
		Index:         opt(c.Index),
		ID:            opt(c.ID),
	}
}

// Producer manufactures initializers for one association. It is built once
// per query compilation and may hand out any number of initializers, one
// per fetch path.
type Producer struct {
	role *Role
	cfg  ProducerConfig
}

// NewProducer validates role against cfg.
func NewProducer(role *Role, cfg ProducerConfig) (*Producer, error) {
	if err := role.Validate(); err != nil {
		return nil, err
	}
	if cfg.OwnerKey == nil {
		return nil, fmt.Errorf("%w: %s: no owner key", ErrInvalidRole, role.Name)
	}
	return &Producer{role: role, cfg: cfg}, nil
}

func (p *Producer) Role() *Role { return p.role }

// Joined returns an initializer reading collection rows from the current
// statement.
func (p *Producer) Joined(path string) (*JoinedInitializer, error) {
	if p.cfg.Element == nil {
		return nil, fmt.Errorf("%w: %s: no element column", ErrInvalidRole, p.role.Name)
	}
	if p.role.Shape.Indexed() && p.cfg.Index == nil {
		return nil, fmt.Errorf("%w: %s: %s without index column", ErrInvalidRole, p.role.Name, p.role.Shape)
	}
	it := &JoinedInitializer{
		role:          p.role,
		path:          path,
		ownerKey:      p.cfg.OwnerKey,
		collKey:       p.cfg.CollectionKey,
		element:       p.cfg.Element,
		optionalOwner: p.cfg.OptionalOwner,
	}
	if p.role.Shape.Indexed() {
		it.index = p.cfg.Index
	}
	if p.role.Shape == Bag && p.role.IDColumn != "" {
		it.id = p.cfg.ID
	}
	return it, nil
}

// Deferred returns an initializer that only registers collections for a
// later select or lazy load.
func (p *Producer) Deferred(path string, strategy FetchStrategy) (*DeferredInitializer, error) {
	if strategy == FetchJoin {
		return nil, fmt.Errorf("collection: %s: join fetch is not deferred", p.role.Name)
	}
	return &DeferredInitializer{
		role:          p.role,
		path:          path,
		strategy:      strategy,
		ownerKey:      p.cfg.OwnerKey,
		optionalOwner: p.cfg.OptionalOwner,
	}, nil
}

// Initializer returns the initializer for strategy.
func (p *Producer) Initializer(strategy FetchStrategy, path string) (Initializer, error) {
	if strategy == FetchJoin {
		it, err := p.Joined(path)
		if err != nil {
			return nil, err
		}
		return it, nil
	}
	it, err := p.Deferred(path, strategy)
	if err != nil {
		return nil, err
	}
	return it, nil
}
