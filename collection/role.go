package collection

import (
	"fmt"
	"strings"
)

// Shape is the kind of multi-valued association a Role describes.
type Shape int

const (
	// Bag permits duplicates and has no index.
	Bag Shape = iota + 1
	// List is ordered by a contiguous index column.
	List
	// Set absorbs duplicate elements.
	Set
	// Map associates a key column with an element column.
	Map
	// Array is a fixed-size, index-addressed sequence.
	Array
)

func (s Shape) String() string {
	switch s {
	case Bag:
		return "bag"
	case List:
		return "list"
	case Set:
		return "set"
	case Map:
		return "map"
	case Array:
		return "array"
	default:
		return fmt.Sprintf("shape(%d)", int(s))
	}
}

// Indexed reports whether rows of this shape carry an index or map key.
func (s Shape) Indexed() bool {
	return s == List || s == Map || s == Array
}

// ParseShape converts a shape name as written in a coll tag.
func ParseShape(name string) (Shape, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "bag":
		return Bag, nil
	case "list":
		return List, nil
	case "set":
		return Set, nil
	case "map":
		return Map, nil
	case "array":
		return Array, nil
	default:
		return 0, fmt.Errorf("%w: unknown shape %q", ErrInvalidRole, name)
	}
}

// Role describes one declared multi-valued association. A Role is created
// once per mapping and must not be modified after it is handed to a Producer.
type Role struct {
	// Name identifies the association, e.g. "User.Posts". It is the role
	// half of every Key built for this association.
	Name string
	// Owner is the owning entity name used for owner resolution.
	Owner string
	Shape Shape

	ElementType string
	IndexType   string // list/array index or map key type; empty otherwise

	// IDColumn is the optional surrogate identifier of a bag row.
	IDColumn string
	// KeyColumns are the foreign-key columns linking a child row to its owner.
	KeyColumns []string

	// BaseIndex is the index value of the first element of a list or array.
	BaseIndex int
	// Size is the declared length of an array.
	Size int

	// Inverse marks a collection mapped from the non-owning side of a
	// bidirectional association.
	Inverse bool
}

// Validate reports whether the descriptor is usable.
func (r *Role) Validate() error {
	switch {
	case r == nil:
		return fmt.Errorf("%w: nil role", ErrInvalidRole)
	case r.Name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidRole)
	case r.Owner == "":
		return fmt.Errorf("%w: %s: empty owner", ErrInvalidRole, r.Name)
	case r.Shape < Bag || r.Shape > Array:
		return fmt.Errorf("%w: %s: unknown shape %d", ErrInvalidRole, r.Name, int(r.Shape))
	case r.Shape == Array && r.Size <= 0:
		return fmt.Errorf("%w: %s: array without size", ErrInvalidRole, r.Name)
	case r.BaseIndex < 0:
		return fmt.Errorf("%w: %s: negative base index", ErrInvalidRole, r.Name)
	}
	return nil
}

func (r *Role) String() string {
	return r.Name + "(" + r.Shape.String() + ")"
}
