package orm

import (
	"fmt"

	"github.com/mickamy/ormcoll/collection"
)

// initialized returns the initialized role collection of owner in s.
func initialized(s *collection.Session, role *collection.Role, owner any) (*collection.Collection, bool, error) {
	k, err := collection.NewKey(role, owner)
	if err != nil {
		return nil, false, fmt.Errorf("orm: %w", err)
	}
	c, ok := s.FindExisting(k)
	if !ok || c.State() != collection.Initialized {
		return nil, false, nil
	}
	return c, true, nil
}

// Elements returns the elements of owner's role collection converted to E.
// It returns nil when s holds no initialized collection for owner.
func Elements[E any](s *collection.Session, role *collection.Role, owner any) ([]E, error) {
	c, ok, err := initialized(s, role, owner)
	if err != nil || !ok {
		return nil, err
	}
	return collection.ElementsAs[E](c) //nolint:wrapcheck // collection error
}

// Entries returns owner's role map collection as a Go map.
// It returns nil when s holds no initialized collection for owner.
func Entries[K comparable, V any](s *collection.Session, role *collection.Role, owner any) (map[K]V, error) {
	c, ok, err := initialized(s, role, owner)
	if err != nil || !ok {
		return nil, err
	}
	return collection.EntriesAs[K, V](c) //nolint:wrapcheck // collection error
}

// AssignElements returns an AssignFunc that stores each owner's elements
// with set. Owners whose collection was not loaded are left untouched.
func AssignElements[T, E any](role *collection.Role, key KeyFunc[T], set func(t *T, elems []E)) AssignFunc[T] {
	return func(s *collection.Session, results []T) error {
		for i := range results {
			c, ok, err := initialized(s, role, key(results[i]))
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			elems, err := collection.ElementsAs[E](c)
			if err != nil {
				return fmt.Errorf("orm: %w", err)
			}
			set(&results[i], elems)
		}
		return nil
	}
}

// AssignEntries is AssignElements for map collections.
func AssignEntries[T any, K comparable, V any](role *collection.Role, key KeyFunc[T], set func(t *T, m map[K]V)) AssignFunc[T] {
	return func(s *collection.Session, results []T) error {
		for i := range results {
			c, ok, err := initialized(s, role, key(results[i]))
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			m, err := collection.EntriesAs[K, V](c)
			if err != nil {
				return fmt.Errorf("orm: %w", err)
			}
			set(&results[i], m)
		}
		return nil
	}
}
