package orm

import "errors"

var (
	// ErrNotFound is returned when a query expects exactly one row but finds none.
	ErrNotFound = errors.New("orm: not found")

	// ErrUnknownCollection is returned by Preload or JoinFetch for a name
	// that was never registered.
	ErrUnknownCollection = errors.New("orm: unknown collection")

	// ErrNoOwnerIdentity is returned when collections are requested from a
	// query that does not know how to identify its owners.
	ErrNoOwnerIdentity = errors.New("orm: owner identity not configured")

	// ErrBagJoinFetch is returned when a join-fetched bag would share its
	// statement with another joined collection. The other join repeats every
	// bag row, and a bag keeps repeats.
	ErrBagJoinFetch = errors.New("orm: cannot join-fetch a bag with another collection")
)
