package collection

import (
	"errors"
	"fmt"
)

var (
	// ErrNullOwnerKey is returned when a row yields no owner key for a role
	// whose mapping requires one.
	ErrNullOwnerKey = errors.New("collection: null owner key")

	// ErrUncomparable is returned when a key, set element or map key cannot
	// be used as a map key.
	ErrUncomparable = errors.New("collection: value is not comparable")

	// ErrIndexGap is returned when a list ends loading with missing indices.
	ErrIndexGap = errors.New("collection: non-contiguous list index")

	// ErrIndexOutOfBounds is returned when an array or list index falls
	// outside the declared bounds.
	ErrIndexOutOfBounds = errors.New("collection: index out of bounds")

	// ErrNullIndex is returned when an indexed collection row has no index.
	ErrNullIndex = errors.New("collection: null index")

	// ErrInitialized is returned when a row tries to mutate a collection that
	// already finished loading.
	ErrInitialized = errors.New("collection: already initialized")

	// ErrLoadClosed is returned when a Load is used after End or Abandon.
	ErrLoadClosed = errors.New("collection: load closed")

	// ErrInvalidRole is returned by Role.Validate.
	ErrInvalidRole = errors.New("collection: invalid role")
)

// assert panics when an internal invariant does not hold. These conditions
// indicate a bug in this package or its caller, not bad row data.
func assert(cond bool, format string, args ...any) {
	if !cond {
		panic("collection: invariant violated: " + fmt.Sprintf(format, args...))
	}
}
