package collection

import (
	"fmt"
	"reflect"
)

// Key names one collection instance: an association role and the key of
// the owner it belongs to. Two keys are equal iff both parts are equal.
type Key struct {
	Role  string
	Owner any
}

// NewKey builds the identity of the collection of role owned by owner.
// The owner value is normalised so that every fetch path producing the
// same logical key yields an equal Key.
func NewKey(role *Role, owner any) (Key, error) {
	if owner == nil {
		return Key{}, fmt.Errorf("%w: %s", ErrNullOwnerKey, role.Name)
	}
	v := Normalize(owner)
	if !isComparable(v) {
		return Key{}, fmt.Errorf("%w: %s owner key %T", ErrUncomparable, role.Name, owner)
	}
	return Key{Role: role.Name, Owner: v}, nil
}

func (k Key) String() string {
	return fmt.Sprintf("%s#%v", k.Role, k.Owner)
}

// Normalize maps driver scalars onto a canonical representation: signed
// integers become int64, unsigned integers uint64, byte slices string.
// Other values are returned unchanged.
func Normalize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return uint64(x)
	case uint8:
		return uint64(x)
	case uint16:
		return uint64(x)
	case uint32:
		return uint64(x)
	case []byte:
		return string(x)
	default:
		return v
	}
}

func isComparable(v any) bool {
	if v == nil {
		return true
	}
	return reflect.TypeOf(v).Comparable()
}
