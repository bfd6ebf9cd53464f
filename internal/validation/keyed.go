package validation

import (
	"strconv"

	"github.com/estuary/flow-sub001/internal/catalog"
	"github.com/estuary/flow-sub001/internal/schema"
)

// disallowedKeyTypes may never be the type of a key location.
const disallowedKeyTypes = schema.Object | schema.Array | schema.Fractional

// validateKeyedLocation requires that a located key must exist, and is
// never an object, array, or fractional number.
func (v *validator) validateKeyedLocation(scope catalog.Scope, schemaURL, ptr string, located *schema.Shape, mustExist bool) bool {
	ok := true
	if !mustExist {
		v.errs.add(scope, KeyMayNotExist,
			"location %q is used as a key but is not required to exist by schema %s", ptr, schemaURL)
		ok = false
	}
	if disallowed := located.Type & disallowedKeyTypes; disallowed != schema.Invalid {
		v.errs.add(scope, KeyWrongType,
			"location %q is used as a key but may be of types %s, which are not allowed as keys", ptr, disallowed)
		ok = false
	}
	return ok
}

// validateKey locates each pointer of a key within a shape and applies the
// keyed-location rule. It returns the key's type vector when every pointer is valid.
func (v *validator) validateKey(scope catalog.Scope, ss *schemaShape, key []string) ([]schema.TypeSet, bool) {
	types := make([]schema.TypeSet, 0, len(key))
	ok := true

	for i, ptr := range key {
		ptrScope := scope.Push(strconv.Itoa(i))

		if _, err := schema.PointerTokens(ptr); err != nil {
			v.errs.wrap(ptrScope, NoSuchPointer, err, "key location %q is not a valid JSON pointer", ptr)
			ok = false
			continue
		}
		located, mustExist, found := ss.shape.Locate(ptr)
		if !found {
			v.errs.add(ptrScope, NoSuchPointer, "key location %q is not defined by schema %s", ptr, ss.url)
			ok = false
			continue
		}
		if !v.validateKeyedLocation(ptrScope, ss.url, ptr, located, mustExist) {
			ok = false
		}
		types = append(types, located.Type)
	}
	return types, ok
}
