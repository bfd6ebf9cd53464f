package schema

import (
	"encoding/json"
	"strings"
)

// TypeSet is a set of JSON types a location may take.
type TypeSet uint8

// JSON types. Numbers are split into integers and fractionals.
const (
	Array TypeSet = 1 << iota
	Boolean
	Fractional
	Integer
	Null
	Object
	String

	// Invalid is the empty set: no value is permitted.
	Invalid TypeSet = 0
	// Any permits all JSON types.
	Any = Array | Boolean | Fractional | Integer | Null | Object | String
)

var typeNames = []struct {
	t    TypeSet
	name string
}{
	{Array, "array"},
	{Boolean, "boolean"},
	{Fractional, "fractional"},
	{Integer, "integer"},
	{Null, "null"},
	{Object, "object"},
	{String, "string"},
}

// ParseType maps a JSON-schema "type" keyword value to a TypeSet.
func ParseType(name string) TypeSet {
	switch name {
	case "array":
		return Array
	case "boolean":
		return Boolean
	case "integer":
		return Integer
	case "number":
		return Integer | Fractional
	case "null":
		return Null
	case "object":
		return Object
	case "string":
		return String
	}
	return Invalid
}

// Overlaps reports whether t and other share any type.
func (t TypeSet) Overlaps(other TypeSet) bool { return t&other != 0 }

// Names returns the sorted names of types in the set.
func (t TypeSet) Names() []string {
	names := []string{}
	for _, tn := range typeNames {
		if t&tn.t != 0 {
			names = append(names, tn.name)
		}
	}
	return names
}

func (t TypeSet) String() string {
	return "[" + strings.Join(t.Names(), ", ") + "]"
}

// TypeOfValue returns the type of a decoded JSON value.
// Numbers may be json.Number or float64.
func TypeOfValue(v any) TypeSet {
	switch vv := v.(type) {
	case nil:
		return Null
	case bool:
		return Boolean
	case string:
		return String
	case []any:
		return Array
	case map[string]any:
		return Object
	case json.Number:
		if _, err := vv.Int64(); err == nil {
			return Integer
		}
		return Fractional
	case float64:
		if vv == float64(int64(vv)) {
			return Integer
		}
		return Fractional
	case int, int64:
		return Integer
	}
	return Invalid
}

// FromNames returns the TypeSet of type names as produced by Names.
func FromNames(names []string) TypeSet {
	var out TypeSet
	for _, name := range names {
		for _, tn := range typeNames {
			if tn.name == name {
				out |= tn.t
			}
		}
	}
	return out
}
