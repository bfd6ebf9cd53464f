package validation

import (
	"slices"
	"sort"
	"strings"

	"github.com/estuary/flow-sub001/internal/catalog"
	"github.com/estuary/flow-sub001/internal/schema"
)

// shuffleTypes is the shuffle-key type vector of one transform.
type shuffleTypes struct {
	types     []schema.TypeSet
	transform *catalog.Transform
}

func formatTypes(types []schema.TypeSet) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = t.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// validateDerivations validates every derivation with its transforms. Transforms
// of an unknown derivation are still validated on their own.
func (v *validator) validateDerivations() {
	owned := make(map[int][]*catalog.Transform, len(v.tables.Derivations))
	var orphans []*catalog.Transform

	for i := range v.tables.Transforms {
		t := &v.tables.Transforms[i]
		this := reference{scope: t.Scope, kind: "transform", name: t.Name}
		if di, ok := v.resolve(this, v.derivations, t.Derivation); ok {
			owned[di] = append(owned[di], t)
		} else {
			orphans = append(orphans, t)
		}
	}

	for i := range v.tables.Derivations {
		v.validateDerivation(&v.tables.Derivations[i], owned[i])
	}
	for _, t := range orphans {
		v.validateTransform(t)
	}
}

// validateDerivation validates a derivation's register and each of its transforms.
func (v *validator) validateDerivation(d *catalog.Derivation, transforms []*catalog.Transform) {
	this := reference{scope: d.Scope, kind: "derivation", name: d.Collection}
	v.resolve(this, v.collections, d.Collection)

	if _, ok := v.shapes[d.RegisterSchema]; ok {
		if err := v.index.Validate(d.RegisterSchema, d.RegisterInitial); err != nil {
			v.errs.wrap(d.Scope.Push("register").Push("initial"), RegisterInitialInvalid, err,
				"register initial value is invalid against schema %s", d.RegisterSchema)
		}
	}

	var shuffles []shuffleTypes
	for _, t := range transforms {
		if types, ok := v.validateTransform(t); ok {
			shuffles = append(shuffles, shuffleTypes{types: types, transform: t})
		}
	}

	sort.SliceStable(shuffles, func(i, j int) bool {
		return slices.Compare(shuffles[i].types, shuffles[j].types) < 0
	})
	for i := 1; i < len(shuffles); i++ {
		lhs, rhs := shuffles[i-1], shuffles[i]
		if !slices.Equal(lhs.types, rhs.types) {
			v.errs.add(rhs.transform.Scope, ShuffleKeyMismatch,
				"transform %q shuffles on key types %s, but transform %q of the same derivation shuffles on %s",
				rhs.transform.Name, formatTypes(rhs.types), lhs.transform.Name, formatTypes(lhs.types))
		}
	}
}

// validateTransform validates one transform, returning its shuffle-key type
// vector if it shuffles on a valid key.
func (v *validator) validateTransform(t *catalog.Transform) ([]schema.TypeSet, bool) {
	this := reference{scope: t.Scope, kind: "transform", name: t.Name}

	if !t.UpdateLambda && !t.PublishLambda {
		v.errs.add(t.Scope, NoUpdateOrPublish,
			"transform %q must have an update or publish lambda (or both)", t.Name)
	}

	i, ok := v.resolve(this, v.collections, t.SourceCollection)
	if !ok {
		return nil, false
	}
	source := &v.tables.Collections[i]

	if t.SourcePartitions != nil {
		if spec, ok := v.builtSpec(source.Name); ok {
			v.validateSelector(t.Scope.Push("source").Push("partitions"), spec, t.SourcePartitions)
		}
	}

	if t.ShuffleLambda {
		return nil, false
	}

	schemaURL := source.Schema
	if t.SourceSchema != "" {
		if t.SourceSchema == source.Schema {
			v.errs.add(t.Scope.Push("source").Push("schema"), SourceSchemaNotDifferent,
				"transform %q source schema %s is the same as collection %q schema", t.Name, t.SourceSchema, source.Name)
		}
		schemaURL = t.SourceSchema
	}

	key := source.Key
	if t.ShuffleKey != nil {
		switch {
		case len(t.ShuffleKey) == 0:
			v.errs.add(t.Scope.Push("shuffle"), ShuffleKeyEmpty, "transform %q shuffle key cannot be empty", t.Name)
			return nil, false
		case slices.Equal(t.ShuffleKey, source.Key):
			v.errs.add(t.Scope.Push("shuffle"), ShuffleKeyNotDifferent,
				"transform %q shuffle key is the same as collection %q key", t.Name, source.Name)
		}
		key = t.ShuffleKey
	}

	ss, ok := v.shapes[schemaURL]
	if !ok {
		return nil, false
	}
	return v.validateKey(t.Scope.Push("shuffle"), ss, key)
}
