package validation

import (
	"encoding/json"
	"sort"
	"strconv"

	"github.com/estuary/flow-sub001/internal/catalog"
	"github.com/estuary/flow-sub001/internal/schema"
)

// validateSelector requires that each field of a partition selector is a
// partition of the collection, and that each selector value may be taken by it.
func (v *validator) validateSelector(scope catalog.Scope, spec *catalog.CollectionSpec, sel *catalog.PartitionSelector) {
	if sel == nil {
		return
	}
	v.validateSelectorFields(scope.Push("include"), spec, sel.Include)
	v.validateSelectorFields(scope.Push("exclude"), spec, sel.Exclude)
}

func (v *validator) validateSelectorFields(scope catalog.Scope, spec *catalog.CollectionSpec, fields map[string][]json.RawMessage) {
	names := make([]string, 0, len(fields))
	for field := range fields {
		names = append(names, field)
	}
	sort.Strings(names)

	for _, field := range names {
		fieldScope := scope.Push(field)

		proj, ok := spec.Projection(field)
		if !ok {
			v.errs.add(fieldScope, NoSuchProjection,
				"partition selector field %q is not a projection of collection %q", field, spec.Name)
			continue
		}
		if !proj.IsPartitionKey {
			v.errs.add(fieldScope, ProjectionNotPartitioned,
				"partition selector field %q of collection %q is not a partitioned projection", field, spec.Name)
			continue
		}

		allowed := schema.FromNames(proj.Inference.Types)
		for i, raw := range fields[field] {
			value, err := schema.DecodeValue(raw)
			if err != nil {
				v.errs.wrap(fieldScope.Push(strconv.Itoa(i)), SelectorTypeMismatch, err,
					"partition selector value for field %q is not valid JSON", field)
				continue
			}
			typ := schema.TypeOfValue(value)
			if typ&disallowedKeyTypes != schema.Invalid || !allowed.Overlaps(typ) {
				v.errs.add(fieldScope.Push(strconv.Itoa(i)), SelectorTypeMismatch,
					"partition selector value %s of field %q has type %s, but the projection has types %s",
					string(raw), field, typ, allowed)
			}
		}
	}
}
