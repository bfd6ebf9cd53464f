package validation

import (
	"sort"

	"github.com/estuary/flow-sub001/internal/catalog"
)

// buildProjections reconciles the declared projections of a collection with
// its schema's canonical fields.
func (v *validator) buildProjections(c *catalog.Collection, ss *schemaShape) []catalog.ProjectionSpec {
	var declared []*catalog.Projection
	for i := range v.tables.Projections {
		if p := &v.tables.Projections[i]; p.Collection == c.Name {
			declared = append(declared, p)
		}
	}
	sort.SliceStable(declared, func(i, j int) bool { return declared[i].Field < declared[j].Field })

	keys := make(map[string]bool, len(c.Key))
	for _, ptr := range c.Key {
		keys[ptr] = true
	}

	var out []catalog.ProjectionSpec
	emit := func(p *catalog.Projection) {
		located, mustExist, found := ss.shape.Locate(p.Location)
		if !found {
			v.errs.add(p.Scope, NoSuchPointer,
				"projection %q location %q is not defined by schema %s", p.Field, p.Location, ss.url)
			return
		}
		if p.Partition && v.validateName(p.Scope, "partition", p.Field, tokenNameRe) {
			v.validateKeyedLocation(p.Scope, ss.url, p.Location, located, mustExist)
		}
		out = append(out, catalog.ProjectionSpec{
			Field:          p.Field,
			Ptr:            p.Location,
			UserProvided:   p.UserProvided,
			IsPrimaryKey:   keys[p.Location],
			IsPartitionKey: p.Partition,
			Inference:      inferenceOf(located, mustExist),
		})
	}

	i, j := 0, 0
	for i < len(declared) || j < len(ss.fields) {
		switch {
		case i < len(declared) && i > 0 && declared[i].Field == declared[i-1].Field:
			// Duplicate fields are reported by collation.
			i++
		case j == len(ss.fields) || (i < len(declared) && declared[i].Field < ss.fields[j].field):
			emit(declared[i])
			i++
		case i == len(declared) || ss.fields[j].field < declared[i].Field:
			implicit := catalog.Projection{
				Scope:      c.Scope,
				Collection: c.Name,
				Field:      ss.fields[j].field,
				Location:   ss.fields[j].ptr,
			}
			v.res.ImplicitProjections = append(v.res.ImplicitProjections, implicit)
			emit(&implicit)
			j++
		default:
			if p := declared[i]; p.Location != ss.fields[j].ptr {
				v.errs.add(p.Scope, ProjectionRemapsCanonicalField,
					"projection %q maps to location %q, but %q is the canonical field of location %q",
					p.Field, p.Location, p.Field, ss.fields[j].ptr)
			} else {
				emit(p)
			}
			i++
			j++
		}
	}
	return out
}

// validateProjectionNames requires that no collection declares a field twice.
func (v *validator) validateProjectionNames() {
	declared := make([]*catalog.Projection, len(v.tables.Projections))
	for i := range v.tables.Projections {
		declared[i] = &v.tables.Projections[i]
	}
	sort.SliceStable(declared, func(i, j int) bool {
		if declared[i].Collection != declared[j].Collection {
			return declared[i].Collection < declared[j].Collection
		}
		return declared[i].Field < declared[j].Field
	})

	for i := 1; i < len(declared); i++ {
		prev, p := declared[i-1], declared[i]
		if prev.Collection == p.Collection && prev.Field == p.Field {
			v.errs.add(prev.Scope, Duplicate,
				"projection %q of collection %q is duplicated, and also defined at %s", p.Field, p.Collection, p.Scope)
		}
	}
}
