package validation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/estuary/flow-sub001/internal/catalog"
	"github.com/estuary/flow-sub001/internal/driver"
)

var errNoResponse = errors.New("driver returned no response")

// pendingMaterialization is a materialization awaiting its driver's constraints.
type pendingMaterialization struct {
	m        *catalog.Materialization
	endpoint *catalog.Endpoint
	config   json.RawMessage
	spec     *catalog.CollectionSpec
	req      *driver.ValidateRequest

	resp *driver.ValidateResponse
	err  error
}

// validateMaterializations validates every materialization, fans out driver
// validation calls, and reconciles each response into a field selection.
func (v *validator) validateMaterializations(ctx context.Context) {
	var pending []*pendingMaterialization
	for i := range v.tables.Materializations {
		if p, ok := v.prepareMaterialization(&v.tables.Materializations[i]); ok {
			pending = append(pending, p)
		}
	}
	if len(pending) == 0 {
		return
	}
	v.logger.Debug("validating materializations with drivers", "count", len(pending))

	// Each call owns its slot. Failures are recorded rather than returned so
	// that one failed call never cancels its siblings.
	var g errgroup.Group
	if v.cfg.Concurrency > 0 {
		g.SetLimit(v.cfg.Concurrency)
	}
	for _, p := range pending {
		g.Go(func() error {
			p.resp, p.err = v.cfg.Drivers.ValidateMaterialization(ctx, p.endpoint.Type, p.config, p.req)
			return nil
		})
	}
	_ = g.Wait()

	for _, p := range pending {
		if p.err == nil && p.resp == nil {
			p.err = errNoResponse
		}
		if p.err != nil {
			v.errs.wrap(p.m.Scope, MaterializationDriver, p.err,
				"materialization %q: driver validation failed", p.m.Name)
			continue
		}
		v.res.BuiltMaterializations = append(v.res.BuiltMaterializations, catalog.BuiltMaterialization{
			Name:           p.m.Name,
			Scope:          p.m.Scope,
			Collection:     p.spec.Name,
			EndpointType:   p.endpoint.Type,
			EndpointConfig: p.config,
			Fields:         v.selectFields(p.m, p.spec, p.resp),
		})
	}
}

// prepareMaterialization resolves a materialization and builds its driver request.
func (v *validator) prepareMaterialization(m *catalog.Materialization) (*pendingMaterialization, bool) {
	this := reference{scope: m.Scope, kind: "materialization", name: m.Name}

	ci, sourceOK := v.resolve(this, v.collections, m.Collection)
	ei, endpointOK := v.resolve(this, v.endpoints, m.Endpoint)
	if !sourceOK || !endpointOK {
		return nil, false
	}
	spec, ok := v.builtSpec(v.tables.Collections[ci].Name)
	if !ok {
		return nil, false
	}

	ep := &v.tables.Endpoints[ei]
	if ep.Type.IsStorage() {
		v.errs.add(m.Scope, MaterializationEndpointType,
			"materialization %q endpoint %q has type %q, which cannot be materialized into",
			m.Name, ep.Name, ep.Type)
		return nil, false
	}

	config, err := mergeConfig(ep.BaseConfig, m.PatchConfig)
	if err != nil {
		v.errs.wrap(m.Scope, PatchConfig, err, "failed to patch endpoint %q configuration", ep.Name)
		return nil, false
	}

	fieldsScope := m.Scope.Push("fields")
	fieldConfig := make(map[string]string, len(m.Fields.Include))
	for _, field := range sortedFields(m.Fields.Include) {
		if _, ok := spec.Projection(field); !ok {
			v.errs.add(fieldsScope.Push("include").Push(field), NoSuchProjection,
				"materialization %q includes field %q, which is not a projection of collection %q",
				m.Name, field, spec.Name)
			continue
		}
		fieldConfig[field] = compactJSON(m.Fields.Include[field])
	}
	for i, field := range m.Fields.Exclude {
		if _, ok := spec.Projection(field); !ok {
			v.errs.add(fieldsScope.Push("exclude").Push(strconv.Itoa(i)), NoSuchProjection,
				"materialization %q excludes field %q, which is not a projection of collection %q",
				m.Name, field, spec.Name)
		}
	}

	return &pendingMaterialization{
		m:        m,
		endpoint: ep,
		config:   config,
		spec:     spec,
		req: &driver.ValidateRequest{
			Materialization: m.Name,
			Collection:      *spec,
			FieldConfig:     fieldConfig,
		},
	}, true
}

// selectFields reconciles a driver's constraints with the materialization's
// field selector.
func (v *validator) selectFields(m *catalog.Materialization, spec *catalog.CollectionSpec, resp *driver.ValidateResponse) catalog.FieldSelection {
	sel := &m.Fields
	excluded := make(map[string]bool, len(sel.Exclude))
	for _, field := range sel.Exclude {
		excluded[field] = true
	}
	keyIndex := make(map[string]int, len(spec.KeyPtrs))
	for i := len(spec.KeyPtrs) - 1; i >= 0; i-- {
		keyIndex[spec.KeyPtrs[i]] = i
	}

	out := catalog.FieldSelection{
		Keys:   make([]string, len(spec.KeyPtrs)),
		Values: []string{},
	}
	selected := make(map[string]bool)

	// Location-required constraints, by pointer.
	type required struct {
		field      string
		constraint driver.Constraint
	}
	var requiredLocations []string
	requiredBy := make(map[string]required)

	constraintOf := func(field string) driver.Constraint {
		if c, ok := resp.Constraints[field]; ok {
			return c
		}
		return driver.Constraint{Type: driver.FieldForbidden, Reason: "the driver sent no constraint for this field"}
	}

	projections := make([]*catalog.ProjectionSpec, len(spec.Projections))
	for i := range spec.Projections {
		projections[i] = &spec.Projections[i]
	}
	priority := func(p *catalog.ProjectionSpec) int {
		_, included := sel.Include[p.Field]
		switch {
		case included || constraintOf(p.Field).Type == driver.FieldRequired:
			return 0
		case p.UserProvided:
			return 1
		}
		return 2
	}
	sort.SliceStable(projections, func(i, j int) bool {
		pi, pj := priority(projections[i]), priority(projections[j])
		if pi != pj {
			return pi < pj
		}
		return projections[i].Field < projections[j].Field
	})

	for _, p := range projections {
		constraint := constraintOf(p.Field)
		_, include := sel.Include[p.Field]
		exclude := excluded[p.Field]

		if constraint.Type == driver.LocationRequired {
			if _, ok := requiredBy[p.Ptr]; !ok {
				requiredLocations = append(requiredLocations, p.Ptr)
				requiredBy[p.Ptr] = required{field: p.Field, constraint: constraint}
			}
		}

		var take bool
		switch {
		case include && exclude:
			v.errs.add(m.Scope, FieldUnsatisfiable,
				"materialization %q field %q is both included and excluded by the field selector", m.Name, p.Field)
			continue
		case constraint.Type == driver.Unsatisfiable:
			v.errs.add(m.Scope, FieldUnsatisfiable,
				"materialization %q field %q is unsatisfiable: %s", m.Name, p.Field, constraint.Reason)
			continue
		case include && constraint.Type == driver.FieldForbidden:
			v.errs.add(m.Scope, FieldUnsatisfiable,
				"materialization %q field %q is included by the field selector, but the driver forbids it: %s",
				m.Name, p.Field, constraint.Reason)
			continue
		case exclude && constraint.Type == driver.FieldRequired:
			v.errs.add(m.Scope, FieldUnsatisfiable,
				"materialization %q field %q is excluded by the field selector, but the driver requires it: %s",
				m.Name, p.Field, constraint.Reason)
			continue
		case include:
			take = true
		case exclude:
			take = false
		case constraint.Type == driver.FieldRequired:
			take = true
		case constraint.Type == driver.LocationRequired:
			take = !selected[p.Ptr]
		case constraint.Type == driver.LocationRecommended:
			take = !selected[p.Ptr] && sel.Recommended
		}
		if !take {
			continue
		}

		if i, ok := keyIndex[p.Ptr]; ok && out.Keys[i] == "" {
			out.Keys[i] = p.Field
		} else if p.Ptr == "" && out.Document == "" {
			out.Document = p.Field
		} else {
			out.Values = append(out.Values, p.Field)
		}
		selected[p.Ptr] = true

		if cfg, ok := sel.Include[p.Field]; ok {
			if out.FieldConfig == nil {
				out.FieldConfig = make(map[string]string)
			}
			out.FieldConfig[p.Field] = compactJSON(cfg)
		}
	}

	for _, field := range sortedConstraintFields(resp.Constraints) {
		if _, ok := spec.Projection(field); !ok {
			v.errs.add(m.Scope, DriverUnknownField,
				"materialization %q driver sent a constraint for field %q, which is not a projection of collection %q",
				m.Name, field, spec.Name)
		}
	}
	for _, ptr := range requiredLocations {
		if selected[ptr] {
			continue
		}
		r := requiredBy[ptr]
		v.errs.add(m.Scope, LocationUnsatisfiable,
			"materialization %q driver requires location %q (field %q), but no field of it was selected: %s",
			m.Name, ptr, r.field, r.constraint.Reason)
	}
	return out
}

func sortedFields(m map[string]json.RawMessage) []string {
	out := make([]string, 0, len(m))
	for field := range m {
		out = append(out, field)
	}
	sort.Strings(out)
	return out
}

func sortedConstraintFields(m map[string]driver.Constraint) []string {
	out := make([]string, 0, len(m))
	for field := range m {
		out = append(out, field)
	}
	sort.Strings(out)
	return out
}

// compactJSON returns the compact encoding of raw, or raw itself if it cannot be compacted.
func compactJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
