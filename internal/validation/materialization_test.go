package validation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estuary/flow-sub001/internal/catalog"
	"github.com/estuary/flow-sub001/internal/driver"
)

// selectionSpec has a composite key (/a, /b), a document root, and two values.
func selectionSpec() *catalog.CollectionSpec {
	return &catalog.CollectionSpec{
		Name:    "acme/things",
		KeyPtrs: []string{"/a", "/b"},
		Projections: []catalog.ProjectionSpec{
			{Field: "a", Ptr: "/a", IsPrimaryKey: true},
			{Field: "a_alias", Ptr: "/a", UserProvided: true},
			{Field: "b", Ptr: "/b", IsPrimaryKey: true},
			{Field: "c", Ptr: "/c"},
			{Field: "d", Ptr: "/d"},
			{Field: "flow_document", Ptr: ""},
		},
	}
}

func constraints(types map[string]driver.ConstraintType) *driver.ValidateResponse {
	resp := &driver.ValidateResponse{Constraints: make(map[string]driver.Constraint, len(types))}
	for field, t := range types {
		resp.Constraints[field] = driver.Constraint{Type: t, Reason: "because"}
	}
	return resp
}

func TestSelectFields_DecisionTable(t *testing.T) {
	base := map[string]driver.ConstraintType{
		"a":             driver.LocationRequired,
		"a_alias":       driver.FieldOptional,
		"b":             driver.LocationRequired,
		"flow_document": driver.LocationRequired,
	}

	tests := []struct {
		name       string
		include    []string
		exclude    []string
		constraint driver.ConstraintType
		recommend  bool
		wantValue  bool
		wantKind   Kind
	}{
		{name: "included and excluded", include: []string{"c"}, exclude: []string{"c"}, constraint: driver.FieldOptional, wantKind: FieldUnsatisfiable},
		{name: "unsatisfiable", constraint: driver.Unsatisfiable, wantKind: FieldUnsatisfiable},
		{name: "included but forbidden", include: []string{"c"}, constraint: driver.FieldForbidden, wantKind: FieldUnsatisfiable},
		{name: "excluded but required", exclude: []string{"c"}, constraint: driver.FieldRequired, wantKind: FieldUnsatisfiable},
		{name: "included optional", include: []string{"c"}, constraint: driver.FieldOptional, wantValue: true},
		{name: "required", constraint: driver.FieldRequired, wantValue: true},
		{name: "excluded recommended", exclude: []string{"c"}, constraint: driver.LocationRecommended, recommend: true},
		{name: "forbidden", constraint: driver.FieldForbidden},
		{name: "location required", constraint: driver.LocationRequired, wantValue: true},
		{name: "recommended", constraint: driver.LocationRecommended, recommend: true, wantValue: true},
		{name: "recommended without recommendation", constraint: driver.LocationRecommended},
		{name: "optional", constraint: driver.FieldOptional},
		{name: "no constraint", constraint: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			types := map[string]driver.ConstraintType{}
			for k, c := range base {
				types[k] = c
			}
			if tt.constraint != "" {
				types["c"] = tt.constraint
			}
			m := &catalog.Materialization{
				Scope: "file:///m.yaml#/materializations/acme~1m",
				Name:  "acme/m",
				Fields: catalog.FieldSelector{
					Include:     map[string]json.RawMessage{},
					Exclude:     tt.exclude,
					Recommended: tt.recommend,
				},
			}
			for _, f := range tt.include {
				m.Fields.Include[f] = json.RawMessage(`{}`)
			}

			v := &validator{}
			fs := v.selectFields(m, selectionSpec(), constraints(types))

			assert.Equal(t, []string{"a", "b"}, fs.Keys)
			assert.Equal(t, "flow_document", fs.Document)
			if tt.wantValue {
				assert.Equal(t, []string{"c"}, fs.Values)
			} else {
				assert.Empty(t, fs.Values)
			}

			if tt.wantKind == "" {
				assert.Empty(t, v.errs.list)
			} else {
				require.Len(t, v.errs.list, 1)
				assert.Equal(t, tt.wantKind, v.errs.list[0].Kind)
				assert.Equal(t, m.Scope, v.errs.list[0].Scope)
			}
		})
	}
}

func TestSelectFields_SlotsFilledOnce(t *testing.T) {
	m := &catalog.Materialization{Name: "acme/m", Fields: catalog.FieldSelector{
		Include: map[string]json.RawMessage{"a_alias": json.RawMessage(`{"type": "text"}`)},
	}}
	resp := constraints(map[string]driver.ConstraintType{
		"a":             driver.FieldRequired,
		"a_alias":       driver.FieldOptional,
		"b":             driver.LocationRequired,
		"c":             driver.FieldOptional,
		"d":             driver.FieldOptional,
		"flow_document": driver.FieldRequired,
	})

	v := &validator{}
	fs := v.selectFields(m, selectionSpec(), resp)
	require.Empty(t, v.errs.list)

	// a, a_alias, and flow_document are walked first; a claims the key slot of /a.
	assert.Equal(t, []string{"a", "b"}, fs.Keys)
	assert.Equal(t, "flow_document", fs.Document)
	assert.Equal(t, []string{"a_alias"}, fs.Values)
	assert.Equal(t, map[string]string{"a_alias": `{"type":"text"}`}, fs.FieldConfig)
}

func TestSelectFields_LocationRequiredSatisfiedOnce(t *testing.T) {
	m := &catalog.Materialization{Name: "acme/m"}
	resp := constraints(map[string]driver.ConstraintType{
		"a":             driver.LocationRequired,
		"a_alias":       driver.LocationRequired,
		"b":             driver.LocationRequired,
		"flow_document": driver.LocationRequired,
	})

	v := &validator{}
	fs := v.selectFields(m, selectionSpec(), resp)
	require.Empty(t, v.errs.list)

	// a_alias is user-provided and walked first, claiming /a before a.
	assert.Equal(t, []string{"a_alias", "b"}, fs.Keys)
	assert.Empty(t, fs.Values)
}

func TestSelectFields_Unsatisfied(t *testing.T) {
	m := &catalog.Materialization{Name: "acme/m", Fields: catalog.FieldSelector{Exclude: []string{"b"}}}
	resp := constraints(map[string]driver.ConstraintType{
		"a":             driver.LocationRequired,
		"b":             driver.LocationRequired,
		"flow_document": driver.LocationRequired,
		"unknown":       driver.FieldOptional,
	})

	v := &validator{}
	fs := v.selectFields(m, selectionSpec(), resp)

	assert.Equal(t, []string{"a", ""}, fs.Keys)
	require.Len(t, v.errs.list, 2)
	assert.Equal(t, DriverUnknownField, v.errs.list[0].Kind)
	assert.Contains(t, v.errs.list[0].Message, `"unknown"`)
	assert.Equal(t, LocationUnsatisfiable, v.errs.list[1].Kind)
	assert.Contains(t, v.errs.list[1].Message, `"/b"`)
}
