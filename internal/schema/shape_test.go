package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const orderSchema = `{
	"$defs": {
		"money": {"type": "number", "title": "Money"}
	},
	"type": "object",
	"properties": {
		"id": {"type": "string", "maxLength": 32, "format": "uuid"},
		"total": {"$ref": "#/$defs/money"},
		"customer": {
			"type": "object",
			"properties": {
				"name": {"type": "string", "description": "Full name"},
				"tier": {"type": ["string", "null"]}
			},
			"required": ["name"]
		},
		"tags": {"type": "array", "items": {"type": "string"}},
		"pair": {"type": "array", "prefixItems": [{"type": "integer"}, {"type": "boolean"}], "minItems": 1},
		"attrs": {"type": "object", "additionalProperties": {"type": "integer"}}
	},
	"required": ["id", "customer", "pair"]
}`

func newTestIndex(t *testing.T, docs map[string]string) *Index {
	t.Helper()
	idx := NewIndex()
	for u, doc := range docs {
		require.NoError(t, idx.Add(u, []byte(doc)))
	}
	return idx
}

func TestInfer_Locate(t *testing.T) {
	idx := newTestIndex(t, map[string]string{"file:///order.schema.json": orderSchema})

	shape, ok := Infer(idx, "file:///order.schema.json")
	require.True(t, ok)

	tests := []struct {
		name      string
		ptr       string
		wantFound bool
		wantExist bool
		wantType  TypeSet
	}{
		{"root", "", true, true, Object},
		{"required string", "/id", true, true, String},
		{"optional ref", "/total", true, false, Integer | Fractional},
		{"nested required", "/customer/name", true, true, String},
		{"nested optional", "/customer/tier", true, false, String | Null},
		{"array items", "/tags/3", true, false, String},
		{"tuple within minItems", "/pair/0", true, true, Integer},
		{"tuple beyond minItems", "/pair/1", true, false, Boolean},
		{"additional properties", "/attrs/anything", true, false, Integer},
		{"undeclared property", "/missing", false, false, Invalid},
		{"beyond tuple", "/pair/2", false, false, Invalid},
		{"malformed pointer", "id", false, false, Invalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			located, exists, found := shape.Locate(tt.ptr)
			assert.Equal(t, tt.wantFound, found)
			if !found {
				return
			}
			assert.Equal(t, tt.wantExist, exists)
			assert.Equal(t, tt.wantType, located.Type)
		})
	}
}

func TestInfer_Facets(t *testing.T) {
	idx := newTestIndex(t, map[string]string{"file:///order.schema.json": orderSchema})
	shape, ok := Infer(idx, "file:///order.schema.json")
	require.True(t, ok)

	id, _, _ := shape.Locate("/id")
	require.NotNil(t, id.String.MaxLength)
	assert.Equal(t, 32, *id.String.MaxLength)
	assert.Equal(t, "uuid", id.String.Format)

	total, _, _ := shape.Locate("/total")
	assert.Equal(t, "Money", total.Title)

	name, _, _ := shape.Locate("/customer/name")
	assert.Equal(t, "Full name", name.Description)
}

func TestInfer_Missing(t *testing.T) {
	idx := newTestIndex(t, map[string]string{"file:///a.json": `true`})

	_, ok := Infer(idx, "file:///b.json")
	assert.False(t, ok)

	_, ok = Infer(idx, "file:///a.json#/definitions/nope")
	assert.False(t, ok)
}

func TestInfer_Fragment(t *testing.T) {
	idx := newTestIndex(t, map[string]string{"file:///a.json": `{
		"definitions": {"thing": {"type": "object", "properties": {"k": {"type": "integer"}}, "required": ["k"]}}
	}`})

	shape, ok := Infer(idx, "file:///a.json#/definitions/thing")
	require.True(t, ok)

	k, exists, found := shape.Locate("/k")
	require.True(t, found)
	assert.True(t, exists)
	assert.Equal(t, Integer, k.Type)
}

func TestInfer_AnyOfUnion(t *testing.T) {
	idx := newTestIndex(t, map[string]string{"file:///u.json": `{
		"anyOf": [
			{"type": "object", "properties": {"a": {"type": "string"}, "b": {"type": "integer"}}, "required": ["a", "b"]},
			{"type": "object", "properties": {"a": {"type": "integer"}}, "required": ["a"]}
		]
	}`})

	shape, ok := Infer(idx, "file:///u.json")
	require.True(t, ok)

	a, exists, found := shape.Locate("/a")
	require.True(t, found)
	assert.True(t, exists, "a is required by every alternative")
	assert.Equal(t, String|Integer, a.Type)

	_, exists, found = shape.Locate("/b")
	require.True(t, found)
	assert.False(t, exists, "b is required by only one alternative")
}

func TestInfer_AllOfIntersect(t *testing.T) {
	idx := newTestIndex(t, map[string]string{"file:///i.json": `{
		"allOf": [
			{"type": "object", "properties": {"a": {"type": ["string", "integer"]}}},
			{"type": "object", "properties": {"a": {"type": "integer"}}, "required": ["a"]}
		]
	}`})

	shape, ok := Infer(idx, "file:///i.json")
	require.True(t, ok)

	a, exists, found := shape.Locate("/a")
	require.True(t, found)
	assert.True(t, exists)
	assert.Equal(t, Integer, a.Type)
}

func TestInfer_RecursiveRef(t *testing.T) {
	idx := newTestIndex(t, map[string]string{"file:///tree.json": `{
		"type": "object",
		"properties": {
			"value": {"type": "integer"},
			"child": {"$ref": "#"}
		},
		"required": ["value"]
	}`})

	shape, ok := Infer(idx, "file:///tree.json")
	require.True(t, ok)

	v, _, found := shape.Locate("/child/value")
	require.True(t, found)
	assert.Equal(t, Integer, v.Type)
}

func TestShape_Locations(t *testing.T) {
	idx := newTestIndex(t, map[string]string{"file:///order.schema.json": orderSchema})
	shape, ok := Infer(idx, "file:///order.schema.json")
	require.True(t, ok)

	var ptrs []string
	for _, loc := range shape.Locations() {
		ptrs = append(ptrs, loc.Ptr)
	}
	assert.Equal(t, []string{
		"",
		"/attrs",
		"/customer",
		"/customer/name",
		"/customer/tier",
		"/id",
		"/pair",
		"/pair/0",
		"/pair/1",
		"/tags",
		"/total",
	}, ptrs)
}

func TestShape_Inspect(t *testing.T) {
	idx := newTestIndex(t, map[string]string{"file:///bad.json": `{
		"type": "object",
		"properties": {
			"never": false,
			"blob": {"type": "integer", "contentEncoding": "base64"}
		},
		"required": ["never"]
	}`})
	shape, ok := Infer(idx, "file:///bad.json")
	require.True(t, ok)

	errs := shape.Inspect()
	require.Len(t, errs, 2)
	assert.Equal(t, "/blob", errs[0].Ptr)
	assert.Contains(t, errs[0].Error(), "only applicable to strings")
	assert.Equal(t, "/never", errs[1].Ptr)
	assert.Contains(t, errs[1].Error(), "permits no value")
}
