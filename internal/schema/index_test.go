package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndex_AddRejectsInvalid(t *testing.T) {
	idx := NewIndex()

	err := idx.Add("file:///a.json", []byte(`{not json`))
	assert.Error(t, err)

	err = idx.Add("file:///b.json", []byte(`42`))
	assert.Error(t, err)

	require.NoError(t, idx.Add("file:///c.json", []byte(`{}`)))
	err = idx.Add("file:///c.json", []byte(`{}`))
	assert.ErrorContains(t, err, "more than once")

	assert.Equal(t, 1, idx.Len())
}

func TestIndex_VerifyReferences(t *testing.T) {
	idx := newTestIndex(t, map[string]string{
		"file:///schemas/a.json": `{
			"properties": {
				"ok": {"$ref": "b.json#/$defs/thing"},
				"local": {"$ref": "#/$defs/local"},
				"missing": {"$ref": "c.json"},
				"enumData": {"enum": [{"$ref": "not-a-schema"}]}
			},
			"$defs": {"local": {"type": "string"}}
		}`,
		"file:///schemas/b.json": `{"$defs": {"thing": {"type": "integer"}, "dangling": {"$ref": "#/$defs/nope"}}}`,
	})

	errs := idx.VerifyReferences()
	require.Len(t, errs, 2)

	assert.Equal(t, "file:///schemas/a.json", errs[0].Document)
	assert.Equal(t, "/properties/missing", errs[0].Location)
	assert.Equal(t, "file:///schemas/c.json", errs[0].Resolved)

	assert.Equal(t, "file:///schemas/b.json", errs[1].Document)
	assert.Equal(t, "/$defs/dangling", errs[1].Location)
	assert.Contains(t, errs[1].Error(), "was not found in the catalog")
}

func TestIndex_Validate(t *testing.T) {
	idx := newTestIndex(t, map[string]string{"file:///order.schema.json": orderSchema})

	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{"valid", `{"id": "a", "customer": {"name": "x"}, "pair": [1]}`, false},
		{"missing required", `{"customer": {"name": "x"}, "pair": [1]}`, true},
		{"wrong type", `{"id": 1, "customer": {"name": "x"}, "pair": [1]}`, true},
		{"not json", `{`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := idx.Validate("file:///order.schema.json", []byte(tt.doc))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIndex_ValidateFragment(t *testing.T) {
	idx := newTestIndex(t, map[string]string{"file:///reg.json": `{"$defs": {"reg": {"type": "integer", "minimum": 0}}}`})

	assert.NoError(t, idx.Validate("file:///reg.json#/$defs/reg", []byte(`3`)))
	assert.Error(t, idx.Validate("file:///reg.json#/$defs/reg", []byte(`-1`)))
}

func TestIndex_FetchAnchor(t *testing.T) {
	idx := newTestIndex(t, map[string]string{"file:///a.json": `{"$defs": {"x": {"$anchor": "thing", "type": "string"}}}`})

	node, ok := idx.Fetch("file:///a.json#thing")
	require.True(t, ok)
	assert.Equal(t, "string", node.(map[string]any)["type"])
}

func TestTypeSet(t *testing.T) {
	assert.Equal(t, []string{"fractional", "integer"}, ParseType("number").Names())
	assert.Equal(t, "[null, string]", (String | Null).String())
	assert.Equal(t, "[]", Invalid.String())
	assert.True(t, Any.Overlaps(Object))
	assert.False(t, String.Overlaps(Integer|Fractional))

	assert.Equal(t, Integer, TypeOfValue(json.Number("12")))
	assert.Equal(t, Fractional, TypeOfValue(json.Number("1.5")))
	assert.Equal(t, Null, TypeOfValue(nil))
	assert.Equal(t, Object, TypeOfValue(map[string]any{}))
}

func TestPointerTokens(t *testing.T) {
	tokens, err := PointerTokens("/a~1b/c~0d/0")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/b", "c~d", "0"}, tokens)

	assert.Equal(t, "/a~1b/c~0d", PushToken(PushToken("", "a/b"), "c~d"))

	_, err = PointerTokens("nope")
	assert.Error(t, err)
}

func TestQuery(t *testing.T) {
	doc, err := DecodeValue([]byte(`{"a": {"b": [10, {"c": true}]}}`))
	require.NoError(t, err)

	v, ok := Query(doc, "/a/b/1/c")
	require.True(t, ok)
	assert.Equal(t, true, v)

	_, ok = Query(doc, "/a/b/5")
	assert.False(t, ok)

	_, ok = Query(doc, "/a/x")
	assert.False(t, ok)
}

func TestCompareValues(t *testing.T) {
	decode := func(s string) any {
		v, err := DecodeValue([]byte(s))
		require.NoError(t, err)
		return v
	}

	tests := []struct {
		a, b string
		want int
	}{
		{`null`, `false`, -1},
		{`false`, `true`, -1},
		{`true`, `1`, -1},
		{`2`, `10`, -1},
		{`1.5`, `1`, 1},
		{`10`, `10.0`, 0},
		{`"a"`, `"b"`, -1},
		{`"z"`, `[]`, -1},
		{`[1, 2]`, `[1, 3]`, -1},
		{`[1]`, `[1, 0]`, -1},
		{`{"a": 1}`, `{"a": 1}`, 0},
		{`{"a": 1}`, `{"b": 0}`, -1},
	}

	for _, tt := range tests {
		t.Run(tt.a+" vs "+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, CompareValues(decode(tt.a), decode(tt.b)))
			assert.Equal(t, -tt.want, CompareValues(decode(tt.b), decode(tt.a)))
		})
	}
}
