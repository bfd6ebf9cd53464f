package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estuary/flow-sub001/internal/catalog"
)

func TestEditDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "ab", 2},
		{"acme/orders", "acme/orders", 0},
		{"kitten", "sitting", 3},
		{"acme/orders", "acme/ordesr", 1},
		{"acme/orders", "acme/order", 1},
		{"ca", "abc", 3},
		{"héllo", "hello", 1},
	}

	for _, tt := range tests {
		t.Run(tt.a+"|"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, editDistance(tt.a, tt.b))
			assert.Equal(t, tt.want, editDistance(tt.b, tt.a))
		})
	}
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		token     bool
		wantKind  Kind
		unmatched string
	}{
		{name: "hierarchical", input: "acme/orders"},
		{name: "unicode", input: "Ünïcode-1.0_x/v2"},
		{name: "empty", input: "", wantKind: NameEmpty},
		{name: "space", input: "acme orders", wantKind: NameRegex, unmatched: `" orders"`},
		{name: "leading slash", input: "/acme", wantKind: NameRegex, unmatched: `"/"`},
		{name: "trailing slash", input: "acme/", wantKind: NameRegex, unmatched: `"/"`},
		{name: "only symbols", input: "$$", wantKind: NameRegex, unmatched: `"$$"`},
		{name: "token", input: "from-orders", token: true},
		{name: "token with slash", input: "from/orders", token: true, wantKind: NameRegex, unmatched: `"/orders"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			re := catalogNameRe
			if tt.token {
				re = tokenNameRe
			}
			v := &validator{}
			ok := v.validateName("file:///flow.yaml#/x", "collection", tt.input, re)

			if tt.wantKind == "" {
				assert.True(t, ok)
				assert.Empty(t, v.errs.list)
				return
			}
			assert.False(t, ok)
			require.Len(t, v.errs.list, 1)
			assert.Equal(t, tt.wantKind, v.errs.list[0].Kind)
			if tt.unmatched != "" {
				assert.Contains(t, v.errs.list[0].Message, tt.unmatched)
			}
		})
	}
}

func TestValidateCollation(t *testing.T) {
	const (
		a catalog.Scope = "file:///a.yaml#/collections/x"
		b catalog.Scope = "file:///b.yaml#/collections/x"
		c catalog.Scope = "file:///c.yaml#/collections/x"
	)

	tests := []struct {
		name       string
		names      []namedScope
		wantKinds  []Kind
		wantScopes []catalog.Scope
	}{
		{
			name:  "distinct",
			names: []namedScope{{"acme/orders", a}, {"acme/ordersv2", b}, {"acme/customers", c}},
		},
		{
			name:       "differ only by case",
			names:      []namedScope{{"ACME/orders", b}, {"acme/Orders", a}},
			wantKinds:  []Kind{Duplicate},
			wantScopes: []catalog.Scope{a},
		},
		{
			name:       "differ only by width",
			names:      []namedScope{{"acme", a}, {"ａｃｍｅ", b}},
			wantKinds:  []Kind{Duplicate},
			wantScopes: []catalog.Scope{a},
		},
		{
			name:       "every ancestor is a prefix",
			names:      []namedScope{{"acme/orders/v1", c}, {"acme", a}, {"acme/orders", b}},
			wantKinds:  []Kind{Prefix, Prefix, Prefix},
			wantScopes: []catalog.Scope{a, a, b},
		},
		{
			name:       "prefix differs by case",
			names:      []namedScope{{"Acme", a}, {"acme/orders", b}},
			wantKinds:  []Kind{Prefix},
			wantScopes: []catalog.Scope{a},
		},
		{
			name:  "prefix without separator",
			names: []namedScope{{"acme", a}, {"acmeorders", b}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &validator{}
			v.validateCollation("collection", tt.names)

			var kinds []Kind
			var scopes []catalog.Scope
			for _, e := range v.errs.list {
				kinds = append(kinds, e.Kind)
				scopes = append(scopes, e.Scope)
			}
			assert.Equal(t, tt.wantKinds, kinds)
			assert.Equal(t, tt.wantScopes, scopes)
		})
	}
}
