package driver

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estuary/flow-sub001/internal/catalog"
)

func ordersSpec() catalog.CollectionSpec {
	return catalog.CollectionSpec{
		Name:    "acme/orders",
		KeyPtrs: []string{"/id"},
		Projections: []catalog.ProjectionSpec{
			{Field: "flow_document", Ptr: "", Inference: catalog.Inference{Types: []string{"object"}}},
			{Field: "customer", Ptr: "/customer", Inference: catalog.Inference{Types: []string{"object"}}},
			{Field: "id", Ptr: "/id", IsPrimaryKey: true, Inference: catalog.Inference{Types: []string{"string"}}},
			{Field: "total", Ptr: "/total", Inference: catalog.Inference{Types: []string{"fractional", "integer"}}},
		},
	}
}

func TestRecommend(t *testing.T) {
	spec := ordersSpec()
	resp := Recommend(&spec)

	assert.Equal(t, map[string]ConstraintType{
		"flow_document": LocationRequired,
		"customer":      FieldOptional,
		"id":            LocationRequired,
		"total":         LocationRecommended,
	}, constraintTypes(resp))
}

func TestStatic(t *testing.T) {
	canned := &ValidateResponse{Constraints: map[string]Constraint{"id": {Type: FieldRequired}}}
	failure := errors.New("connection refused")

	s := &Static{
		Responses: map[string]*ValidateResponse{"acme/canned": canned},
		Errors:    map[string]error{"acme/broken": failure},
	}
	spec := ordersSpec()
	ctx := context.Background()

	resp, err := s.ValidateMaterialization(ctx, catalog.EndpointPostgres, json.RawMessage(`{}`), &ValidateRequest{Materialization: "acme/canned", Collection: spec})
	require.NoError(t, err)
	assert.Same(t, canned, resp)

	_, err = s.ValidateMaterialization(ctx, catalog.EndpointPostgres, nil, &ValidateRequest{Materialization: "acme/broken", Collection: spec})
	assert.ErrorIs(t, err, failure)

	resp, err = s.ValidateMaterialization(ctx, catalog.EndpointSqlite, nil, &ValidateRequest{Materialization: "acme/other", Collection: spec})
	require.NoError(t, err)
	assert.Len(t, resp.Constraints, 4)

	calls := s.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, catalog.EndpointSqlite, calls[2].EndpointType)
}

func TestRouter(t *testing.T) {
	pg := &Static{}
	fallback := &Static{}
	spec := ordersSpec()
	ctx := context.Background()

	r := NewRouter(fallback)
	r.Handle(catalog.EndpointPostgres, pg)
	r.Handle(catalog.EndpointBigQuery, pg)
	assert.Equal(t, []catalog.EndpointType{catalog.EndpointBigQuery, catalog.EndpointPostgres}, r.Routes())

	_, err := r.ValidateMaterialization(ctx, catalog.EndpointPostgres, nil, &ValidateRequest{Collection: spec})
	require.NoError(t, err)
	_, err = r.ValidateMaterialization(ctx, catalog.EndpointWebhook, nil, &ValidateRequest{Collection: spec})
	require.NoError(t, err)

	assert.Len(t, pg.Calls(), 1)
	assert.Len(t, fallback.Calls(), 1)

	_, err = NewRouter(nil).ValidateMaterialization(ctx, catalog.EndpointWebhook, nil, &ValidateRequest{Collection: spec})
	assert.ErrorContains(t, err, `no driver is configured for endpoint type "webhook"`)
}

func constraintTypes(resp *ValidateResponse) map[string]ConstraintType {
	out := make(map[string]ConstraintType, len(resp.Constraints))
	for field, c := range resp.Constraints {
		out[field] = c.Type
	}
	return out
}
