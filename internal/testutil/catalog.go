package testutil

import (
	"encoding/json"

	"github.com/estuary/flow-sub001/internal/catalog"
)

// Fixture scopes and URLs.
const (
	CatalogResource = "file:///catalog/flow.yaml"
	OrderSchemaURL  = "file:///catalog/schemas/order.json"
	OrderSchema     = `{
		"type": "object",
		"properties": {
			"id": {"type": "string", "title": "Order ID"},
			"region": {"type": "string"},
			"qty": {"type": "integer"},
			"total": {"type": "number"},
			"items": {"type": "array", "items": {"type": "string"}},
			"meta": {"type": "object", "properties": {"note": {"type": "string", "maxLength": 140}}}
		},
		"required": ["id", "region", "qty"]
	}`
)

// Scope returns a scope of the fixture catalog at a JSON-pointer path of tokens.
func Scope(tokens ...string) catalog.Scope {
	s := catalog.Scope(CatalogResource)
	for _, tok := range tokens {
		s = s.Push(tok)
	}
	return s
}

// OrdersCatalog returns a valid catalog of one stored, partitioned collection
// "acme/orders" with storage and postgres endpoints.
func OrdersCatalog() *catalog.Tables {
	return &catalog.Tables{
		Schemas: []catalog.SchemaDoc{
			{URL: OrderSchemaURL, Doc: json.RawMessage(OrderSchema)},
		},
		Endpoints: []catalog.Endpoint{
			{
				Scope:      Scope("endpoints", "acme/store"),
				Name:       "acme/store",
				Type:       catalog.EndpointS3,
				BaseConfig: json.RawMessage(`{"bucket": "acme-data", "prefix": "flow/", "region": "us-east-1"}`),
			},
			{
				Scope:      Scope("endpoints", "acme/pg"),
				Name:       "acme/pg",
				Type:       catalog.EndpointPostgres,
				BaseConfig: json.RawMessage(`{"host": "db", "port": 5432}`),
			},
		},
		Collections: []catalog.Collection{
			{
				Scope:         Scope("collections", "acme/orders"),
				Name:          "acme/orders",
				Schema:        OrderSchemaURL,
				Key:           []string{"/id"},
				StoreEndpoint: "acme/store",
			},
		},
		Projections: []catalog.Projection{
			{
				Scope:        Scope("collections", "acme/orders", "projections", "region"),
				Collection:   "acme/orders",
				Field:        "region",
				Location:     "/region",
				Partition:    true,
				UserProvided: true,
			},
		},
	}
}
