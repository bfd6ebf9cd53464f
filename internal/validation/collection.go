package validation

import (
	"encoding/json"

	"github.com/estuary/flow-sub001/internal/catalog"
)

// buildCollection builds the spec of a collection. Its store is checked even
// when its schema is unavailable, but nothing is built without one.
func (v *validator) buildCollection(c *catalog.Collection) {
	this := reference{scope: c.Scope, kind: "collection", name: c.Name}

	if len(c.Key) == 0 {
		v.errs.add(c.Scope.Push("key"), KeyEmpty, "collection %q key cannot be empty", c.Name)
	}

	stores := []string{}
	if c.StoreEndpoint != "" {
		if uri, ok := v.collectionStore(this, c); ok {
			stores = append(stores, uri)
		}
	}

	ss, ok := v.shapes[c.Schema]
	if !ok {
		return
	}
	if len(c.Key) != 0 {
		v.validateKey(c.Scope.Push("key"), ss, c.Key)
	}

	projections := v.buildProjections(c, ss)

	partitions := []string{}
	for _, p := range projections {
		if p.IsPartitionKey {
			partitions = append(partitions, p.Field)
		}
	}

	v.res.BuiltCollections = append(v.res.BuiltCollections, catalog.BuiltCollection{
		Scope: c.Scope,
		Spec: catalog.CollectionSpec{
			Name:            c.Name,
			SchemaURI:       c.Schema,
			KeyPtrs:         append([]string{}, c.Key...),
			JournalSpec:     catalog.NewJournalSpec(stores),
			Projections:     projections,
			PartitionFields: partitions,
			UUIDPtr:         catalog.UUIDPointer,
			AckJSONTemplate: json.RawMessage(catalog.AckTemplate),
		},
	})
}

// collectionStore resolves the store endpoint of a collection and returns its fragment store URI.
func (v *validator) collectionStore(this reference, c *catalog.Collection) (string, bool) {
	i, ok := v.resolve(this, v.endpoints, c.StoreEndpoint)
	if !ok {
		return "", false
	}
	ep := &v.tables.Endpoints[i]

	if !ep.Type.IsStorage() {
		v.errs.add(c.Scope, StoreEndpointType,
			"collection %q store endpoint %q has type %q, but must be %q or %q",
			c.Name, ep.Name, ep.Type, catalog.EndpointS3, catalog.EndpointGS)
		return "", false
	}

	merged, err := mergeConfig(ep.BaseConfig, c.StorePatchConfig)
	if err != nil {
		v.errs.wrap(c.Scope, PatchConfig, err, "failed to patch store endpoint %q configuration", ep.Name)
		return "", false
	}
	uri, err := storeURI(ep.Type, merged)
	if err != nil {
		v.errs.wrap(c.Scope, ParseBucketConfig, err, "failed to parse store endpoint %q bucket configuration", ep.Name)
		return "", false
	}
	return uri, true
}
