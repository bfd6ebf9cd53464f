// Package driver defines the capability through which materialization endpoints
// report their field constraints, along with in-memory and HTTP implementations.
package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/estuary/flow-sub001/internal/catalog"
)

// ConstraintType is an endpoint's requirement on one candidate field.
type ConstraintType string

// Constraint types, ordered from most to least demanding.
const (
	FieldRequired       ConstraintType = "FIELD_REQUIRED"
	LocationRequired    ConstraintType = "LOCATION_REQUIRED"
	LocationRecommended ConstraintType = "LOCATION_RECOMMENDED"
	FieldOptional       ConstraintType = "FIELD_OPTIONAL"
	FieldForbidden      ConstraintType = "FIELD_FORBIDDEN"
	Unsatisfiable       ConstraintType = "UNSATISFIABLE"
)

// Valid reports whether t is a known constraint type.
func (t ConstraintType) Valid() bool {
	switch t {
	case FieldRequired, LocationRequired, LocationRecommended,
		FieldOptional, FieldForbidden, Unsatisfiable:
		return true
	}
	return false
}

// Constraint is the endpoint's requirement on a field, with a human-readable reason.
type Constraint struct {
	Type   ConstraintType `json:"type"`
	Reason string         `json:"reason"`
}

// ValidateRequest asks an endpoint to constrain the fields of a collection.
type ValidateRequest struct {
	Materialization string                 `json:"materialization"`
	Collection      catalog.CollectionSpec `json:"collection"`
	// FieldConfig maps included field names to their JSON-encoded configuration.
	FieldConfig map[string]string `json:"field_config,omitempty"`
}

// ValidateResponse holds an endpoint's constraint for each candidate field.
type ValidateResponse struct {
	Constraints map[string]Constraint `json:"constraints"`
}

// Drivers validates materializations against their endpoints.
// Implementations must be safe for concurrent use.
type Drivers interface {
	ValidateMaterialization(ctx context.Context, endpointType catalog.EndpointType, endpointConfig json.RawMessage, req *ValidateRequest) (*ValidateResponse, error)
}

// Recommend returns the constraints of an endpoint which requires the collection
// key and document root, and recommends every other location.
// Static answers with these constraints when it has no canned response.
func Recommend(spec *catalog.CollectionSpec) *ValidateResponse {
	keys := make(map[string]bool, len(spec.KeyPtrs))
	for _, ptr := range spec.KeyPtrs {
		keys[ptr] = true
	}

	resp := &ValidateResponse{Constraints: make(map[string]Constraint, len(spec.Projections))}
	for _, proj := range spec.Projections {
		switch {
		case keys[proj.Ptr]:
			resp.Constraints[proj.Field] = Constraint{Type: LocationRequired, Reason: "primary key locations are required"}
		case proj.Ptr == "":
			resp.Constraints[proj.Field] = Constraint{Type: LocationRequired, Reason: "the root document is required"}
		case isObjectOrArray(proj.Inference.Types):
			resp.Constraints[proj.Field] = Constraint{Type: FieldOptional, Reason: "nested locations are stored within the root document"}
		default:
			resp.Constraints[proj.Field] = Constraint{Type: LocationRecommended, Reason: "scalar locations are materialized as columns"}
		}
	}
	return resp
}

func isObjectOrArray(types []string) bool {
	for _, t := range types {
		if t == "object" || t == "array" {
			return true
		}
	}
	return false
}

// Router dispatches to a Drivers implementation by endpoint type.
type Router struct {
	routes   map[catalog.EndpointType]Drivers
	fallback Drivers
}

// NewRouter returns a Router with no routes. A nil fallback fails unrouted endpoint types.
func NewRouter(fallback Drivers) *Router {
	return &Router{routes: make(map[catalog.EndpointType]Drivers), fallback: fallback}
}

// Handle routes an endpoint type to d.
func (r *Router) Handle(t catalog.EndpointType, d Drivers) {
	r.routes[t] = d
}

// Routes returns the routed endpoint types, sorted.
func (r *Router) Routes() []catalog.EndpointType {
	out := make([]catalog.EndpointType, 0, len(r.routes))
	for t := range r.routes {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ValidateMaterialization implements Drivers.
func (r *Router) ValidateMaterialization(ctx context.Context, endpointType catalog.EndpointType, endpointConfig json.RawMessage, req *ValidateRequest) (*ValidateResponse, error) {
	d, ok := r.routes[endpointType]
	if !ok {
		d = r.fallback
	}
	if d == nil {
		return nil, fmt.Errorf("no driver is configured for endpoint type %q", endpointType)
	}
	return d.ValidateMaterialization(ctx, endpointType, endpointConfig, req)
}
