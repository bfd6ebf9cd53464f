package validation

import (
	"sort"

	"github.com/estuary/flow-sub001/internal/catalog"
)

// validateCapture validates the target collection and endpoint of a capture.
func (v *validator) validateCapture(c *catalog.Capture) {
	this := reference{scope: c.Scope, kind: "capture", name: c.Name}

	if _, ok := v.resolve(this, v.collections, c.Collection); ok {
		if _, derived := v.derivations.lookup(c.Collection); derived {
			v.errs.add(c.Scope, CaptureOfDerivation,
				"capture %q targets collection %q, which is a derivation; captures may only target non-derived collections",
				c.Name, c.Collection)
		}
	}

	if c.Endpoint == "" {
		return
	}
	if i, ok := v.resolve(this, v.endpoints, c.Endpoint); ok {
		if ep := &v.tables.Endpoints[i]; ep.Type != catalog.EndpointS3 {
			v.errs.add(c.Scope, CaptureEndpointType,
				"capture %q endpoint %q has type %q, but captures require an endpoint of type %q",
				c.Name, ep.Name, ep.Type, catalog.EndpointS3)
		}
	}
}

// validateCapturePulls requires that no two captures pull into the same
// collection from the same endpoint.
func (v *validator) validateCapturePulls() {
	captures := make([]*catalog.Capture, 0, len(v.tables.Captures))
	for i := range v.tables.Captures {
		if c := &v.tables.Captures[i]; c.Endpoint != "" {
			captures = append(captures, c)
		}
	}
	sort.SliceStable(captures, func(i, j int) bool {
		a, b := captures[i], captures[j]
		switch {
		case a.Collection != b.Collection:
			return a.Collection < b.Collection
		case a.Endpoint != b.Endpoint:
			return a.Endpoint < b.Endpoint
		case a.Name != b.Name:
			return a.Name < b.Name
		}
		return a.Scope < b.Scope
	})

	for i := 1; i < len(captures); i++ {
		lhs, rhs := captures[i-1], captures[i]
		if lhs.Collection == rhs.Collection && lhs.Endpoint == rhs.Endpoint {
			v.errs.add(rhs.Scope, CaptureMultiplePulls,
				"capture %q pulls into collection %q from endpoint %q, as does capture %q at %s",
				rhs.Name, rhs.Collection, rhs.Endpoint, lhs.Name, lhs.Scope)
		}
	}
}
