package validation

import (
	"strconv"

	"github.com/estuary/flow-sub001/internal/catalog"
	"github.com/estuary/flow-sub001/internal/schema"
)

// validateTestStep validates the fixtures of one ingest or verify step.
func (v *validator) validateTestStep(s *catalog.TestStep) {
	this := reference{scope: s.Scope, kind: "test step", name: s.Test}

	i, ok := v.resolve(this, v.collections, s.Collection)
	if !ok {
		return
	}
	c := &v.tables.Collections[i]

	switch s.Kind {
	case catalog.StepIngest:
		if _, ok := v.shapes[c.Schema]; !ok {
			break
		}
		for n, doc := range s.Documents {
			if err := v.index.Validate(c.Schema, doc); err != nil {
				v.errs.wrap(s.Scope.Push("ingest").Push(strconv.Itoa(n)), IngestDocInvalid, err,
					"test %q ingest document %d is invalid against schema %s", s.Test, n, c.Schema)
			}
		}
	case catalog.StepVerify:
		v.validateVerifyOrder(s, c)
	}

	if s.Partitions != nil {
		if spec, ok := v.builtSpec(c.Name); ok {
			v.validateSelector(s.Scope.Push("partitions"), spec, s.Partitions)
		}
	}
}

// validateVerifyOrder requires that verified documents are ordered by the collection key.
func (v *validator) validateVerifyOrder(s *catalog.TestStep, c *catalog.Collection) {
	var prev []any
	for n, raw := range s.Documents {
		doc, err := schema.DecodeValue(raw)
		if err != nil {
			v.errs.wrap(s.Scope.Push("verify").Push(strconv.Itoa(n)), TestVerifyOrder, err,
				"test %q verify document %d is not valid JSON", s.Test, n)
			return
		}

		key := make([]any, len(c.Key))
		for i, ptr := range c.Key {
			key[i], _ = schema.Query(doc, ptr)
		}
		if prev != nil && compareKeys(prev, key) > 0 {
			v.errs.add(s.Scope.Push("verify").Push(strconv.Itoa(n)), TestVerifyOrder,
				"test %q verify documents must be in collection %q key order, but document %d is less than document %d",
				s.Test, c.Name, n, n-1)
			return
		}
		prev = key
	}
}

func compareKeys(a, b []any) int {
	for i := range a {
		if c := schema.CompareValues(a[i], b[i]); c != 0 {
			return c
		}
	}
	return 0
}
