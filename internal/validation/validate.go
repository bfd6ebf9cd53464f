// Package validation resolves the references of a catalog, integrates its
// schemas, and builds collection and materialization specifications.
//
// Validation is cumulative: every problem found is recorded as an Error and
// processing continues, skipping only the checks of an entity whose
// dependencies could not be resolved.
package validation

import (
	"context"
	"log/slog"
	"time"

	"github.com/estuary/flow-sub001/internal/catalog"
	"github.com/estuary/flow-sub001/internal/dag"
	"github.com/estuary/flow-sub001/internal/driver"
	"github.com/estuary/flow-sub001/internal/schema"
)

// Config configures a validation pass.
type Config struct {
	// Drivers validates materializations against their endpoints.
	Drivers driver.Drivers
	Logger  *slog.Logger
	// Concurrency bounds in-flight driver calls. Zero is unbounded.
	Concurrency int
}

// Result holds the output tables of a validation pass.
type Result struct {
	BuiltCollections      []catalog.BuiltCollection
	BuiltMaterializations []catalog.BuiltMaterialization
	// ImplicitProjections are projections discovered from schemas, which the catalog never declared.
	ImplicitProjections []catalog.Projection
	Inferences          []catalog.InferenceRow
	Errors              []*Error
}

// HasErrors reports whether any diagnostic is an error rather than a warning.
func (r *Result) HasErrors() bool {
	for _, e := range r.Errors {
		if e.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Count returns the number of errors and of warnings.
func (r *Result) Count() (errs, warnings int) {
	for _, e := range r.Errors {
		if e.Severity == SeverityWarning {
			warnings++
		} else {
			errs++
		}
	}
	return errs, warnings
}

// validator holds the state of one validation pass.
type validator struct {
	cfg    Config
	logger *slog.Logger
	tables *catalog.Tables

	graph  *dag.ImportGraph
	index  *schema.Index
	shapes map[string]*schemaShape
	errs   Errors
	res    *Result

	collections *referents
	derivations *referents
	endpoints   *referents
	// built indexes res.BuiltCollections by collection name.
	built map[string]int
}

// Validate validates tables and builds their specifications.
// Tables are never modified. Identical tables always produce identical results.
func Validate(ctx context.Context, cfg Config, tables *catalog.Tables) *Result {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Drivers == nil {
		cfg.Drivers = driver.NewRouter(nil)
	}

	v := &validator{
		cfg:    cfg,
		logger: cfg.Logger,
		tables: tables,
		graph:  dag.NewImportGraph(),
		index:  schema.NewIndex(),
		shapes: make(map[string]*schemaShape),
		res:    &Result{},
		built:  make(map[string]int),
	}
	start := time.Now()

	for _, imp := range tables.Imports {
		v.graph.AddEdge(imp.FromResource, imp.ToResource)
	}
	v.logger.Debug("import graph built", "edges", v.graph.EdgeCount())
	v.collections = newReferents("collection", len(tables.Collections), func(i int) (string, catalog.Scope) {
		return tables.Collections[i].Name, tables.Collections[i].Scope
	})
	v.derivations = newReferents("derivation", len(tables.Derivations), func(i int) (string, catalog.Scope) {
		return tables.Derivations[i].Collection, tables.Derivations[i].Scope
	})
	v.endpoints = newReferents("endpoint", len(tables.Endpoints), func(i int) (string, catalog.Scope) {
		return tables.Endpoints[i].Name, tables.Endpoints[i].Scope
	})

	v.logger.Debug("validating names")
	v.validateNames()
	v.validateProjectionNames()

	v.logger.Debug("building schema shapes", "schemas", len(tables.Schemas))
	v.indexSchemas()
	v.buildShapes()

	v.logger.Debug("building collections", "collections", len(tables.Collections))
	for i := range tables.Collections {
		v.buildCollection(&tables.Collections[i])
	}
	for i, bc := range v.res.BuiltCollections {
		if _, ok := v.built[bc.Spec.Name]; !ok {
			v.built[bc.Spec.Name] = i
		}
	}

	v.logger.Debug("validating derivations", "derivations", len(tables.Derivations))
	v.validateDerivations()

	v.logger.Debug("validating captures", "captures", len(tables.Captures))
	for i := range tables.Captures {
		v.validateCapture(&tables.Captures[i])
	}
	v.validateCapturePulls()

	v.validateMaterializations(ctx)

	v.logger.Debug("validating test steps", "steps", len(tables.TestSteps))
	for i := range tables.TestSteps {
		v.validateTestStep(&tables.TestSteps[i])
	}

	v.res.Errors = v.errs.list
	errCount, warnCount := v.res.Count()
	v.logger.Info("catalog validated",
		slog.Int("collections", len(v.res.BuiltCollections)),
		slog.Int("materializations", len(v.res.BuiltMaterializations)),
		slog.Int("errors", errCount),
		slog.Int("warnings", warnCount),
		slog.Duration("elapsed", time.Since(start)))

	return v.res
}

// builtSpec returns the built spec of a collection.
func (v *validator) builtSpec(name string) (*catalog.CollectionSpec, bool) {
	i, ok := v.built[name]
	if !ok {
		return nil, false
	}
	return &v.res.BuiltCollections[i].Spec, true
}
