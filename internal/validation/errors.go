package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/estuary/flow-sub001/internal/catalog"
)

// Sentinel errors for categories of catalog diagnostics.
var (
	// ErrNaming indicates an empty or malformed name.
	ErrNaming = errors.New("catalog: invalid name")
	// ErrCollation indicates colliding names within a namespace.
	ErrCollation = errors.New("catalog: name collision")
	// ErrReference indicates an unresolved or unreachable reference.
	ErrReference = errors.New("catalog: invalid reference")
	// ErrSchema indicates a schema or key error.
	ErrSchema = errors.New("catalog: schema error")
	// ErrProjection indicates a missing or misused projection.
	ErrProjection = errors.New("catalog: projection error")
	// ErrEndpoint indicates an endpoint of the wrong type.
	ErrEndpoint = errors.New("catalog: endpoint error")
	// ErrMaterialization indicates a failure to reconcile a materialization's fields.
	ErrMaterialization = errors.New("catalog: materialization error")
	// ErrDocument indicates an invalid document, fixture, or configuration.
	ErrDocument = errors.New("catalog: invalid document")
)

// Kind identifies a specific diagnostic.
type Kind string

// Diagnostic kinds.
const (
	NameEmpty Kind = "NameEmpty"
	NameRegex Kind = "NameRegex"

	Duplicate Kind = "Duplicate"
	Prefix    Kind = "Prefix"

	NoSuchEntity        Kind = "NoSuchEntity"
	NoSuchEntitySuggest Kind = "NoSuchEntitySuggest"
	MissingImport       Kind = "MissingImport"

	NoSuchSchema             Kind = "NoSuchSchema"
	SchemaReference          Kind = "SchemaReference"
	SchemaBuild              Kind = "SchemaBuild"
	ShapeInspection          Kind = "ShapeInspection"
	NoSuchPointer            Kind = "NoSuchPointer"
	KeyEmpty                 Kind = "KeyEmpty"
	KeyMayNotExist           Kind = "KeyMayNotExist"
	KeyWrongType             Kind = "KeyWrongType"
	ShuffleKeyEmpty          Kind = "ShuffleKeyEmpty"
	ShuffleKeyMismatch       Kind = "ShuffleKeyMismatch"
	ShuffleKeyNotDifferent   Kind = "ShuffleKeyNotDifferent"
	SourceSchemaNotDifferent Kind = "SourceSchemaNotDifferent"

	ProjectionRemapsCanonicalField Kind = "ProjectionRemapsCanonicalField"
	NoSuchProjection               Kind = "NoSuchProjection"
	ProjectionNotPartitioned       Kind = "ProjectionNotPartitioned"
	SelectorTypeMismatch           Kind = "SelectorTypeMismatch"

	StoreEndpointType           Kind = "StoreEndpointType"
	CaptureEndpointType         Kind = "CaptureEndpointType"
	MaterializationEndpointType Kind = "MaterializationEndpointType"
	CaptureOfDerivation         Kind = "CaptureOfDerivation"
	CaptureMultiplePulls        Kind = "CaptureMultiplePulls"
	NoUpdateOrPublish           Kind = "NoUpdateOrPublish"

	MaterializationDriver Kind = "MaterializationDriver"
	FieldUnsatisfiable    Kind = "FieldUnsatisfiable"
	LocationUnsatisfiable Kind = "LocationUnsatisfiable"
	DriverUnknownField    Kind = "DriverUnknownField"

	RegisterInitialInvalid Kind = "RegisterInitialInvalid"
	IngestDocInvalid       Kind = "IngestDocInvalid"
	TestVerifyOrder        Kind = "TestVerifyOrder"
	ParseBucketConfig      Kind = "ParseBucketConfig"
	PatchConfig            Kind = "PatchConfig"
)

// Category returns the sentinel error of the kind's category.
func (k Kind) Category() error {
	switch k {
	case NameEmpty, NameRegex:
		return ErrNaming
	case Duplicate, Prefix:
		return ErrCollation
	case NoSuchEntity, NoSuchEntitySuggest, MissingImport:
		return ErrReference
	case NoSuchSchema, SchemaReference, SchemaBuild, ShapeInspection, NoSuchPointer,
		KeyEmpty, KeyMayNotExist, KeyWrongType,
		ShuffleKeyEmpty, ShuffleKeyMismatch, ShuffleKeyNotDifferent, SourceSchemaNotDifferent:
		return ErrSchema
	case ProjectionRemapsCanonicalField, NoSuchProjection, ProjectionNotPartitioned, SelectorTypeMismatch:
		return ErrProjection
	case StoreEndpointType, CaptureEndpointType, MaterializationEndpointType,
		CaptureOfDerivation, CaptureMultiplePulls, NoUpdateOrPublish:
		return ErrEndpoint
	case MaterializationDriver, FieldUnsatisfiable, LocationUnsatisfiable, DriverUnknownField:
		return ErrMaterialization
	}
	return ErrDocument
}

// Severity of a diagnostic.
type Severity string

// Severities.
const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

func (k Kind) severity() Severity {
	if k == ShuffleKeyNotDifferent || k == SourceSchemaNotDifferent {
		return SeverityWarning
	}
	return SeverityError
}

// Error is a catalog diagnostic attributed to the scope which caused it.
type Error struct {
	Scope    catalog.Scope
	Kind     Kind
	Severity Severity
	Message  string
	Cause    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Scope))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the sentinel of the error's category.
func (e *Error) Is(target error) bool {
	return target == e.Kind.Category()
}

// Errors is an append-only sink of diagnostics for one validation pass.
type Errors struct {
	list []*Error
}

func (s *Errors) add(scope catalog.Scope, kind Kind, format string, args ...any) {
	s.wrap(scope, kind, nil, format, args...)
}

func (s *Errors) wrap(scope catalog.Scope, kind Kind, cause error, format string, args ...any) {
	s.list = append(s.list, &Error{
		Scope:    scope,
		Kind:     kind,
		Severity: kind.severity(),
		Message:  fmt.Sprintf(format, args...),
		Cause:    cause,
	})
}

// Len returns the number of recorded diagnostics.
func (s *Errors) Len() int { return len(s.list) }

