// Package catalog defines the entity tables consumed and produced by catalog validation.
//
// Input tables are produced by an external loader (or LoadTables for YAML dumps of
// already-resolved tables) and are never mutated during a validation pass.
package catalog

import (
	"encoding/json"
	"strings"
)

// Scope is the URL of the document which defined an entity, optionally
// carrying a JSON-pointer fragment to the entity's location within it.
type Scope string

// Resource returns the scope with any fragment removed.
func (s Scope) Resource() string {
	if i := strings.IndexByte(string(s), '#'); i >= 0 {
		return string(s)[:i]
	}
	return string(s)
}

// Push returns a scope for a child location of s.
func (s Scope) Push(token string) Scope {
	token = strings.ReplaceAll(token, "~", "~0")
	token = strings.ReplaceAll(token, "/", "~1")
	if strings.IndexByte(string(s), '#') >= 0 {
		return Scope(string(s) + "/" + token)
	}
	return Scope(string(s) + "#/" + token)
}

func (s Scope) String() string { return string(s) }

// EndpointType enumerates the kinds of external systems an endpoint addresses.
type EndpointType string

// Endpoint types.
const (
	EndpointS3        EndpointType = "s3"
	EndpointGS        EndpointType = "gs"
	EndpointPostgres  EndpointType = "postgres"
	EndpointSqlite    EndpointType = "sqlite"
	EndpointSnowflake EndpointType = "snowflake"
	EndpointBigQuery  EndpointType = "bigquery"
	EndpointWebhook   EndpointType = "webhook"
	EndpointRemote    EndpointType = "remote"
)

// Valid reports whether t is a known endpoint type.
func (t EndpointType) Valid() bool {
	switch t {
	case EndpointS3, EndpointGS, EndpointPostgres, EndpointSqlite,
		EndpointSnowflake, EndpointBigQuery, EndpointWebhook, EndpointRemote:
		return true
	}
	return false
}

// IsStorage reports whether t addresses a cloud storage bucket.
func (t EndpointType) IsStorage() bool {
	return t == EndpointS3 || t == EndpointGS
}

// Collection is a named, schema-validated, key-ordered dataset.
type Collection struct {
	Scope Scope
	Name  string
	// Schema is the URL of the collection schema, with optional fragment.
	Schema string
	// Key is the ordered composite key, as JSON pointers.
	Key []string
	// StoreEndpoint names the endpoint holding the collection's fragments.
	StoreEndpoint string
	// StorePatchConfig is merge-patched over the store endpoint's base config.
	StorePatchConfig json.RawMessage
}

// Derivation marks a collection as derived from transforms of other collections.
type Derivation struct {
	Scope Scope
	// Collection is the name of the derived collection.
	Collection      string
	RegisterSchema  string
	RegisterInitial json.RawMessage
}

// PartitionSelector filters a collection's logical partitions by field values.
type PartitionSelector struct {
	Include map[string][]json.RawMessage
	Exclude map[string][]json.RawMessage
}

// Transform binds a source collection to a derivation.
type Transform struct {
	Scope            Scope
	Name             string
	Derivation       string
	SourceCollection string
	SourcePartitions *PartitionSelector
	// SourceSchema optionally overrides the source collection's schema.
	SourceSchema string
	// ShuffleKey optionally overrides the source collection's key. Nil means no override.
	ShuffleKey    []string
	ShuffleLambda bool
	UpdateLambda  bool
	PublishLambda bool
}

// Capture pulls data from an external system into a collection.
type Capture struct {
	Scope      Scope
	Name       string
	Collection string
	// Endpoint is optional; captures without one are push-based.
	Endpoint string
}

// FieldSelector is the user's intent for materialized fields.
type FieldSelector struct {
	// Include maps field names to their per-field endpoint configuration.
	Include     map[string]json.RawMessage
	Exclude     []string
	Recommended bool
}

// Materialization pushes a collection's documents into an external system.
type Materialization struct {
	Scope       Scope
	Name        string
	Collection  string
	Endpoint    string
	PatchConfig json.RawMessage
	Fields      FieldSelector
}

// Endpoint is a named external system with its base configuration.
type Endpoint struct {
	Scope      Scope
	Name       string
	Type       EndpointType
	BaseConfig json.RawMessage
}

// Projection maps a field name to a document location of a collection.
type Projection struct {
	Scope        Scope
	Collection   string
	Field        string
	Location     string
	Partition    bool
	UserProvided bool
}

// Import is a directed edge of the resource import graph.
type Import struct {
	Scope        Scope
	FromResource string
	ToResource   string
}

// SchemaDoc is a parsed JSON schema document at its canonical URL.
type SchemaDoc struct {
	URL string
	Doc json.RawMessage
}

// StepKind distinguishes test step variants.
type StepKind string

// Test step kinds.
const (
	StepIngest StepKind = "ingest"
	StepVerify StepKind = "verify"
)

// TestStep is one ingest or verify step of a catalog test.
type TestStep struct {
	Scope      Scope
	Test       string
	StepIndex  int
	Kind       StepKind
	Collection string
	Documents  []json.RawMessage
	Partitions *PartitionSelector
}

// Tables is the complete, resource-resolved catalog input of a validation pass.
type Tables struct {
	Collections      []Collection
	Derivations      []Derivation
	Transforms       []Transform
	Captures         []Capture
	Materializations []Materialization
	Endpoints        []Endpoint
	Projections      []Projection
	Imports          []Import
	Schemas          []SchemaDoc
	TestSteps        []TestStep
}
