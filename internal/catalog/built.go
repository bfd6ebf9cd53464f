package catalog

import (
	"encoding/json"
	"time"
)

// Fixed document conventions of built collections.
const (
	// UUIDPointer locates the UUID placeholder of every collection document.
	UUIDPointer = "/_meta/uuid"
	// AckTemplate is the acknowledgement document written by transactional producers.
	AckTemplate = `{"_meta":{"uuid":"DocUUIDPlaceholder-329Bb50aa48EAa9ef","ack":true}}`
	// DocumentField is the canonical field name of the document root.
	DocumentField = "flow_document"
)

// Fixed journal policy of built collections.
const (
	JournalReplication      = 3
	JournalFragmentLength   = 1 << 29 // 512 MiB.
	JournalCompressionCodec = "GZIP_OFFLOAD_DECOMPRESSION"
	JournalRefreshInterval  = 5 * time.Minute
	JournalFlushInterval    = time.Hour
	JournalPathPostfix      = `utc_date={{.Spool.FirstAppendTime.Format "2006-01-02"}}/utc_hour={{.Spool.FirstAppendTime.Format "15"}}`
)

// StringInference carries string facets of an inferred location.
type StringInference struct {
	ContentType string `json:"content_type,omitempty"`
	Format      string `json:"format,omitempty"`
	IsBase64    bool   `json:"is_base64,omitempty"`
	MaxLength   *int   `json:"max_length,omitempty"`
}

// Inference summarizes what is statically known of a schema location.
type Inference struct {
	Types       []string         `json:"types"`
	MustExist   bool             `json:"must_exist"`
	Title       string           `json:"title,omitempty"`
	Description string           `json:"description,omitempty"`
	String      *StringInference `json:"string,omitempty"`
}

// InferenceRow is one row of the inferences output table.
type InferenceRow struct {
	Schema    string    `json:"schema"`
	Location  string    `json:"location"`
	Inference Inference `json:"inference"`
}

// ProjectionSpec is a built projection of a collection.
type ProjectionSpec struct {
	Field          string    `json:"field"`
	Ptr            string    `json:"ptr"`
	UserProvided   bool      `json:"user_provided"`
	IsPrimaryKey   bool      `json:"is_primary_key"`
	IsPartitionKey bool      `json:"is_partition_key"`
	Inference      Inference `json:"inference"`
}

// FragmentSpec is the fragment policy of a collection's journals.
type FragmentSpec struct {
	Length              int64         `json:"length"`
	CompressionCodec    string        `json:"compression_codec"`
	Stores              []string      `json:"stores"`
	RefreshInterval     time.Duration `json:"refresh_interval"`
	FlushInterval       time.Duration `json:"flush_interval"`
	PathPostfixTemplate string        `json:"path_postfix_template"`
}

// JournalSpec is the journal template of a collection's partitions.
type JournalSpec struct {
	Replication int32        `json:"replication"`
	Fragment    FragmentSpec `json:"fragment"`
}

// CollectionSpec is the fully built specification of a collection.
type CollectionSpec struct {
	Name            string           `json:"name"`
	SchemaURI       string           `json:"schema_uri"`
	KeyPtrs         []string         `json:"key_ptrs"`
	JournalSpec     JournalSpec      `json:"journal_spec"`
	Projections     []ProjectionSpec `json:"projections"`
	PartitionFields []string         `json:"partition_fields"`
	UUIDPtr         string           `json:"uuid_ptr"`
	AckJSONTemplate json.RawMessage  `json:"ack_json_template"`
}

// Projection returns the named projection of the collection.
func (c *CollectionSpec) Projection(field string) (*ProjectionSpec, bool) {
	for i := range c.Projections {
		if c.Projections[i].Field == field {
			return &c.Projections[i], true
		}
	}
	return nil, false
}

// BuiltCollection is one row of the built collections output table.
type BuiltCollection struct {
	Scope Scope          `json:"scope"`
	Spec  CollectionSpec `json:"spec"`
}

// FieldSelection is the reconciled set of fields a materialization writes.
type FieldSelection struct {
	// Keys holds one slot per composite-key position.
	Keys     []string `json:"keys"`
	Values   []string `json:"values"`
	Document string   `json:"document"`
	// FieldConfig holds JSON-encoded per-field configuration of included fields.
	FieldConfig map[string]string `json:"field_config,omitempty"`
}

// BuiltMaterialization is one row of the built materializations output table.
type BuiltMaterialization struct {
	Name           string          `json:"name"`
	Scope          Scope           `json:"scope"`
	Collection     string          `json:"collection"`
	EndpointType   EndpointType    `json:"endpoint_type"`
	EndpointConfig json.RawMessage `json:"endpoint_config"`
	Fields         FieldSelection  `json:"fields"`
}

// NewJournalSpec returns the fixed journal policy writing fragments to stores.
func NewJournalSpec(stores []string) JournalSpec {
	return JournalSpec{
		Replication: JournalReplication,
		Fragment: FragmentSpec{
			Length:              JournalFragmentLength,
			CompressionCodec:    JournalCompressionCodec,
			Stores:              stores,
			RefreshInterval:     JournalRefreshInterval,
			FlushInterval:       JournalFlushInterval,
			PathPostfixTemplate: JournalPathPostfix,
		},
	}
}
