package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// tablesYAML is the on-disk form of resolved catalog tables.
// JSON-valued columns are written inline as YAML and re-encoded as JSON.
type tablesYAML struct {
	Collections []struct {
		Scope       string   `yaml:"scope"`
		Name        string   `yaml:"name"`
		Schema      string   `yaml:"schema"`
		Key         []string `yaml:"key"`
		Store       string   `yaml:"store"`
		StorePatch  any      `yaml:"store_patch"`
		Projections []struct {
			Field     string `yaml:"field"`
			Location  string `yaml:"location"`
			Partition bool   `yaml:"partition"`
		} `yaml:"projections"`
	} `yaml:"collections"`
	Derivations []struct {
		Scope           string `yaml:"scope"`
		Collection      string `yaml:"collection"`
		RegisterSchema  string `yaml:"register_schema"`
		RegisterInitial any    `yaml:"register_initial"`
	} `yaml:"derivations"`
	Transforms []struct {
		Scope            string          `yaml:"scope"`
		Name             string          `yaml:"name"`
		Derivation       string          `yaml:"derivation"`
		Source           string          `yaml:"source"`
		SourcePartitions *partitionsYAML `yaml:"source_partitions"`
		SourceSchema     string          `yaml:"source_schema"`
		ShuffleKey       []string        `yaml:"shuffle_key"`
		ShuffleLambda    bool            `yaml:"shuffle_lambda"`
		Update           bool            `yaml:"update"`
		Publish          bool            `yaml:"publish"`
	} `yaml:"transforms"`
	Captures []struct {
		Scope      string `yaml:"scope"`
		Name       string `yaml:"name"`
		Collection string `yaml:"collection"`
		Endpoint   string `yaml:"endpoint"`
	} `yaml:"captures"`
	Materializations []struct {
		Scope      string `yaml:"scope"`
		Name       string `yaml:"name"`
		Collection string `yaml:"collection"`
		Endpoint   string `yaml:"endpoint"`
		Patch      any    `yaml:"patch"`
		Fields     struct {
			Include     map[string]any `yaml:"include"`
			Exclude     []string       `yaml:"exclude"`
			Recommended bool           `yaml:"recommended"`
		} `yaml:"fields"`
	} `yaml:"materializations"`
	Endpoints []struct {
		Scope  string `yaml:"scope"`
		Name   string `yaml:"name"`
		Type   string `yaml:"type"`
		Config any    `yaml:"config"`
	} `yaml:"endpoints"`
	Imports []struct {
		Scope string `yaml:"scope"`
		From  string `yaml:"from"`
		To    string `yaml:"to"`
	} `yaml:"imports"`
	Schemas []struct {
		URL      string `yaml:"url"`
		Document any    `yaml:"document"`
	} `yaml:"schemas"`
	Tests []struct {
		Scope string `yaml:"scope"`
		Name  string `yaml:"name"`
		Steps []struct {
			Scope      string          `yaml:"scope"`
			Ingest     string          `yaml:"ingest"`
			Verify     string          `yaml:"verify"`
			Documents  []any           `yaml:"documents"`
			Partitions *partitionsYAML `yaml:"partitions"`
		} `yaml:"steps"`
	} `yaml:"tests"`
}

type partitionsYAML struct {
	Include map[string][]any `yaml:"include"`
	Exclude map[string][]any `yaml:"exclude"`
}

// LoadTables reads resolved catalog tables from a YAML (or JSON) file.
func LoadTables(path string) (*Tables, error) {
	content, err := os.ReadFile(path) //nolint:gosec // G304: path is user-provided catalog
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog tables: %w", err)
	}
	tables, err := ParseTables(content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tables, nil
}

// ParseTables decodes resolved catalog tables. Unknown fields are rejected.
func ParseTables(content []byte) (*Tables, error) {
	var raw tablesYAML

	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid catalog tables: %w", err)
	}

	var t Tables
	var err error

	for _, c := range raw.Collections {
		scope := Scope(c.Scope)
		col := Collection{
			Scope:         scope,
			Name:          c.Name,
			Schema:        c.Schema,
			Key:           c.Key,
			StoreEndpoint: c.Store,
		}
		if col.StorePatchConfig, err = toJSON(c.StorePatch); err != nil {
			return nil, fmt.Errorf("collection %q store_patch: %w", c.Name, err)
		}
		t.Collections = append(t.Collections, col)

		for _, p := range c.Projections {
			t.Projections = append(t.Projections, Projection{
				Scope:        scope.Push("projections").Push(p.Field),
				Collection:   c.Name,
				Field:        p.Field,
				Location:     p.Location,
				Partition:    p.Partition,
				UserProvided: true,
			})
		}
	}

	for _, d := range raw.Derivations {
		der := Derivation{
			Scope:          Scope(d.Scope),
			Collection:     d.Collection,
			RegisterSchema: d.RegisterSchema,
		}
		if der.RegisterInitial, err = toJSON(d.RegisterInitial); err != nil {
			return nil, fmt.Errorf("derivation %q register_initial: %w", d.Collection, err)
		}
		if der.RegisterInitial == nil {
			der.RegisterInitial = json.RawMessage("null")
		}
		t.Derivations = append(t.Derivations, der)
	}

	for _, tf := range raw.Transforms {
		parts, err := tf.SourcePartitions.toSelector()
		if err != nil {
			return nil, fmt.Errorf("transform %q source_partitions: %w", tf.Name, err)
		}
		t.Transforms = append(t.Transforms, Transform{
			Scope:            Scope(tf.Scope),
			Name:             tf.Name,
			Derivation:       tf.Derivation,
			SourceCollection: tf.Source,
			SourcePartitions: parts,
			SourceSchema:     tf.SourceSchema,
			ShuffleKey:       tf.ShuffleKey,
			ShuffleLambda:    tf.ShuffleLambda,
			UpdateLambda:     tf.Update,
			PublishLambda:    tf.Publish,
		})
	}

	for _, c := range raw.Captures {
		t.Captures = append(t.Captures, Capture{
			Scope:      Scope(c.Scope),
			Name:       c.Name,
			Collection: c.Collection,
			Endpoint:   c.Endpoint,
		})
	}

	for _, m := range raw.Materializations {
		mat := Materialization{
			Scope:      Scope(m.Scope),
			Name:       m.Name,
			Collection: m.Collection,
			Endpoint:   m.Endpoint,
			Fields: FieldSelector{
				Exclude:     m.Fields.Exclude,
				Recommended: m.Fields.Recommended,
			},
		}
		if mat.PatchConfig, err = toJSON(m.Patch); err != nil {
			return nil, fmt.Errorf("materialization %q patch: %w", m.Name, err)
		}
		if len(m.Fields.Include) != 0 {
			mat.Fields.Include = make(map[string]json.RawMessage, len(m.Fields.Include))
			for field, cfg := range m.Fields.Include {
				if cfg == nil {
					cfg = map[string]any{}
				}
				if mat.Fields.Include[field], err = toJSON(cfg); err != nil {
					return nil, fmt.Errorf("materialization %q field %q: %w", m.Name, field, err)
				}
			}
		}
		t.Materializations = append(t.Materializations, mat)
	}

	for _, e := range raw.Endpoints {
		typ := EndpointType(e.Type)
		if !typ.Valid() {
			return nil, fmt.Errorf("endpoint %q has unknown type %q", e.Name, e.Type)
		}
		ep := Endpoint{Scope: Scope(e.Scope), Name: e.Name, Type: typ}
		if ep.BaseConfig, err = toJSON(e.Config); err != nil {
			return nil, fmt.Errorf("endpoint %q config: %w", e.Name, err)
		}
		t.Endpoints = append(t.Endpoints, ep)
	}

	for _, i := range raw.Imports {
		t.Imports = append(t.Imports, Import{Scope: Scope(i.Scope), FromResource: i.From, ToResource: i.To})
	}

	for _, s := range raw.Schemas {
		doc, err := toJSON(s.Document)
		if err != nil {
			return nil, fmt.Errorf("schema %q: %w", s.URL, err)
		}
		t.Schemas = append(t.Schemas, SchemaDoc{URL: s.URL, Doc: doc})
	}

	for _, test := range raw.Tests {
		for index, s := range test.Steps {
			step := TestStep{
				Scope:     Scope(s.Scope),
				Test:      test.Name,
				StepIndex: index,
			}
			if step.Scope == "" {
				step.Scope = Scope(test.Scope).Push(fmt.Sprint(index))
			}
			switch {
			case s.Ingest != "" && s.Verify == "":
				step.Kind, step.Collection = StepIngest, s.Ingest
			case s.Verify != "" && s.Ingest == "":
				step.Kind, step.Collection = StepVerify, s.Verify
			default:
				return nil, fmt.Errorf("test %q step %d must have exactly one of ingest or verify", test.Name, index)
			}
			for _, doc := range s.Documents {
				b, err := toJSON(doc)
				if err != nil {
					return nil, fmt.Errorf("test %q step %d: %w", test.Name, index, err)
				}
				step.Documents = append(step.Documents, b)
			}
			if step.Partitions, err = s.Partitions.toSelector(); err != nil {
				return nil, fmt.Errorf("test %q step %d partitions: %w", test.Name, index, err)
			}
			t.TestSteps = append(t.TestSteps, step)
		}
	}

	return &t, nil
}

func (p *partitionsYAML) toSelector() (*PartitionSelector, error) {
	if p == nil {
		return nil, nil
	}
	convert := func(in map[string][]any) (map[string][]json.RawMessage, error) {
		if len(in) == 0 {
			return nil, nil
		}
		out := make(map[string][]json.RawMessage, len(in))
		for field, values := range in {
			for _, v := range values {
				b, err := toJSON(v)
				if err != nil {
					return nil, err
				}
				if b == nil {
					b = json.RawMessage("null")
				}
				out[field] = append(out[field], b)
			}
		}
		return out, nil
	}

	include, err := convert(p.Include)
	if err != nil {
		return nil, err
	}
	exclude, err := convert(p.Exclude)
	if err != nil {
		return nil, err
	}
	return &PartitionSelector{Include: include, Exclude: exclude}, nil
}

// toJSON re-encodes a decoded YAML value as JSON. Nil stays nil.
func toJSON(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}
