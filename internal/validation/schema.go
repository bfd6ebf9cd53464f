package validation

import (
	"sort"

	"github.com/estuary/flow-sub001/internal/catalog"
	"github.com/estuary/flow-sub001/internal/schema"
)

// schemaShape is the inferred shape of one schema URL, with its canonical fields.
type schemaShape struct {
	url   string
	shape *schema.Shape
	// fields are canonical (field, pointer) pairs, sorted by field.
	fields []canonicalField
}

type canonicalField struct {
	field string
	ptr   string
}

// canonicalFieldName maps a document pointer to its canonical field name.
func canonicalFieldName(ptr string) string {
	if ptr == "" {
		return catalog.DocumentField
	}
	return ptr[1:]
}

// indexSchemas compiles every schema document and verifies that the
// index's references are closed.
func (v *validator) indexSchemas() {
	for _, doc := range v.tables.Schemas {
		if err := v.index.Add(doc.URL, doc.Doc); err != nil {
			v.errs.wrap(catalog.Scope(doc.URL), SchemaBuild, err, "failed to build schema")
		}
	}
	for _, ref := range v.index.VerifyReferences() {
		scope := catalog.Scope(ref.Document)
		if ref.Location != "" {
			scope = catalog.Scope(ref.Document + "#" + ref.Location)
		}
		v.errs.add(scope, SchemaReference, "%s", ref.Error())
	}
}

// buildShapes infers the shape of every referenced schema, and records
// inferences of its explicit and implicit locations.
func (v *validator) buildShapes() {
	refs := make(map[string][]catalog.Scope)
	add := func(url string, scope catalog.Scope) {
		if url != "" {
			refs[url] = append(refs[url], scope)
		}
	}
	for _, c := range v.tables.Collections {
		add(c.Schema, c.Scope.Push("schema"))
	}
	for _, d := range v.tables.Derivations {
		add(d.RegisterSchema, d.Scope.Push("register").Push("schema"))
	}
	for _, t := range v.tables.Transforms {
		add(t.SourceSchema, t.Scope.Push("source").Push("schema"))
	}

	// Explicit locations are projections of collections using the schema as their collection schema.
	explicit := make(map[string][]string)
	schemaOf := make(map[string]string, len(v.tables.Collections))
	for _, c := range v.tables.Collections {
		if _, ok := schemaOf[c.Name]; !ok {
			schemaOf[c.Name] = c.Schema
		}
	}
	for _, p := range v.tables.Projections {
		if url, ok := schemaOf[p.Collection]; ok {
			explicit[url] = append(explicit[url], p.Location)
		}
	}

	urls := make([]string, 0, len(refs))
	for url := range refs {
		urls = append(urls, url)
	}
	sort.Strings(urls)

	for _, url := range urls {
		shape, ok := schema.Infer(v.index, url)
		if !ok {
			for _, scope := range refs[url] {
				v.errs.add(scope, NoSuchSchema, "schema %s was not found in the catalog", url)
			}
			continue
		}
		for _, ie := range shape.Inspect() {
			v.errs.add(catalog.Scope(url), ShapeInspection, "%s", ie.Error())
		}

		ss := &schemaShape{url: url, shape: shape}
		for _, loc := range mergeLocations(shape, explicit[url]) {
			ss.fields = append(ss.fields, canonicalField{field: canonicalFieldName(loc.Ptr), ptr: loc.Ptr})
			v.res.Inferences = append(v.res.Inferences, catalog.InferenceRow{
				Schema:    url,
				Location:  loc.Ptr,
				Inference: inferenceOf(loc.Shape, loc.MustExist),
			})
		}
		sort.SliceStable(ss.fields, func(i, j int) bool { return ss.fields[i].field < ss.fields[j].field })
		v.shapes[url] = ss
	}
}

// mergeLocations merge-joins explicit pointers with the shape's implicit
// locations, ordered by pointer. Explicit pointers absent from the shape are dropped.
func mergeLocations(shape *schema.Shape, explicit []string) []schema.Location {
	ptrs := append([]string(nil), explicit...)
	sort.Strings(ptrs)
	implicit := shape.Locations()

	var out []schema.Location
	i, j := 0, 0
	for i < len(ptrs) || j < len(implicit) {
		switch {
		case j == len(implicit) || (i < len(ptrs) && ptrs[i] < implicit[j].Ptr):
			if i == 0 || ptrs[i] != ptrs[i-1] {
				if located, exists, found := shape.Locate(ptrs[i]); found {
					out = append(out, schema.Location{Ptr: ptrs[i], Shape: located, MustExist: exists})
				}
			}
			i++
		case i == len(ptrs) || implicit[j].Ptr < ptrs[i]:
			out = append(out, implicit[j])
			j++
		default:
			out = append(out, implicit[j])
			ptr := implicit[j].Ptr
			for i < len(ptrs) && ptrs[i] == ptr {
				i++
			}
			j++
		}
	}
	return out
}

// inferenceOf summarizes a located shape.
func inferenceOf(shape *schema.Shape, mustExist bool) catalog.Inference {
	inf := catalog.Inference{
		Types:       shape.Type.Names(),
		MustExist:   mustExist,
		Title:       shape.Title,
		Description: shape.Description,
	}
	if shape.Type.Overlaps(schema.String) {
		inf.String = &catalog.StringInference{
			ContentType: shape.String.ContentType,
			Format:      shape.String.Format,
			IsBase64:    shape.String.ContentEncoding == "base64",
			MaxLength:   shape.String.MaxLength,
		}
	}
	return inf
}
