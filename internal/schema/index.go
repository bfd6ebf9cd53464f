// Package schema indexes catalog JSON schemas and infers the shapes of their locations.
package schema

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Index holds every schema document of a catalog by canonical URL.
type Index struct {
	mu       sync.Mutex
	docs     map[string]any
	compiler *jsonschema.Compiler
	compiled map[string]*jsonschema.Schema
}

// ReferenceError is an unresolvable `$ref` within an indexed document.
type ReferenceError struct {
	// Document is the URL of the document containing the reference.
	Document string
	// Location is a JSON pointer to the `$ref` keyword's schema.
	Location string
	Ref      string
	Resolved string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("schema reference %q (resolved to %q) at %s#%s was not found in the catalog", e.Ref, e.Resolved, e.Document, e.Location)
}

// NewIndex returns an empty Index. Schemas are never fetched from outside the index.
func NewIndex() *Index {
	c := jsonschema.NewCompiler()
	c.LoadURL = func(s string) (io.ReadCloser, error) {
		return nil, fmt.Errorf("schema %q is not part of the catalog", s)
	}
	return &Index{
		docs:     make(map[string]any),
		compiler: c,
		compiled: make(map[string]*jsonschema.Schema),
	}
}

// Add indexes a schema document at its canonical URL.
func (idx *Index) Add(docURL string, doc []byte) error {
	base := baseURL(docURL)

	v, err := DecodeValue(doc)
	if err != nil {
		return fmt.Errorf("failed to parse schema %s: %w", base, err)
	}
	switch v.(type) {
	case map[string]any, bool:
	default:
		return fmt.Errorf("schema %s must be an object or boolean", base)
	}
	if _, ok := idx.docs[base]; ok {
		return fmt.Errorf("schema %s is indexed more than once", base)
	}
	if err := idx.compiler.AddResource(base, bytes.NewReader(doc)); err != nil {
		return fmt.Errorf("failed to index schema %s: %w", base, err)
	}
	idx.docs[base] = v
	return nil
}

// Len returns the number of indexed documents.
func (idx *Index) Len() int { return len(idx.docs) }

// Fetch returns the schema node at a URL, which may carry a JSON-pointer fragment.
func (idx *Index) Fetch(schemaURL string) (any, bool) {
	base, fragment := splitFragment(schemaURL)
	doc, ok := idx.docs[base]
	if !ok {
		return nil, false
	}
	if fragment == "" {
		return doc, true
	}
	if !strings.HasPrefix(fragment, "/") {
		return findAnchor(doc, fragment)
	}
	ptr, err := url.PathUnescape(fragment)
	if err != nil {
		return nil, false
	}
	return Query(doc, ptr)
}

// Compile returns the compiled schema at a URL for validating documents.
func (idx *Index) Compile(schemaURL string) (*jsonschema.Schema, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if s, ok := idx.compiled[schemaURL]; ok {
		return s, nil
	}
	s, err := idx.compiler.Compile(schemaURL)
	if err != nil {
		return nil, err
	}
	idx.compiled[schemaURL] = s
	return s, nil
}

// Validate validates a JSON document against the schema at a URL.
func (idx *Index) Validate(schemaURL string, doc []byte) error {
	s, err := idx.Compile(schemaURL)
	if err != nil {
		return err
	}
	v, err := DecodeValue(doc)
	if err != nil {
		return fmt.Errorf("document is not valid JSON: %w", err)
	}
	return s.Validate(v)
}

// VerifyReferences checks that every `$ref` of every indexed document
// resolves to a schema within the index.
func (idx *Index) VerifyReferences() []*ReferenceError {
	var errs []*ReferenceError

	urls := make([]string, 0, len(idx.docs))
	for u := range idx.docs {
		urls = append(urls, u)
	}
	sort.Strings(urls)

	for _, base := range urls {
		walkRefs(idx.docs[base], base, "", func(ref, location string) {
			resolved, err := resolveRef(base, ref)
			if err == nil {
				if _, ok := idx.Fetch(resolved); ok {
					return
				}
			}
			errs = append(errs, &ReferenceError{
				Document: base,
				Location: location,
				Ref:      ref,
				Resolved: resolved,
			})
		})
	}
	return errs
}

// nonSchemaKeywords hold data rather than sub-schemas.
var nonSchemaKeywords = map[string]bool{
	"const":    true,
	"default":  true,
	"enum":     true,
	"examples": true,
}

func walkRefs(node any, base, location string, fn func(ref, location string)) {
	switch v := node.(type) {
	case map[string]any:
		if ref, ok := v["$ref"].(string); ok {
			fn(ref, location)
		}
		for _, key := range sortedKeys(v) {
			if nonSchemaKeywords[key] {
				continue
			}
			walkRefs(v[key], base, PushToken(location, key), fn)
		}
	case []any:
		for i, item := range v {
			walkRefs(item, base, PushToken(location, fmt.Sprint(i)), fn)
		}
	}
}

func resolveRef(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return ref, err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref, err
	}
	return b.ResolveReference(r).String(), nil
}

func findAnchor(node any, anchor string) (any, bool) {
	switch v := node.(type) {
	case map[string]any:
		if a, ok := v["$anchor"].(string); ok && a == anchor {
			return v, true
		}
		for _, key := range sortedKeys(v) {
			if nonSchemaKeywords[key] {
				continue
			}
			if found, ok := findAnchor(v[key], anchor); ok {
				return found, true
			}
		}
	case []any:
		for _, item := range v {
			if found, ok := findAnchor(item, anchor); ok {
				return found, true
			}
		}
	}
	return nil, false
}

func splitFragment(u string) (string, string) {
	if i := strings.IndexByte(u, '#'); i >= 0 {
		return u[:i], u[i+1:]
	}
	return u, ""
}

func baseURL(u string) string {
	base, _ := splitFragment(u)
	return base
}
