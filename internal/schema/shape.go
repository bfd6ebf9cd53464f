package schema

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Shape is the statically-inferred summary of values a schema location may take.
type Shape struct {
	Type        TypeSet
	Title       string
	Description string
	String      StringShape
	Object      ObjectShape
	Array       ArrayShape
}

// StringShape holds string facets of a location.
type StringShape struct {
	ContentType     string
	Format          string
	ContentEncoding string
	MaxLength       *int
}

// ObjectShape holds the properties of an object location.
type ObjectShape struct {
	// Properties are sorted by name.
	Properties []Property
	// Additional is the shape of undeclared properties. Nil is unconstrained.
	Additional *Shape
}

// Property is a declared object property.
type Property struct {
	Name       string
	IsRequired bool
	Shape      *Shape
}

// ArrayShape holds the items of an array location.
type ArrayShape struct {
	MinItems int
	Tuple    []*Shape
	// Additional is the shape of items beyond Tuple. Nil is unconstrained.
	Additional *Shape
}

// Location is a statically-enumerable location of a Shape.
type Location struct {
	Ptr       string
	Shape     *Shape
	MustExist bool
}

// InspectError is a structural problem of an inferred shape.
type InspectError struct {
	Ptr     string
	Message string
}

func (e InspectError) Error() string {
	if e.Ptr == "" {
		return "document root: " + e.Message
	}
	return fmt.Sprintf("location %s: %s", e.Ptr, e.Message)
}

// maxRefDepth bounds the expansion of nested `$ref`s.
const maxRefDepth = 16

func anything() *Shape { return &Shape{Type: Any} }

// Infer returns the Shape of the schema at a URL.
// Recursive references are expanded up to a fixed depth, after which they are unconstrained.
func Infer(idx *Index, schemaURL string) (*Shape, bool) {
	node, ok := idx.Fetch(schemaURL)
	if !ok {
		return nil, false
	}
	b := &builder{idx: idx, active: make(map[string]int)}
	return b.infer(node, baseURL(schemaURL)), true
}

type builder struct {
	idx    *Index
	active map[string]int
	depth  int
}

func (b *builder) infer(node any, base string) *Shape {
	switch v := node.(type) {
	case bool:
		if v {
			return anything()
		}
		return &Shape{Type: Invalid}
	case map[string]any:
		return b.inferObject(v, base)
	}
	return anything()
}

func (b *builder) inferObject(node map[string]any, base string) *Shape {
	shape := anything()

	switch t := node["type"].(type) {
	case string:
		shape.Type = ParseType(t)
	case []any:
		shape.Type = Invalid
		for _, name := range t {
			if s, ok := name.(string); ok {
				shape.Type |= ParseType(s)
			}
		}
	}
	if c, ok := node["const"]; ok {
		shape.Type &= TypeOfValue(c)
	}
	if enum, ok := node["enum"].([]any); ok {
		var types TypeSet
		for _, v := range enum {
			types |= TypeOfValue(v)
		}
		shape.Type &= types
	}

	shape.Title, _ = node["title"].(string)
	shape.Description, _ = node["description"].(string)
	shape.String.Format, _ = node["format"].(string)
	shape.String.ContentType, _ = node["contentMediaType"].(string)
	shape.String.ContentEncoding, _ = node["contentEncoding"].(string)
	if n, ok := intValue(node["maxLength"]); ok {
		shape.String.MaxLength = &n
	}

	if props, ok := node["properties"].(map[string]any); ok {
		for _, name := range sortedKeys(props) {
			shape.Object.Properties = append(shape.Object.Properties, Property{
				Name:  name,
				Shape: b.infer(props[name], base),
			})
		}
	}
	if ap, ok := node["additionalProperties"]; ok {
		shape.Object.Additional = b.infer(ap, base)
	}
	if required, ok := node["required"].([]any); ok {
		for _, r := range required {
			if name, ok := r.(string); ok {
				shape.Object.require(name)
			}
		}
	}

	if prefix, ok := node["prefixItems"].([]any); ok {
		for _, item := range prefix {
			shape.Array.Tuple = append(shape.Array.Tuple, b.infer(item, base))
		}
	}
	switch items := node["items"].(type) {
	case []any:
		for _, item := range items {
			shape.Array.Tuple = append(shape.Array.Tuple, b.infer(item, base))
		}
		if ai, ok := node["additionalItems"]; ok {
			shape.Array.Additional = b.infer(ai, base)
		}
	case map[string]any, bool:
		shape.Array.Additional = b.infer(items, base)
	}
	if n, ok := intValue(node["minItems"]); ok {
		shape.Array.MinItems = n
	}

	if ref, ok := node["$ref"].(string); ok {
		if refShape := b.inferRef(base, ref); refShape != nil {
			shape = intersect(shape, refShape)
		}
	}
	if all, ok := node["allOf"].([]any); ok {
		for _, sub := range all {
			shape = intersect(shape, b.infer(sub, base))
		}
	}
	for _, keyword := range []string{"anyOf", "oneOf"} {
		alts, ok := node[keyword].([]any)
		if !ok || len(alts) == 0 {
			continue
		}
		u := b.infer(alts[0], base)
		for _, sub := range alts[1:] {
			u = union(u, b.infer(sub, base))
		}
		shape = intersect(shape, u)
	}
	return shape
}

func (b *builder) inferRef(base, ref string) *Shape {
	resolved, err := resolveRef(base, ref)
	if err != nil {
		return nil
	}
	if b.active[resolved] > 0 || b.depth >= maxRefDepth {
		return nil
	}
	node, ok := b.idx.Fetch(resolved)
	if !ok {
		return nil
	}

	b.active[resolved]++
	b.depth++
	defer func() {
		b.active[resolved]--
		b.depth--
	}()

	return b.infer(node, baseURL(resolved))
}

func (o *ObjectShape) require(name string) {
	i := sort.Search(len(o.Properties), func(i int) bool { return o.Properties[i].Name >= name })
	if i < len(o.Properties) && o.Properties[i].Name == name {
		o.Properties[i].IsRequired = true
		return
	}
	// Required but undeclared properties take the shape of additional properties.
	s := anything()
	if o.Additional != nil {
		s = o.Additional
	}
	o.Properties = append(o.Properties, Property{})
	copy(o.Properties[i+1:], o.Properties[i:])
	o.Properties[i] = Property{Name: name, IsRequired: true, Shape: s}
}

func (o *ObjectShape) property(name string) (*Property, bool) {
	i := sort.Search(len(o.Properties), func(i int) bool { return o.Properties[i].Name >= name })
	if i < len(o.Properties) && o.Properties[i].Name == name {
		return &o.Properties[i], true
	}
	return nil, false
}

// Locate returns the shape at a JSON pointer, and whether a value is required
// to exist there in every valid document. Undeclared properties and items resolve
// only if the schema explicitly constrains them.
func (s *Shape) Locate(ptr string) (*Shape, bool, bool) {
	tokens, err := PointerTokens(ptr)
	if err != nil {
		return nil, false, false
	}

	cur, exists := s, true
	for _, tok := range tokens {
		var next *Shape
		var required bool

		if cur.Type.Overlaps(Object) {
			if prop, ok := cur.Object.property(tok); ok {
				next, required = prop.Shape, prop.IsRequired
			} else if cur.Object.Additional != nil && cur.Object.Additional.Type != Invalid {
				next = cur.Object.Additional
			}
			exists = exists && required && cur.Type == Object
		}
		if next == nil && cur.Type.Overlaps(Array) {
			idx, err := strconv.Atoi(tok)
			if err != nil || idx < 0 {
				return nil, false, false
			}
			if idx < len(cur.Array.Tuple) {
				next = cur.Array.Tuple[idx]
			} else if cur.Array.Additional != nil && cur.Array.Additional.Type != Invalid {
				next = cur.Array.Additional
			}
			exists = exists && idx < cur.Array.MinItems && cur.Type == Array
		}
		if next == nil {
			return nil, false, false
		}
		cur = next
	}
	return cur, exists, true
}

// Locations enumerates the document root, every declared property, and every
// tuple item of the shape, sorted by pointer.
func (s *Shape) Locations() []Location {
	var out []Location

	var walk func(ptr string, shape *Shape, exists bool)
	walk = func(ptr string, shape *Shape, exists bool) {
		out = append(out, Location{Ptr: ptr, Shape: shape, MustExist: exists})

		if shape.Type.Overlaps(Object) {
			for _, prop := range shape.Object.Properties {
				walk(PushToken(ptr, prop.Name), prop.Shape,
					exists && prop.IsRequired && shape.Type == Object)
			}
		}
		if shape.Type.Overlaps(Array) {
			for i, item := range shape.Array.Tuple {
				walk(PushToken(ptr, strconv.Itoa(i)), item,
					exists && i < shape.Array.MinItems && shape.Type == Array)
			}
		}
	}
	walk("", s, true)

	sort.SliceStable(out, func(i, j int) bool { return out[i].Ptr < out[j].Ptr })
	return out
}

// Inspect returns structural problems of the shape, such as locations which
// must exist but can never hold a value.
func (s *Shape) Inspect() []InspectError {
	var errs []InspectError

	for _, loc := range s.Locations() {
		if loc.Shape.Type == Invalid && loc.MustExist {
			errs = append(errs, InspectError{
				Ptr:     loc.Ptr,
				Message: "location is required to exist but its schema permits no value",
			})
		}
		if loc.Shape.String.ContentEncoding != "" && !loc.Shape.Type.Overlaps(String) {
			errs = append(errs, InspectError{
				Ptr:     loc.Ptr,
				Message: fmt.Sprintf("contentEncoding %q is only applicable to strings, but types are %s", loc.Shape.String.ContentEncoding, loc.Shape.Type),
			})
		}
	}
	return errs
}

// intersect returns the shape of values satisfying both a and b.
func intersect(a, b *Shape) *Shape {
	out := &Shape{
		Type:        a.Type & b.Type,
		Title:       firstOf(a.Title, b.Title),
		Description: firstOf(a.Description, b.Description),
		String: StringShape{
			ContentType:     firstOf(a.String.ContentType, b.String.ContentType),
			Format:          firstOf(a.String.Format, b.String.Format),
			ContentEncoding: firstOf(a.String.ContentEncoding, b.String.ContentEncoding),
			MaxLength:       minLength(a.String.MaxLength, b.String.MaxLength),
		},
	}

	out.Object.Additional = intersectOpt(a.Object.Additional, b.Object.Additional)
	mergeProperties(a.Object, b.Object, func(name string, pa, pb *Property) {
		prop := Property{Name: name}
		switch {
		case pa != nil && pb != nil:
			prop.Shape = intersect(pa.Shape, pb.Shape)
			prop.IsRequired = pa.IsRequired || pb.IsRequired
		case pa != nil:
			prop.Shape = intersectOpt(pa.Shape, b.Object.Additional)
			prop.IsRequired = pa.IsRequired
		default:
			prop.Shape = intersectOpt(pb.Shape, a.Object.Additional)
			prop.IsRequired = pb.IsRequired
		}
		out.Object.Properties = append(out.Object.Properties, prop)
	})

	out.Array.MinItems = max(a.Array.MinItems, b.Array.MinItems)
	out.Array.Additional = intersectOpt(a.Array.Additional, b.Array.Additional)
	for i := 0; i < max(len(a.Array.Tuple), len(b.Array.Tuple)); i++ {
		out.Array.Tuple = append(out.Array.Tuple,
			intersectOpt(tupleItem(a.Array, i), tupleItem(b.Array, i)))
	}
	return out
}

// union returns the shape of values satisfying either a or b.
func union(a, b *Shape) *Shape {
	out := &Shape{
		Type:        a.Type | b.Type,
		Title:       sameOf(a.Title, b.Title),
		Description: sameOf(a.Description, b.Description),
	}

	switch {
	case !a.Type.Overlaps(String):
		out.String = b.String
	case !b.Type.Overlaps(String):
		out.String = a.String
	default:
		out.String = StringShape{
			ContentType:     sameOf(a.String.ContentType, b.String.ContentType),
			Format:          sameOf(a.String.Format, b.String.Format),
			ContentEncoding: sameOf(a.String.ContentEncoding, b.String.ContentEncoding),
			MaxLength:       maxLength(a.String.MaxLength, b.String.MaxLength),
		}
	}

	switch {
	case !a.Type.Overlaps(Object):
		out.Object = b.Object
	case !b.Type.Overlaps(Object):
		out.Object = a.Object
	default:
		out.Object.Additional = unionOpt(a.Object.Additional, b.Object.Additional)
		mergeProperties(a.Object, b.Object, func(name string, pa, pb *Property) {
			prop := Property{Name: name}
			switch {
			case pa != nil && pb != nil:
				prop.Shape = union(pa.Shape, pb.Shape)
				prop.IsRequired = pa.IsRequired && pb.IsRequired
			case pa != nil:
				prop.Shape = unionOpt(pa.Shape, b.Object.Additional)
			default:
				prop.Shape = unionOpt(pb.Shape, a.Object.Additional)
			}
			if prop.Shape == nil {
				prop.Shape = anything()
			}
			out.Object.Properties = append(out.Object.Properties, prop)
		})
	}

	switch {
	case !a.Type.Overlaps(Array):
		out.Array = b.Array
	case !b.Type.Overlaps(Array):
		out.Array = a.Array
	default:
		out.Array.MinItems = min(a.Array.MinItems, b.Array.MinItems)
		out.Array.Additional = unionOpt(a.Array.Additional, b.Array.Additional)
		for i := 0; i < max(len(a.Array.Tuple), len(b.Array.Tuple)); i++ {
			item := unionOpt(tupleItem(a.Array, i), tupleItem(b.Array, i))
			if item == nil {
				item = anything()
			}
			out.Array.Tuple = append(out.Array.Tuple, item)
		}
	}
	return out
}

// mergeProperties merge-joins the sorted properties of a and b.
func mergeProperties(a, b ObjectShape, fn func(name string, pa, pb *Property)) {
	i, j := 0, 0
	for i < len(a.Properties) || j < len(b.Properties) {
		switch {
		case j == len(b.Properties) || (i < len(a.Properties) && a.Properties[i].Name < b.Properties[j].Name):
			fn(a.Properties[i].Name, &a.Properties[i], nil)
			i++
		case i == len(a.Properties) || b.Properties[j].Name < a.Properties[i].Name:
			fn(b.Properties[j].Name, nil, &b.Properties[j])
			j++
		default:
			fn(a.Properties[i].Name, &a.Properties[i], &b.Properties[j])
			i++
			j++
		}
	}
}

func tupleItem(a ArrayShape, i int) *Shape {
	if i < len(a.Tuple) {
		return a.Tuple[i]
	}
	return a.Additional
}

// intersectOpt treats nil as unconstrained.
func intersectOpt(a, b *Shape) *Shape {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return intersect(a, b)
}

// unionOpt treats nil as unconstrained.
func unionOpt(a, b *Shape) *Shape {
	if a == nil || b == nil {
		return nil
	}
	return union(a, b)
}

func firstOf(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func sameOf(a, b string) string {
	if a == b {
		return a
	}
	return ""
}

func minLength(a, b *int) *int {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case *a < *b:
		return a
	}
	return b
}

func maxLength(a, b *int) *int {
	if a == nil || b == nil {
		return nil
	}
	if *a > *b {
		return a
	}
	return b
}

func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	case float64:
		return int(n), true
	}
	return 0, false
}
