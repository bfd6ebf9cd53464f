package validation

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/estuary/flow-sub001/internal/catalog"
)

const tokenClass = `[\p{L}\p{N}\-_\.]+`

var (
	// catalogNameRe matches hierarchical catalog names: tokens joined by '/'.
	catalogNameRe = regexp.MustCompile(tokenClass + `(?:/` + tokenClass + `)*`)
	// tokenNameRe matches names which may not be hierarchical.
	tokenNameRe = regexp.MustCompile(tokenClass)
)

// validateName requires that re matches the whole of name.
func (v *validator) validateName(scope catalog.Scope, entity, name string, re *regexp.Regexp) bool {
	if name == "" {
		v.errs.add(scope, NameEmpty, "%s name cannot be empty", entity)
		return false
	}

	loc := re.FindStringIndex(name)
	var unmatched string
	switch {
	case loc == nil:
		unmatched = name
	case loc[0] != 0:
		unmatched = name[:loc[0]]
	case loc[1] != len(name):
		unmatched = name[loc[1]:]
	default:
		return true
	}
	v.errs.add(scope, NameRegex,
		"%s name %q is invalid: %q is not allowed (names are letters, numbers, '-', '_', and '.'%s)",
		entity, name, unmatched, hierarchyHint(re))
	return false
}

func hierarchyHint(re *regexp.Regexp) string {
	if re == catalogNameRe {
		return ", joined by '/'"
	}
	return ""
}

// namedScope is a name of an entity and the scope defining it.
type namedScope struct {
	name  string
	scope catalog.Scope
}

func newCollator() *collate.Collator {
	return collate.New(language.Und, collate.IgnoreCase, collate.IgnoreWidth)
}

// validateCollation requires that no two names collate equal, and that no
// name is a '/'-delimited prefix of another. A name is reported once for each
// of its defined ancestors, not only against its sorted neighbor.
func (v *validator) validateCollation(entity string, names []namedScope) {
	col := newCollator()

	sorted := append([]namedScope(nil), names...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if c := col.CompareString(sorted[i].name, sorted[j].name); c != 0 {
			return c < 0
		}
		return sorted[i].scope < sorted[j].scope
	})

	var buf collate.Buffer
	key := func(s string) string {
		k := string(col.KeyFromString(&buf, s))
		buf.Reset()
		return k
	}

	byKey := make(map[string]namedScope, len(sorted))
	for i, ns := range sorted {
		if i > 0 && col.CompareString(sorted[i-1].name, ns.name) == 0 {
			prev := sorted[i-1]
			v.errs.add(prev.scope, Duplicate, "%s %q is duplicated, and also defined at %s", entity, prev.name, ns.scope)
			continue
		}
		byKey[key(ns.name)] = ns
	}

	for _, ns := range sorted {
		for i := strings.IndexByte(ns.name, '/'); i >= 0; {
			if prefix, ok := byKey[key(ns.name[:i])]; ok {
				v.errs.add(prefix.scope, Prefix, "%s %q is a prefix of %q, defined at %s", entity, prefix.name, ns.name, ns.scope)
			}
			next := strings.IndexByte(ns.name[i+1:], '/')
			if next < 0 {
				break
			}
			i += next + 1
		}
	}
}

// validateNames checks the grammar and collation of every named entity.
func (v *validator) validateNames() {
	t := v.tables

	var names []namedScope
	for _, c := range t.Collections {
		v.validateName(c.Scope, "collection", c.Name, catalogNameRe)
		names = append(names, namedScope{c.Name, c.Scope})
	}
	v.validateCollation("collection", names)

	names = names[:0]
	for _, c := range t.Captures {
		v.validateName(c.Scope, "capture", c.Name, catalogNameRe)
		names = append(names, namedScope{c.Name, c.Scope})
	}
	v.validateCollation("capture", names)

	names = names[:0]
	for _, m := range t.Materializations {
		v.validateName(m.Scope, "materialization", m.Name, catalogNameRe)
		names = append(names, namedScope{m.Name, m.Scope})
	}
	v.validateCollation("materialization", names)

	names = names[:0]
	for _, e := range t.Endpoints {
		v.validateName(e.Scope, "endpoint", e.Name, catalogNameRe)
		names = append(names, namedScope{e.Name, e.Scope})
	}
	v.validateCollation("endpoint", names)

	// Tests have one row per step; names are checked once per test.
	names = names[:0]
	for _, s := range t.TestSteps {
		if s.StepIndex != 0 {
			continue
		}
		v.validateName(s.Scope, "test", s.Test, catalogNameRe)
		names = append(names, namedScope{s.Test, s.Scope})
	}
	v.validateCollation("test", names)

	// Transform names are scoped to their derivation.
	byDerivation := make(map[string][]namedScope)
	var derivations []string
	for _, tr := range t.Transforms {
		v.validateName(tr.Scope, "transform", tr.Name, tokenNameRe)
		if _, ok := byDerivation[tr.Derivation]; !ok {
			derivations = append(derivations, tr.Derivation)
		}
		byDerivation[tr.Derivation] = append(byDerivation[tr.Derivation], namedScope{tr.Name, tr.Scope})
	}
	sort.Strings(derivations)
	for _, d := range derivations {
		v.validateCollation("transform", byDerivation[d])
	}
}
