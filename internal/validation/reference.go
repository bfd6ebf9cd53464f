package validation

import (
	"sort"

	"github.com/estuary/flow-sub001/internal/catalog"
)

// maxSuggestDistance is the largest edit distance at which a "did you mean" suggestion is offered.
const maxSuggestDistance = 4

// referent is an entity which may be the target of a reference.
type referent struct {
	name  string
	scope catalog.Scope
	index int
}

// referents indexes entities of one kind by name.
type referents struct {
	kind   string
	sorted []referent
}

func newReferents(kind string, n int, at func(i int) (string, catalog.Scope)) *referents {
	r := &referents{kind: kind, sorted: make([]referent, n)}
	for i := 0; i < n; i++ {
		name, scope := at(i)
		r.sorted[i] = referent{name: name, scope: scope, index: i}
	}
	sort.SliceStable(r.sorted, func(i, j int) bool { return r.sorted[i].name < r.sorted[j].name })
	return r
}

// lookup returns the index of the first entity named name.
func (r *referents) lookup(name string) (referent, bool) {
	i := sort.Search(len(r.sorted), func(i int) bool { return r.sorted[i].name >= name })
	if i < len(r.sorted) && r.sorted[i].name == name {
		return r.sorted[i], true
	}
	return referent{}, false
}

// reference describes the entity making a reference.
type reference struct {
	scope catalog.Scope
	kind  string
	name  string
}

// resolve resolves ref to an entity index of r, or returns false after recording why it could not.
func (v *validator) resolve(from reference, r *referents, ref string) (int, bool) {
	if target, ok := r.lookup(ref); ok {
		if !v.graph.Reachable(string(from.scope), string(target.scope)) {
			v.errs.add(from.scope, MissingImport,
				"%s %q references %s %q, defined at %s, without importing it or being imported by it",
				from.kind, from.name, r.kind, ref, target.scope)
			return -1, false
		}
		return target.index, true
	}

	closest, best := referent{}, -1
	for _, cand := range r.sorted {
		d := editDistance(ref, cand.name)
		if best < 0 || d < best {
			closest, best = cand, d
		}
	}
	if best >= 0 && best <= maxSuggestDistance {
		v.errs.add(from.scope, NoSuchEntitySuggest,
			"%s %q references %s %q, which is not defined; did you mean %q defined at %s?",
			from.kind, from.name, r.kind, ref, closest.name, closest.scope)
	} else {
		v.errs.add(from.scope, NoSuchEntity,
			"%s %q references %s %q, which is not defined",
			from.kind, from.name, r.kind, ref)
	}
	return -1, false
}

// editDistance returns the optimal string alignment distance of a and b:
// insertions, deletions, substitutions, and transpositions of adjacent runes.
func editDistance(a, b string) int {
	s, t := []rune(a), []rune(b)
	if len(s) == 0 {
		return len(t)
	}
	if len(t) == 0 {
		return len(s)
	}

	// Three rolling rows: two back, previous, current.
	prev2 := make([]int, len(t)+1)
	prev := make([]int, len(t)+1)
	cur := make([]int, len(t)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(s); i++ {
		cur[0] = i
		for j := 1; j <= len(t); j++ {
			cost := 1
			if s[i-1] == t[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
			if i > 1 && j > 1 && s[i-1] == t[j-2] && s[i-2] == t[j-1] {
				cur[j] = min(cur[j], prev2[j-2]+1)
			}
		}
		prev2, prev, cur = prev, cur, prev2
	}
	return prev[len(t)]
}
