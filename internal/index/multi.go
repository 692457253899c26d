// Package index implements the ordered multi-valued index used for secondary
// lookups (name to entity or set of entities), plus the fuzzy search that
// resolves human input against it. Name collisions are expected and are a
// first-class outcome, not an error.
package index

import "sort"

// cell is the tagged one-or-many variant stored under a key. A key starts as
// a single value and is promoted to a set on the first collision.
type cell[V comparable] struct {
	one  V
	many map[V]struct{}
}

func (c *cell[V]) isMany() bool { return c.many != nil }

// Multi is an ordered mapping from string key to one value or a set of
// values. Keys grow monotonically: the index never removes a key, even when
// its referent disappears from the catalog.
type Multi[V comparable] struct {
	cells  map[string]*cell[V]
	keys   []string
	sorted bool
}

// NewMulti returns an empty index.
func NewMulti[V comparable]() *Multi[V] {
	return &Multi[V]{cells: make(map[string]*cell[V]), sorted: true}
}

// Upsert adds element under key. Absent key stores the element directly; an
// equal stored value is a no-op; a different single value is promoted to a
// two-element set; a set absorbs the element if missing.
func (m *Multi[V]) Upsert(key string, element V) {
	c, ok := m.cells[key]
	if !ok {
		m.cells[key] = &cell[V]{one: element}
		m.keys = append(m.keys, key)
		m.sorted = false
		return
	}
	if c.isMany() {
		c.many[element] = struct{}{}
		return
	}
	if c.one == element {
		return
	}
	c.many = map[V]struct{}{c.one: {}, element: {}}
	var zero V
	c.one = zero
}

// Get returns the values stored under key, normalized to a slice. A missing
// key yields nil.
func (m *Multi[V]) Get(key string) []V {
	c, ok := m.cells[key]
	if !ok {
		return nil
	}
	return c.values()
}

// Has reports whether key is present.
func (m *Multi[V]) Has(key string) bool {
	_, ok := m.cells[key]
	return ok
}

// Len returns the number of distinct keys.
func (m *Multi[V]) Len() int { return len(m.cells) }

// Range calls fn for every key in [lo, hi] in ascending key order, with the
// cell's values normalized to a slice. fn returning false stops the scan.
func (m *Multi[V]) Range(lo, hi string, fn func(key string, values []V) bool) {
	m.ensureSorted()
	i := sort.SearchStrings(m.keys, lo)
	for ; i < len(m.keys) && m.keys[i] <= hi; i++ {
		k := m.keys[i]
		if !fn(k, m.cells[k].values()) {
			return
		}
	}
}

func (m *Multi[V]) ensureSorted() {
	if !m.sorted {
		sort.Strings(m.keys)
		m.sorted = true
	}
}

func (c *cell[V]) values() []V {
	if !c.isMany() {
		return []V{c.one}
	}
	out := make([]V, 0, len(c.many))
	for v := range c.many {
		out = append(out, v)
	}
	return out
}
