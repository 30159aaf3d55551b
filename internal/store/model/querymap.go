package model

import "fmt"

// QueryMap is an insertion-ordered mapping from query string to result
// count. A nil count means the query has not been executed yet.
type QueryMap struct {
	keys   []string
	counts map[string]*int
}

// NewQueryMap returns an empty mapping.
func NewQueryMap() *QueryMap {
	return &QueryMap{counts: make(map[string]*int)}
}

// QueryMapOf builds a mapping from queries in the given order, all
// with unknown counts. Duplicate queries are rejected.
func QueryMapOf(queries ...string) (*QueryMap, error) {
	m := &QueryMap{counts: make(map[string]*int, len(queries))}
	for _, q := range queries {
		if err := m.Add(q, nil); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Add appends a query with its count, keeping insertion order. Adding
// a query that is already present is an error, never an overwrite.
func (m *QueryMap) Add(query string, count *int) error {
	if m.counts == nil {
		m.counts = make(map[string]*int)
	}
	if _, found := m.counts[query]; found {
		return fmt.Errorf("duplicate query key %q", query)
	}
	m.keys = append(m.keys, query)
	m.counts[query] = count
	return nil
}

// Keys returns the queries in insertion order.
func (m *QueryMap) Keys() []string {
	if m == nil {
		return nil
	}
	keys := make([]string, len(m.keys))
	copy(keys, m.keys)
	return keys
}

// Count returns the result count for a query and whether the query is
// present. A nil count for a present query means "not computed yet".
func (m *QueryMap) Count(query string) (*int, bool) {
	if m == nil {
		return nil, false
	}
	c, found := m.counts[query]
	return c, found
}

func (m *QueryMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}
