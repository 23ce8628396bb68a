package database

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryBackend keeps tables in process memory. Only tables named at
// construction (or added with CreateTable) exist; anything else reports
// ErrRelationNotFound just like a real database would.
type MemoryBackend struct {
	mu     sync.RWMutex
	tables map[string][]Record
}

// NewMemoryBackend creates a backend with the given empty tables.
func NewMemoryBackend(tables ...string) *MemoryBackend {
	m := &MemoryBackend{tables: make(map[string][]Record, len(tables))}
	for _, t := range tables {
		m.tables[t] = []Record{}
	}
	return m
}

// CreateTable adds an empty table if it does not exist yet.
func (m *MemoryBackend) CreateTable(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tables[name]; !ok {
		m.tables[name] = []Record{}
	}
}

// Rows returns a copy of every row in table, for inspection.
func (m *MemoryBackend) Rows(table string) []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, 0, len(m.tables[table]))
	for _, r := range m.tables[table] {
		out = append(out, clone(r))
	}
	return out
}

// Select implements Backend.
func (m *MemoryBackend) Select(_ context.Context, table string, q Query) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows, ok := m.tables[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRelationNotFound, table)
	}

	out := []Record{}
	for _, r := range rows {
		if matches(r, q.Where) {
			out = append(out, clone(r))
		}
	}
	if q.Order != nil {
		col, desc := q.Order.Column, q.Order.Desc
		sort.SliceStable(out, func(i, j int) bool {
			if desc {
				return less(out[j][col], out[i][col])
			}
			return less(out[i][col], out[j][col])
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Insert implements Backend.
func (m *MemoryBackend) Insert(_ context.Context, table string, rec Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows, ok := m.tables[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRelationNotFound, table)
	}
	if id := rec.ID(); id != "" {
		for _, r := range rows {
			if r.ID() == id {
				return nil, fmt.Errorf("duplicate key id=%s in %s", id, table)
			}
		}
	}
	stored := clone(rec)
	m.tables[table] = append(rows, stored)
	return clone(stored), nil
}

// Update implements Backend.
func (m *MemoryBackend) Update(_ context.Context, table string, where []Predicate, patch Record) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows, ok := m.tables[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRelationNotFound, table)
	}
	out := []Record{}
	for _, r := range rows {
		if !matches(r, where) {
			continue
		}
		for k, v := range patch {
			r[k] = v
		}
		out = append(out, clone(r))
	}
	return out, nil
}

// Delete implements Backend.
func (m *MemoryBackend) Delete(_ context.Context, table string, where []Predicate) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows, ok := m.tables[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRelationNotFound, table)
	}
	kept := rows[:0:0]
	out := []Record{}
	for _, r := range rows {
		if matches(r, where) {
			out = append(out, clone(r))
			continue
		}
		kept = append(kept, r)
	}
	m.tables[table] = kept
	return out, nil
}

func matches(r Record, preds []Predicate) bool {
	for _, p := range preds {
		v, present := r[p.Column]
		switch p.Op {
		case OpIsNull:
			if present && v != nil {
				return false
			}
		case OpEq:
			if !equal(v, p.Value) {
				return false
			}
		case OpIn:
			found := false
			for _, want := range p.Values {
				if equal(v, want) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func less(a, b any) bool {
	if a == nil {
		return b != nil
	}
	if b == nil {
		return false
	}
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa < fb
		}
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}

func clone(r Record) Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
