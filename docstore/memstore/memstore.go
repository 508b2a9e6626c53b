// Package memstore is an in-memory docstore.DocumentSource, used by
// Session/Manager tests in place of a live Mongo deployment.
/*
 * Copyright (c) 2026, RibbonsAlmark. All rights reserved.
 */
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/RibbonsAlmark/Relay/docstore"
)

type collKey struct {
	db, col string
}

// Store is a simple mutex-guarded map-of-slices DocumentSource. IDs
// are assigned sequentially per collection; Write upserts by ID when
// present, else appends with a freshly assigned ID.
type Store struct {
	mu    sync.Mutex
	colls map[collKey][]docstore.Doc
	next  map[collKey]int64
}

func New() *Store {
	return &Store{
		colls: make(map[collKey][]docstore.Doc),
		next:  make(map[collKey]int64),
	}
}

// Seed replaces the contents of db.col with docs, assigning fresh IDs.
// Intended for test setup, not part of the DocumentSource interface.
func (s *Store) Seed(db, col string, docs []map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := collKey{db, col}
	out := make([]docstore.Doc, len(docs))
	for i, m := range docs {
		cp := make(map[string]any, len(m)+1)
		for kk, vv := range m {
			cp[kk] = vv
		}
		id := s.next[k]
		s.next[k] = id + 1
		cp["_id"] = id
		out[i] = docstore.NewDoc(cp)
	}
	s.colls[k] = out
}

func (s *Store) Count(_ context.Context, db, col string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.colls[collKey{db, col}])), nil
}

func (s *Store) Iter(ctx context.Context, db, col string) (docstore.Cursor, error) {
	return s.Slice(ctx, db, col, 0, -1)
}

func (s *Store) Slice(_ context.Context, db, col string, skip, limit int64) (docstore.Cursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.colls[collKey{db, col}]
	if skip < 0 {
		skip = 0
	}
	if skip > int64(len(all)) {
		skip = int64(len(all))
	}
	end := int64(len(all))
	if limit >= 0 && skip+limit < end {
		end = skip + limit
	}
	cp := make([]docstore.Doc, end-skip)
	copy(cp, all[skip:end])
	return &cursor{docs: cp}, nil
}

// Find supports the two query shapes rating.Service issues against a
// DocumentSource: an "info.source" equality match (rate_by_source) and
// an "info.timestamp" range match with $gte/$lte bounds (range rate by
// numeric timestamp), enough to exercise both in tests without
// reimplementing a query engine.
func (s *Store) Find(_ context.Context, db, col string, query docstore.Query, _ docstore.Projection, sortSpec docstore.Sort, skip, limit int64) (docstore.Cursor, error) {
	s.mu.Lock()
	all := append([]docstore.Doc(nil), s.colls[collKey{db, col}]...)
	s.mu.Unlock()

	filtered := all
	if src, ok := query["info.source"]; ok {
		next := make([]docstore.Doc, 0, len(filtered))
		for _, d := range filtered {
			if d.Source() == src {
				next = append(next, d)
			}
		}
		filtered = next
	}
	if bounds, ok := query["info.timestamp"].(map[string]any); ok {
		lo, hasLo := numOpt(bounds["$gte"])
		hi, hasHi := numOpt(bounds["$lte"])
		next := make([]docstore.Doc, 0, len(filtered))
		for _, d := range filtered {
			ts, ok := d.Timestamp()
			if !ok {
				continue
			}
			if hasLo && ts < lo {
				continue
			}
			if hasHi && ts > hi {
				continue
			}
			next = append(next, d)
		}
		filtered = next
	}

	if len(sortSpec) > 0 {
		field := sortSpec[0]
		sort.SliceStable(filtered, func(i, j int) bool {
			vi, _ := filtered[i].Info()[field.Field].(float64)
			vj, _ := filtered[j].Info()[field.Field].(float64)
			if field.Ascending {
				return vi < vj
			}
			return vi > vj
		})
	}

	if skip < 0 {
		skip = 0
	}
	if skip > int64(len(filtered)) {
		skip = int64(len(filtered))
	}
	end := int64(len(filtered))
	if limit >= 0 && skip+limit < end {
		end = skip + limit
	}
	return &cursor{docs: filtered[skip:end]}, nil
}

func (s *Store) Write(_ context.Context, db, col string, docs []docstore.Doc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := collKey{db, col}
	existing := s.colls[k]
	byID := make(map[any]int, len(existing))
	for i, d := range existing {
		byID[d.ID()] = i
	}
	for _, d := range docs {
		if d.ID() == nil {
			id := s.next[k]
			s.next[k] = id + 1
			d = docstore.NewDoc(withID(d.Raw(), id))
		}
		if i, ok := byID[d.ID()]; ok {
			existing[i] = d
		} else {
			byID[d.ID()] = len(existing)
			existing = append(existing, d)
		}
	}
	s.colls[k] = existing
	return nil
}

func withID(m map[string]any, id int64) map[string]any {
	cp := make(map[string]any, len(m)+1)
	for k, v := range m {
		cp[k] = v
	}
	cp["_id"] = id
	return cp
}

func (s *Store) ListDatabases(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for k := range s.colls {
		if !seen[k.db] {
			seen[k.db] = true
			out = append(out, k.db)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) ListCollections(_ context.Context, db string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for k := range s.colls {
		if k.db == db {
			out = append(out, k.col)
		}
	}
	sort.Strings(out)
	return out, nil
}

type cursor struct {
	docs []docstore.Doc
	pos  int
	cur  docstore.Doc
}

func (c *cursor) Next(context.Context) bool {
	if c.pos >= len(c.docs) {
		return false
	}
	c.cur = c.docs[c.pos]
	c.pos++
	return true
}

func (c *cursor) Doc() docstore.Doc   { return c.cur }
func (c *cursor) Err() error          { return nil }
func (c *cursor) Close(context.Context) error { return nil }

// numOpt coerces a Mongo-style numeric query operand (float64/int/
// int64, as a JSON-decoded or literal Go value) to float64.
func numOpt(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
