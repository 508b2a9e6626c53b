// Package docstore defines the DocumentSource abstraction the core
// consumes (spec §4.2): an external, key-addressable collection store
// exposing count/iter/slice/find/write. Documents are opaque nested
// mappings; Doc gives Processors typed access to the conventional keys
// without repeating map-digging boilerplate.
/*
 * Copyright (c) 2026, RibbonsAlmark. All rights reserved.
 */
package docstore

import "context"

// Doc wraps one document from a collection. The underlying
// representation is a nested map, mirroring the store's native
// document shape.
type Doc struct {
	m map[string]any
}

func NewDoc(m map[string]any) Doc {
	if m == nil {
		m = map[string]any{}
	}
	return Doc{m: m}
}

// Raw returns the underlying map for processors that need arbitrary
// keys the typed accessors below don't cover.
func (d Doc) Raw() map[string]any { return d.m }

func (d Doc) sub(key string) map[string]any {
	v, _ := d.m[key].(map[string]any)
	return v
}

func (d Doc) list(key string) []any {
	v, _ := d.m[key].([]any)
	return v
}

// Info returns the "info" sub-document (source, timestamp, ...).
func (d Doc) Info() map[string]any { return d.sub("info") }

// Source returns info.source, or "" if absent.
func (d Doc) Source() string {
	s, _ := d.Info()["source"].(string)
	return s
}

// Timestamp returns info.timestamp as a float64, or 0 and false if it
// is missing or not numeric.
func (d Doc) Timestamp() (float64, bool) {
	switch t := d.Info()["timestamp"].(type) {
	case float64:
		return t, true
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	default:
		return 0, false
	}
}

// Cameras returns the "camera" array entries.
func (d Doc) Cameras() []any { return d.list("camera") }

// Lidar returns the "lidar" array entries.
func (d Doc) Lidar() []any { return d.list("lidar") }

// JointState returns the "joint_state" array entries.
func (d Doc) JointState() []any { return d.list("joint_state") }

// PoseEstimation returns the "pose_estimation" sub-document.
func (d Doc) PoseEstimation() map[string]any { return d.sub("pose_estimation") }

// Transforms returns the "transform" array entries.
func (d Doc) Transforms() []any { return d.list("transform") }

// Tag returns the "tag" array entries (rating labels attached to this
// document) as a string slice, ignoring non-string entries.
func (d Doc) Tag() []string {
	raw := d.list("tag")
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// WithTag returns a copy of d with "tag" replaced.
func (d Doc) WithTag(tags []string) Doc {
	cp := make(map[string]any, len(d.m)+1)
	for k, v := range d.m {
		cp[k] = v
	}
	anyTags := make([]any, len(tags))
	for i, t := range tags {
		anyTags[i] = t
	}
	cp["tag"] = anyTags
	return Doc{m: cp}
}

// ID returns the store-assigned document identifier, passed through
// opaquely so Write can round-trip it for idempotent upserts.
func (d Doc) ID() any { return d.m["_id"] }

// Query is an opaque filter handed to Find; concrete DocumentSource
// implementations interpret it in their own terms (e.g. a Mongo BSON
// filter document).
type Query = map[string]any

// Projection restricts which fields Find returns; nil means all
// fields.
type Projection = map[string]int

// Sort is an ordered list of sort keys; each SortField names a field
// and sorts it ascending when Ascending is true, descending otherwise.
type Sort = []SortField

type SortField struct {
	Field     string
	Ascending bool
}

// Cursor is a lazy, finite, single-pass sequence of documents. Next
// advances and reports whether a document is available; Doc returns
// the current document. Close releases any underlying resources and
// must be called even after Next returns false.
type Cursor interface {
	Next(ctx context.Context) bool
	Doc() Doc
	Err() error
	Close(ctx context.Context) error
}

// DocumentSource is the external collaborator the core consumes
// (spec §4.2). Implementations must be safe for concurrent use.
type DocumentSource interface {
	// Count returns the number of documents in db.col.
	Count(ctx context.Context, db, col string) (int64, error)

	// Iter returns a new cursor over every document in db.col, in
	// natural (insertion) order; calling Iter again restarts the scan.
	Iter(ctx context.Context, db, col string) (Cursor, error)

	// Slice returns a cursor over up to limit documents in db.col
	// starting after skip, in natural order.
	Slice(ctx context.Context, db, col string, skip, limit int64) (Cursor, error)

	// Find returns a cursor over documents in db.col matching query,
	// shaped by projection and sort, with skip/limit paging.
	Find(ctx context.Context, db, col string, query Query, projection Projection, sort Sort, skip, limit int64) (Cursor, error)

	// Write upserts docs into db.col; idempotent by document id. The
	// batch is all-or-nothing: a partial failure must not leave a
	// torn write (spec §7, rating mutations are all-or-nothing).
	Write(ctx context.Context, db, col string, docs []Doc) error

	// ListDatabases and ListCollections back the supplemented
	// /list_all endpoint (SPEC_FULL §8).
	ListDatabases(ctx context.Context) ([]string, error)
	ListCollections(ctx context.Context, db string) ([]string, error)
}
