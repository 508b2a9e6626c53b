// Package vizstream defines the viewer transport interface (spec §1,
// "the visualization transport library... opaque: accepts
// (entity_path, timestamp, component) writes and serves them over a
// network port"). The core only depends on this interface; localstream
// provides the concrete Relay-side sink.
/*
 * Copyright (c) 2026, RibbonsAlmark. All rights reserved.
 */
package vizstream

// Component is an opaque viewer data type: image, 3D transform,
// scalar, text document, point cloud, and so on. Concrete types live
// alongside their producing Processor.
type Component interface {
	// Columnar reports whether this component supports a batched,
	// columnar write (one call covering many indices) rather than
	// one Log call per index. The send pipeline (spec §4.5) falls
	// back to per-item Log when this is false.
	Columnar() bool
}

// ColumnWriter is implemented by components whose producing Processor
// can batch many same-path writes into one columnar call.
type ColumnWriter interface {
	Component
	// WriteColumns is handed the parallel (indices, components) pair
	// already sorted by index, for a single entity_path.
	WriteColumns(s Stream, path string, indices []int64, components []Component) error
}

// Stream is one session's bound viewer transport endpoint.
type Stream interface {
	// SetTimeSequence marks the current time-axis index for
	// subsequent Log calls on this goroutine's logical timeline.
	SetTimeSequence(idx int64)

	// Log writes one component at path at the current time index.
	Log(path string, c Component) error

	// LogColumns performs a columnar batched write of many components
	// at path, with per-entry indices supplied explicitly (bypassing
	// SetTimeSequence).
	LogColumns(path string, indices []int64, components []Component) error

	// SetTimeRange publishes the session's known frame-index bounds
	// [lo, hi] on the time axis, used by the viewer's scrubber.
	SetTimeRange(lo, hi int64)

	// Serve binds the stream to port with the given in-memory ceiling
	// in bytes and begins serving the viewer protocol.
	Serve(port int, memoryCeilingBytes int64) error

	// Disconnect tears the stream down; safe to call multiple times.
	Disconnect()
}
