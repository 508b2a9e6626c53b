// Package processor implements the Processor/PayloadComputer component
// (spec §4.3): stateless per-document transforms producing
// (entity_path, component) pairs, split into a sequential lane and an
// async lane and combined by PayloadComputer into one Payload per
// lane per frame.
/*
 * Copyright (c) 2026, RibbonsAlmark. All rights reserved.
 */
package processor

import (
	"github.com/RibbonsAlmark/Relay/docstore"
	"github.com/RibbonsAlmark/Relay/relog"
	"github.com/RibbonsAlmark/Relay/rmetrics"
	"github.com/RibbonsAlmark/Relay/vizstream"
)

// Priority values; smaller sorts first (spec §3, "priority: int
// (smaller = higher)").
const (
	PriorityHighest = 0
	PriorityHigh    = 1
	PriorityDefault = 2
	PriorityMedium  = 3
	PriorityLow     = 4
)

// Output is one (entity_path, component) pair yielded by a Processor.
type Output struct {
	Path      string
	Component vizstream.Component
}

// Payload is the result of applying one lane's processors to one doc
// (spec §3). An empty payload is legal.
type Payload map[string]vizstream.Component

// Context carries the per-frame, per-session information a Processor
// needs beyond the document itself. It is assembled by package session
// and passed through unchanged to every processor invocation for a
// given frame.
type Context struct {
	FrameIdx   int64
	SessionID  string
	Dataset    string
	Collection string

	// Catalog, when non-nil, is the cached serialized source catalog
	// (SPEC_FULL §4 "Source catalog"), emitted once at frame 0.
	Catalog []byte

	Image ImageConfig
}

// ImageConfig carries the COLOR_IMG_*/DEPTH_IMG_* settings consumed by
// ImageProcessor.
type ImageConfig struct {
	ColorMaxWidth int
	ColorQuality  int
	DepthMaxWidth int
	DepthCompress bool
}

// Processor is a stateless transform: deterministic given the same
// doc, and must not retain references to doc after Process returns
// (spec §3).
type Processor interface {
	Sequential() bool
	Priority() int
	Process(doc docstore.Doc, ctx Context) ([]Output, error)
}

// Registry is the default ordered set of processors (spec §4.3).
type Registry []Processor

// DefaultRegistry returns the seven default processors.
func DefaultRegistry() Registry {
	return Registry{
		PoseProcessor{},
		TransformProcessor{},
		JointProcessor{},
		UIPanelProcessor{},
		ImageProcessor{},
		LidarProcessor{},
		MetaProcessor{},
	}
}

// Sequential returns the subset with Sequential() == true.
func (r Registry) Sequential() Registry { return r.filter(true) }

// Async returns the subset with Sequential() == false.
func (r Registry) Async() Registry { return r.filter(false) }

func (r Registry) filter(sequential bool) Registry {
	out := make(Registry, 0, len(r))
	for _, p := range r {
		if p.Sequential() == sequential {
			out = append(out, p)
		}
	}
	return out
}

// PayloadComputer applies a lane's processors to one doc (spec §4.3).
type PayloadComputer struct {
	Sequential Registry
	Async      Registry
}

func NewPayloadComputer(reg Registry) PayloadComputer {
	return PayloadComputer{Sequential: reg.Sequential(), Async: reg.Async()}
}

// ComputeSequential runs the sequential-lane processors, optionally
// restricted to target (when non-nil, only processors whose Name is in
// target run — used by the UI-only refresh path, SPEC_FULL §4).
func (pc PayloadComputer) ComputeSequential(doc docstore.Doc, ctx Context, target map[string]bool) (int, Payload) {
	return compute(pc.Sequential, doc, ctx, target)
}

// ComputeAsync runs the async-lane processors, with the same optional
// target restriction.
func (pc PayloadComputer) ComputeAsync(doc docstore.Doc, ctx Context, target map[string]bool) (int, Payload) {
	return compute(pc.Async, doc, ctx, target)
}

func compute(procs Registry, doc docstore.Doc, ctx Context, target map[string]bool) (int, Payload) {
	minPriority := PriorityLow
	payload := make(Payload)
	for _, p := range procs {
		if target != nil && !target[Name(p)] {
			continue
		}
		outs, err := safeProcess(p, doc, ctx)
		if err != nil {
			relog.Warningf("processor %s: frame %d: %v", Name(p), ctx.FrameIdx, err)
			rmetrics.ProcessorFaultsTotal.WithLabelValues(Name(p)).Inc()
			continue
		}
		if len(outs) == 0 {
			continue
		}
		if p.Priority() < minPriority {
			minPriority = p.Priority()
		}
		for _, o := range outs {
			payload[o.Path] = o.Component
		}
	}
	return minPriority, payload
}

// safeProcess recovers from a panicking processor so one processor's
// fault never aborts the frame (spec §4.3, §7 ProcessorFault).
func safeProcess(p Processor, doc docstore.Doc, ctx Context) (outs []Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError{processor: Name(p), value: r}
		}
	}()
	return p.Process(doc, ctx)
}

type panicError struct {
	processor string
	value     any
}

func (e panicError) Error() string {
	return "panic in processor " + e.processor
}
