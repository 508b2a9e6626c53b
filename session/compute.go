package session

import (
	"context"
	"sync/atomic"

	"github.com/RibbonsAlmark/Relay/docstore"
	"github.com/RibbonsAlmark/Relay/processor"
)

// PushFrames submits frames starting at start_idx for compute (spec
// §4.4). Negative start_idx means "append relative to max_frame_idx".
// Returns false without enqueuing anything if the session is dead.
func (s *Session) PushFrames(ctx context.Context, frames []docstore.Doc, startIdx int64) bool {
	if s.isDead.Load() {
		return false
	}
	base := s.resolveBase(startIdx)

	for atomicMax := atomic.LoadInt64(&s.maxFrameIdx); ; atomicMax = atomic.LoadInt64(&s.maxFrameIdx) {
		want := base + int64(len(frames))
		if want <= atomicMax {
			break
		}
		if atomic.CompareAndSwapInt64(&s.maxFrameIdx, atomicMax, want) {
			break
		}
	}

	alignment := s.AlignmentMode()
	for i, f := range frames {
		idx := base + int64(i)
		doc := f
		s.seqPool.Submit(func() { s.sequentialHandler(doc, idx, alignment) })
		s.asyncPool.Submit(func() { s.asyncHandler(ctx, doc, idx, alignment) })
	}
	return true
}

// resolveBase implements spec §4.4's start_idx resolution: "base =
// max(0, max_frame_idx + start_idx + 1)" for negative start_idx,
// absolute otherwise.
func (s *Session) resolveBase(startIdx int64) int64 {
	if startIdx >= 0 {
		return startIdx
	}
	max := atomic.LoadInt64(&s.maxFrameIdx)
	base := max + startIdx + 1
	if base < 0 {
		base = 0
	}
	return base
}

func (s *Session) frameContext(idx int64) processor.Context {
	return processor.Context{
		FrameIdx:   idx,
		SessionID:  s.UUID,
		Dataset:    s.Dataset,
		Collection: s.Collection,
		Catalog:    s.catalogBytes(),
		Image: processor.ImageConfig{
			ColorMaxWidth: s.cfg.ColorImgMaxWidth,
			ColorQuality:  s.cfg.ColorImgQuality,
			DepthMaxWidth: s.cfg.DepthImgMaxWidth,
			DepthCompress: s.cfg.DepthImgCompress,
		},
	}
}

// sequentialHandler runs the sequential-lane processors for one frame
// (spec §4.4 "A handler").
func (s *Session) sequentialHandler(doc docstore.Doc, idx int64, alignment bool) {
	if s.isDead.Load() || s.stopSignal.Load() {
		return
	}
	_, payload := s.computer.ComputeSequential(doc, s.frameContext(idx), nil)
	if s.isDead.Load() || s.stopSignal.Load() {
		return
	}
	if alignment {
		s.reportAligned(idx, &payload, nil, processor.PriorityLow)
		return
	}
	if len(payload) == 0 {
		return
	}
	s.seqQueue.Put(seqItem{FrameIdx: idx, Payload: payload})
}

// asyncHandler runs the async-lane processors for one frame.
func (s *Session) asyncHandler(ctx context.Context, doc docstore.Doc, idx int64, alignment bool) {
	if s.isDead.Load() || s.stopSignal.Load() {
		return
	}
	minPriority, payload := s.computer.ComputeAsync(doc, s.frameContext(idx), nil)
	if s.isDead.Load() || s.stopSignal.Load() {
		return
	}
	if alignment {
		s.reportAligned(idx, nil, &payload, minPriority)
		return
	}
	if len(payload) == 0 {
		return
	}
	s.asyncQueue.Put(asyncItem{
		priority: minPriority,
		frameIdx: idx,
		counter:  s.nextAsyncCounter(),
		payload:  payload,
	})
}

// reportAligned merges the two lanes' reports for idx (spec §4.5
// "Alignment mode"): on the second report, union the payloads (async
// wins on key collision) and enqueue onto aligned_queue.
func (s *Session) reportAligned(idx int64, seqPayload, asyncPayload *processor.Payload, priority int) {
	s.alignMu.Lock()
	entry := s.alignBuf[idx]
	if entry == nil {
		entry = &alignmentEntry{}
		s.alignBuf[idx] = entry
	}
	if seqPayload != nil {
		entry.seq = seqPayload
		entry.haveSeq = true
	}
	if asyncPayload != nil {
		wasAsync := entry.haveAsync
		entry.async = asyncPayload
		entry.haveAsync = true
		if !wasAsync || priority < entry.priority {
			entry.priority = priority
		}
	}
	ready := entry.haveSeq && entry.haveAsync
	if ready {
		delete(s.alignBuf, idx)
	}
	s.alignMu.Unlock()

	if !ready {
		return
	}
	merged := make(processor.Payload, len(*entry.seq)+len(*entry.async))
	for k, v := range *entry.seq {
		merged[k] = v
	}
	for k, v := range *entry.async {
		merged[k] = v
	}
	if len(merged) == 0 {
		return
	}
	s.alignedQueue.Put(asyncItem{
		priority: entry.priority,
		frameIdx: idx,
		counter:  s.nextAsyncCounter(),
		payload:  merged,
	})
}

// RefreshUI re-runs only targeted async processors over ranges (or the
// whole cache when ranges is nil), enqueuing results onto async_queue
// (spec §4.4 "_execute_recompute_pipeline").
func (s *Session) RefreshUI(ctx context.Context, targets map[string]bool, ranges [][2]int64) {
	docs := s.docsForRanges(ranges)
	for idx, doc := range docs {
		fidx, d := idx, doc
		s.asyncPool.Submit(func() {
			if s.isDead.Load() || s.stopSignal.Load() {
				return
			}
			_, payload := s.computer.ComputeAsync(d, s.frameContext(fidx), targets)
			if len(payload) == 0 {
				return
			}
			s.asyncQueue.Put(asyncItem{
				priority: processor.PriorityHighest,
				frameIdx: fidx,
				counter:  s.nextAsyncCounter(),
				payload:  payload,
			})
		})
	}
}

// docsForRanges resolves ranges against the full cache (preferred) or
// the recent-frames cache, returning frame_idx -> doc.
func (s *Session) docsForRanges(ranges [][2]int64) map[int64]docstore.Doc {
	out := make(map[int64]docstore.Doc)
	if full, ok := s.FullFrames(); ok {
		if len(ranges) == 0 {
			for i, d := range full {
				out[int64(i)] = d
			}
			return out
		}
		for _, r := range ranges {
			lo, hi := clampRange(r[0], r[1], int64(len(full)))
			for i := lo; i < hi; i++ {
				out[i] = full[i]
			}
		}
		return out
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if len(ranges) == 0 {
		for idx, d := range s.recentFramesCache {
			out[idx] = d
		}
		return out
	}
	for _, r := range ranges {
		for idx := r[0]; idx < r[1]; idx++ {
			if d, ok := s.recentFramesCache[idx]; ok {
				out[idx] = d
			}
		}
	}
	return out
}

func clampRange(lo, hi, n int64) (int64, int64) {
	if lo < 0 {
		lo = 0
	}
	if hi > n {
		hi = n
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

// ClearPendingQueues empties all three queues and the alignment buffer
// without regard to ordering (spec §4.5 "Emergency drain").
func (s *Session) ClearPendingQueues() {
	s.seqQueue.Drain()
	s.asyncQueue.Drain()
	s.alignedQueue.Drain()
	s.alignMu.Lock()
	s.alignBuf = make(map[int64]*alignmentEntry)
	s.alignMu.Unlock()
}
