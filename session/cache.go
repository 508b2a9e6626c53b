package session

import (
	"context"

	"github.com/RibbonsAlmark/Relay/docstore"
	"github.com/RibbonsAlmark/Relay/relog"
)

// materializeFullCache is the background cache-builder task (spec
// §4.4 step 4): best-effort materializes every document into
// full_frames_cache, then publishes readiness via fullCacheReady.
// Cancellation checks stop_signal/is_dead between documents (spec §5).
func (s *Session) materializeFullCache(ctx context.Context) {
	count, err := s.store.Count(ctx, s.Dataset, s.Collection)
	if err != nil {
		relog.Warningf("session %s: count failed: %v", s.UUID, err)
		s.closeFullCacheReady()
		return
	}
	s.stream.SetTimeRange(0, count-1)

	cur, err := s.store.Iter(ctx, s.Dataset, s.Collection)
	if err != nil {
		relog.Warningf("session %s: iter failed: %v", s.UUID, err)
		s.closeFullCacheReady()
		return
	}
	defer cur.Close(ctx)

	docs := make([]docstore.Doc, 0, count)
	for cur.Next(ctx) {
		if s.isDead.Load() || s.stopSignal.Load() {
			s.closeFullCacheReady()
			return
		}
		docs = append(docs, cur.Doc())
	}
	if err := cur.Err(); err != nil {
		relog.Warningf("session %s: cache materializer cursor error: %v", s.UUID, err)
	}

	s.fullFramesMu.Lock()
	s.fullFrames = docs
	s.fullFramesMu.Unlock()
	s.closeFullCacheReady()
}

func (s *Session) closeFullCacheReady() {
	s.fullCacheOnce.Do(func() { close(s.fullCacheReady) })
}

// FullFrames returns the materialized full cache and whether it is
// ready yet (non-blocking, per spec §5).
func (s *Session) FullFrames() ([]docstore.Doc, bool) {
	select {
	case <-s.fullCacheReady:
	default:
		return nil, false
	}
	s.fullFramesMu.RLock()
	defer s.fullFramesMu.RUnlock()
	return s.fullFrames, s.fullFrames != nil
}

// WaitFullFrames blocks until the cache materializer publishes
// readiness (spec §5, "wait on the event (blocking)").
func (s *Session) WaitFullFrames(ctx context.Context) ([]docstore.Doc, bool) {
	select {
	case <-s.fullCacheReady:
		return s.FullFrames()
	case <-ctx.Done():
		return nil, false
	}
}

// LoadRange implements spec §4.4's load_range.
func (s *Session) LoadRange(ctx context.Context, start, end int64) error {
	if end <= start {
		return nil
	}
	if full, ok := s.FullFrames(); ok {
		lo, hi := clampRange(start, end, int64(len(full)))
		if hi <= lo {
			relog.Warningf("session %s: load_range(%d,%d) empty after clamp", s.UUID, start, end)
			return nil
		}
		s.PushFrames(ctx, full[lo:hi], start)
		return nil
	}

	missing := s.missingRanges(start, end)
	var assembled []docstore.Doc
	for _, r := range missing {
		cur, err := s.store.Slice(ctx, s.Dataset, s.Collection, r[0], r[1]-r[0])
		if err != nil {
			return err
		}
		idx := r[0]
		for cur.Next(ctx) {
			d := cur.Doc()
			s.cachePut(idx, d)
			idx++
		}
		cerr := cur.Err()
		cur.Close(ctx)
		if cerr != nil {
			return cerr
		}
	}

	s.cacheMu.Lock()
	for i := start; i < end; i++ {
		if d, ok := s.recentFramesCache[i]; ok {
			assembled = append(assembled, d)
			s.touchLRU(i)
		}
	}
	s.evictLRU()
	s.cacheMu.Unlock()

	if len(assembled) == 0 {
		relog.Warningf("session %s: load_range(%d,%d) returned no documents", s.UUID, start, end)
		return nil
	}
	s.PushFrames(ctx, assembled, start)
	return nil
}

// missingRanges computes needed \ keys(recent_frames_cache), coalesced
// into maximal consecutive sub-ranges (spec §4.4).
func (s *Session) missingRanges(start, end int64) [][2]int64 {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	var out [][2]int64
	var runStart int64 = -1
	for i := start; i < end; i++ {
		_, cached := s.recentFramesCache[i]
		if cached {
			if runStart >= 0 {
				out = append(out, [2]int64{runStart, i})
				runStart = -1
			}
			continue
		}
		if runStart < 0 {
			runStart = i
		}
	}
	if runStart >= 0 {
		out = append(out, [2]int64{runStart, end})
	}
	return out
}

func (s *Session) cachePut(idx int64, d docstore.Doc) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if _, exists := s.recentFramesCache[idx]; !exists {
		s.recentFramesLRU = append(s.recentFramesLRU, idx)
	}
	s.recentFramesCache[idx] = d
}

// touchLRU moves idx to the most-recently-used end. Caller holds
// cacheMu.
func (s *Session) touchLRU(idx int64) {
	for i, v := range s.recentFramesLRU {
		if v == idx {
			s.recentFramesLRU = append(s.recentFramesLRU[:i], s.recentFramesLRU[i+1:]...)
			break
		}
	}
	s.recentFramesLRU = append(s.recentFramesLRU, idx)
}

// evictLRU drops the least-recently-used entries until the cache is at
// or under SlidingWindowCacheSize. Caller holds cacheMu.
func (s *Session) evictLRU() {
	limit := s.cfg.SlidingWindowCacheSize
	if limit <= 0 {
		return
	}
	for len(s.recentFramesLRU) > limit {
		oldest := s.recentFramesLRU[0]
		s.recentFramesLRU = s.recentFramesLRU[1:]
		delete(s.recentFramesCache, oldest)
	}
}
