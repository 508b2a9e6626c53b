package session

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/RibbonsAlmark/Relay/docstore"
	"github.com/RibbonsAlmark/Relay/relog"
)

const playBatchSize = 15

// Play streams the whole collection (spec §4.4 "play_logic"). If a
// previous play is still running, it is cancelled and given up to 2s
// to exit before this run starts.
func (s *Session) Play(ctx context.Context) {
	s.mu.Lock()
	if s.playing {
		prevCancel := s.playCancel
		prevDone := s.playDone
		s.mu.Unlock()
		if prevCancel != nil {
			prevCancel()
		}
		if prevDone != nil {
			select {
			case <-prevDone:
			case <-time.After(2 * time.Second):
			}
		}
		s.mu.Lock()
	}
	playCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.playing = true
	s.playCancel = cancel
	s.playDone = done
	s.stopSignal.Store(false)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.playing = false
		s.playCancel = nil
		s.playDone = nil
		s.mu.Unlock()
		cancel()
		close(done)
	}()

	s.ClearPendingQueues()
	atomic.StoreInt64(&s.maxFrameIdx, 0)

	if s.cancelled(playCtx) {
		return
	}

	if full, ok := s.FullFrames(); ok {
		s.playFromSlice(playCtx, full)
	} else {
		s.playFromSource(playCtx)
	}

	for !s.cancelled(playCtx) {
		select {
		case <-playCtx.Done():
			return
		case <-time.After(200 * time.Millisecond):
		}
	}
}

func (s *Session) cancelled(ctx context.Context) bool {
	return ctx.Err() != nil || s.stopSignal.Load() || s.isDead.Load()
}

func (s *Session) playFromSlice(ctx context.Context, full []docstore.Doc) {
	for i := 0; i < len(full); i += playBatchSize {
		if s.cancelled(ctx) {
			return
		}
		end := min(i+playBatchSize, len(full))
		s.PushFrames(ctx, full[i:end], int64(i))
	}
}

func (s *Session) playFromSource(ctx context.Context) {
	cur, err := s.store.Iter(ctx, s.Dataset, s.Collection)
	if err != nil {
		relog.Warningf("session %s: play_logic iter failed: %v", s.UUID, err)
		return
	}
	defer cur.Close(ctx)

	var batch []docstore.Doc
	var idx int64
	flush := func() {
		if len(batch) == 0 {
			return
		}
		s.PushFrames(ctx, batch, idx-int64(len(batch)))
		batch = nil
	}
	for cur.Next(ctx) {
		if s.cancelled(ctx) {
			return
		}
		batch = append(batch, cur.Doc())
		idx++
		if len(batch) >= playBatchSize {
			flush()
		}
	}
	flush()
}
