package session

import (
	"time"

	"github.com/RibbonsAlmark/Relay/rmetrics"
)

const consumerPollTimeout = 100 * time.Millisecond

// seqConsumer drains seq_queue strictly FIFO (spec §4.5, "Seq
// consumer").
func (s *Session) seqConsumer() {
	defer s.consumerWG.Done()
	b := newBatcher(s.cfg, s.stream, s.UUID, "seq")
	for {
		if s.isDead.Load() {
			b.flush()
			return
		}
		item, ok := s.seqQueue.Get(consumerPollTimeout)
		if ok {
			for path, c := range item.Payload {
				b.add(path, item.FrameIdx, c)
			}
		}
		rmetrics.QueueDepth.WithLabelValues("seq").Set(float64(s.seqQueue.Len()))
		if b.shouldFlush(!ok) {
			b.flush()
		}
	}
}

// asyncConsumer drains async_queue ordered by (priority, counter);
// multiple instances run concurrently (spec §4.5, "Async consumers").
func (s *Session) asyncConsumer() {
	defer s.consumerWG.Done()
	b := newBatcher(s.cfg, s.stream, s.UUID, "async")
	for {
		if s.isDead.Load() {
			b.flush()
			return
		}
		item, ok := s.asyncQueue.Get(consumerPollTimeout)
		if ok {
			for path, c := range item.payload {
				b.add(path, item.frameIdx, c)
			}
		}
		rmetrics.QueueDepth.WithLabelValues("async").Set(float64(s.asyncQueue.Len()))
		if b.shouldFlush(!ok) {
			b.flush()
		}
	}
}

// alignedConsumer drains aligned_queue with the same batching
// discipline (spec §4.5, "Aligned consumer").
func (s *Session) alignedConsumer() {
	defer s.consumerWG.Done()
	b := newBatcher(s.cfg, s.stream, s.UUID, "aligned")
	for {
		if s.isDead.Load() {
			b.flush()
			return
		}
		item, ok := s.alignedQueue.Get(consumerPollTimeout)
		if ok {
			for path, c := range item.payload {
				b.add(path, item.frameIdx, c)
			}
		}
		rmetrics.QueueDepth.WithLabelValues("aligned").Set(float64(s.alignedQueue.Len()))
		if b.shouldFlush(!ok) {
			b.flush()
		}
	}
}
