package session

import "github.com/RibbonsAlmark/Relay/rmetrics"

// Cleanup is idempotent (spec §4.6): sets is_dead then stop_signal,
// cancels outstanding compute work, disconnects the stream, releases
// the port exactly once.
func (s *Session) Cleanup(reason string) {
	if !s.isDead.CompareAndSwap(false, true) {
		return // already cleaned up
	}
	s.stopSignal.Store(true)

	s.mu.Lock()
	cancel := s.playCancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	s.seqQueue.Close()
	s.asyncQueue.Close()
	s.alignedQueue.Close()

	s.seqPool.Stop()
	s.asyncPool.Stop()
	s.consumerWG.Wait()

	s.stream.Disconnect()
	if s.releasePort != nil {
		s.releasePort(s.Port)
	}

	rmetrics.SessionsActive.Dec()
	rmetrics.SessionsExpiredTotal.WithLabelValues(reason).Inc()
}
