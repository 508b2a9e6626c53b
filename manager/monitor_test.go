package manager

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/RibbonsAlmark/Relay/config"
	"github.com/RibbonsAlmark/Relay/docstore/memstore"
	"github.com/RibbonsAlmark/Relay/vizstream"
)

// fakeSampler lets specs drive admission control and memory-pressure
// cleanup deterministically, without reading the real host (spec §4.6,
// "Read mem_percent, cpu_percent from the host").
type fakeSampler struct{ cpu, mem float64 }

func (f *fakeSampler) CPUPercent() float64 { return f.cpu }
func (f *fakeSampler) MemPercent() float64 { return f.mem }

// noopStream is a vizstream.Stream that does nothing, standing in for
// the real viewer transport in manager specs that only exercise
// lifecycle, not the send pipeline.
type noopStream struct{}

func (noopStream) SetTimeSequence(int64)                                  {}
func (noopStream) Log(string, vizstream.Component) error                  { return nil }
func (noopStream) LogColumns(string, []int64, []vizstream.Component) error { return nil }
func (noopStream) SetTimeRange(int64, int64)                              {}
func (noopStream) Serve(int, int64) error                                 { return nil }
func (noopStream) Disconnect()                                            {}

func specConfig() *config.Config {
	return &config.Config{
		PortRangeStart: 21000, PortRangeEnd: 21100,
		MaxCPUPercent: 85, MaxMemoryPercent: 90,
		SessionTimeoutSecs:        1,
		MemoryPressureTimeoutSecs: 1,
		WorkerThreadMultiplier:    1,
		BackpressureQueueMultiplier: 4,
		SenderThreadCount:           1,
		BatchBufferSizeLimit:        1 << 20,
		BatchBufferTimeout:          time.Millisecond,
		SlidingWindowCacheSize:      10,
	}
}

func newSpecManager(cpu, mem float64) *Manager {
	store := memstore.New()
	sampler := &fakeSampler{cpu: cpu, mem: mem}
	return New(specConfig(), store, sampler, func() vizstream.Stream { return noopStream{} })
}

var _ = Describe("admission control (spec S6)", func() {
	It("refuses create_session when cpu_percent exceeds max_cpu_percent", func() {
		m := newSpecManager(99, 10)

		_, err := m.CreateSession(context.Background(), "db", "col")
		Expect(err).To(HaveOccurred())
		Expect(m.List()).To(BeEmpty())
	})

	It("admits create_session and leases a port when under threshold", func() {
		m := newSpecManager(10, 10)

		sess, err := m.CreateSession(context.Background(), "db", "col")
		Expect(err).NotTo(HaveOccurred())
		Expect(sess.Port).To(BeNumerically(">=", 21000))
		Expect(sess.Port).To(BeNumerically("<=", 21100))
		m.Remove(sess.UUID, "test")
	})
})

var _ = Describe("monitor loop heartbeat expiry (spec S3)", func() {
	It("expires a session once its heartbeat goes silent past timeout_seconds", func() {
		m := newSpecManager(10, 10)

		sess, err := m.CreateSession(context.Background(), "db", "col")
		Expect(err).NotTo(HaveOccurred())

		time.Sleep(1200 * time.Millisecond)
		m.tick()

		_, ok := m.Get(sess.UUID)
		Expect(ok).To(BeFalse())
		Expect(sess.IsDead()).To(BeTrue())
	})

	It("keeps a session alive when heartbeats keep arriving", func() {
		m := newSpecManager(10, 10)

		sess, err := m.CreateSession(context.Background(), "db", "col")
		Expect(err).NotTo(HaveOccurred())

		for i := 0; i < 3; i++ {
			time.Sleep(400 * time.Millisecond)
			Expect(m.KeepAlive(sess.UUID)).To(BeTrue())
		}
		m.tick()

		_, ok := m.Get(sess.UUID)
		Expect(ok).To(BeTrue())
		m.Remove(sess.UUID, "test")
	})

	It("returns false for heartbeat against an already-cleaned session", func() {
		m := newSpecManager(10, 10)

		sess, err := m.CreateSession(context.Background(), "db", "col")
		Expect(err).NotTo(HaveOccurred())
		m.Remove(sess.UUID, "manual")

		Expect(m.KeepAlive(sess.UUID)).To(BeFalse())
	})
})

var _ = Describe("monitor loop memory pressure", func() {
	It("also expires idle sessions once mem_percent exceeds max_memory_percent", func() {
		m := newSpecManager(10, 95)
		// Keep the plain heartbeat timeout out of reach so that only the
		// memory-pressure timeout can expire the session.
		m.cfg.SessionTimeoutSecs = 300

		sess, err := m.CreateSession(context.Background(), "db", "col")
		Expect(err).NotTo(HaveOccurred())

		time.Sleep(1200 * time.Millisecond)
		m.tick()

		_, ok := m.Get(sess.UUID)
		Expect(ok).To(BeFalse())
	})
})
