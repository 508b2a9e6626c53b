// Package manager implements SessionManager (spec §4.6): admission
// control, session registry, keep-alive, playback dispatch, and the
// heartbeat/memory-pressure monitor loop. Grounded on the teacher's
// housekeeper (`hk/`, now removed from this tree once its ginkgo/
// gomega test idiom was absorbed into manager_suite_test.go) for the
// "timer-driven loop over a registry, protected by one mutex" shape.
/*
 * Copyright (c) 2026, RibbonsAlmark. All rights reserved.
 */
package manager

import (
	"context"
	"sync"
	"time"

	"github.com/RibbonsAlmark/Relay/config"
	"github.com/RibbonsAlmark/Relay/docstore"
	"github.com/RibbonsAlmark/Relay/portalloc"
	"github.com/RibbonsAlmark/Relay/relog"
	"github.com/RibbonsAlmark/Relay/rerr"
	"github.com/RibbonsAlmark/Relay/rmetrics"
	"github.com/RibbonsAlmark/Relay/session"
	"github.com/RibbonsAlmark/Relay/sysload"
	"github.com/RibbonsAlmark/Relay/vizstream"
	"github.com/RibbonsAlmark/Relay/workerpool"
)

const monitorInterval = 10 * time.Second

// StreamFactory constructs the concrete vizstream.Stream a new Session
// binds to; production wires vizstream/localstream.New, tests wire a
// fake.
type StreamFactory func() vizstream.Stream

// Manager is the process-wide SessionManager (spec §4.6, "Global
// mutable state... initialize at startup, tear down on shutdown").
type Manager struct {
	cfg     *config.Config
	store   docstore.DocumentSource
	ports   *portalloc.Allocator
	sampler sysload.Sampler
	newStream StreamFactory
	playPool *workerpool.Pool

	mu       sync.Mutex
	sessions map[string]*session.Session

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func New(cfg *config.Config, store docstore.DocumentSource, sampler sysload.Sampler, newStream StreamFactory) *Manager {
	return &Manager{
		cfg:       cfg,
		store:     store,
		ports:     portalloc.New(cfg.PortRangeStart, cfg.PortRangeEnd),
		sampler:   sampler,
		newStream: newStream,
		playPool:  workerpool.New(4, 16),
		sessions:  make(map[string]*session.Session),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// CreateSession refuses with Overloaded when CPU percent exceeds the
// configured threshold (spec §4.6 "create_session").
func (m *Manager) CreateSession(ctx context.Context, dataset, collection string) (*session.Session, error) {
	if cpu := m.sampler.CPUPercent(); cpu > m.cfg.MaxCPUPercent {
		rmetrics.AdmissionRejectedTotal.Inc()
		return nil, rerr.NewOverloaded("cpu_percent exceeds max_cpu_percent")
	}
	rmetrics.CPUPercent.Set(m.sampler.CPUPercent())

	port, err := m.ports.Acquire()
	if err != nil {
		rmetrics.AdmissionRejectedTotal.Inc()
		return nil, err // portalloc already returns rerr.OverloadedError
	}

	stream := m.newStream()
	sess, err := session.New(ctx, m.cfg, m.store, stream, port, dataset, collection, m.ports.Release)
	if err != nil {
		m.ports.Release(port)
		return nil, err
	}

	m.mu.Lock()
	m.sessions[sess.UUID] = sess
	m.mu.Unlock()
	return sess, nil
}

// Get looks up a session by uuid.
func (m *Manager) Get(uuid string) (*session.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[uuid]
	return s, ok
}

// KeepAlive records a heartbeat (spec §4.6 "keep_alive").
func (m *Manager) KeepAlive(uuid string) bool {
	s, ok := m.Get(uuid)
	if !ok {
		return false
	}
	s.Heartbeat()
	return true
}

// StartPlayback submits play_logic to the manager's pool (spec §4.6
// "start_playback").
func (m *Manager) StartPlayback(uuid string) error {
	s, ok := m.Get(uuid)
	if !ok {
		return rerr.NewNotFound("session " + uuid)
	}
	m.playPool.Submit(func() { s.Play(context.Background()) })
	return nil
}

// List returns a snapshot of every tracked session, for /list_sessions.
func (m *Manager) List() map[string]*session.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*session.Session, len(m.sessions))
	for k, v := range m.sessions {
		out[k] = v
	}
	return out
}

// Remove drops uuid from the registry and cleans it up, if present.
func (m *Manager) Remove(uuid, reason string) {
	m.mu.Lock()
	s, ok := m.sessions[uuid]
	if ok {
		delete(m.sessions, uuid)
	}
	m.mu.Unlock()
	if ok {
		s.Cleanup(reason)
	}
}

// Run starts the monitor loop (spec §4.6) and blocks until Stop is
// called or ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	defer close(m.doneCh)
	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.tick()
		}
	}
}

// Stop signals Run to exit and waits for it to do so.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	<-m.doneCh
}

// tick is one monitor iteration (spec §4.6 "monitor loop").
func (m *Manager) tick() {
	cpu := m.sampler.CPUPercent()
	mem := m.sampler.MemPercent()
	rmetrics.CPUPercent.Set(cpu)
	rmetrics.MemPercent.Set(mem)

	now := time.Now()
	timeout := time.Duration(m.cfg.SessionTimeoutSecs) * time.Second
	memoryPressureTimeout := time.Duration(m.cfg.MemoryPressureTimeoutSecs) * time.Second

	type expiry struct {
		uuid    string
		reason  string
		session *session.Session
	}
	var toCleanup []expiry

	m.mu.Lock()
	for uuid, s := range m.sessions {
		idle := now.Sub(s.LastHeartbeat())
		switch {
		case idle > timeout:
			toCleanup = append(toCleanup, expiry{uuid, "heartbeat_timeout", s})
		case mem > m.cfg.MaxMemoryPercent && idle > memoryPressureTimeout:
			toCleanup = append(toCleanup, expiry{uuid, "memory_pressure", s})
		}
	}
	for _, e := range toCleanup {
		delete(m.sessions, e.uuid)
	}
	m.mu.Unlock()

	// cleanup() is bounded and does not block on external calls (spec
	// §4.6), so popping under the lock and cleaning up after releasing
	// it is enough to keep the critical section short.
	for _, e := range toCleanup {
		relog.Infof("manager: expiring session %s (%s)", e.uuid, e.reason)
		e.session.Cleanup(e.reason)
	}
}
