// Package localstream is the concrete vizstream.Stream Relay binds to
// a leased local port. Grounded on the teacher's channel-based
// streamer idiom (a bounded work channel drained by one goroutine,
// backpressure via a blocking send) now gone from this tree but
// carried forward here: entries are pushed onto a bounded channel and
// a single goroutine fans them out, line-delimited JSON, to whatever
// viewer has connected to the leased port. A size-estimate-based
// memory ceiling drops the oldest buffered entry rather than blocking
// the send pipeline, since the send pipeline's own queues are already
// the system's backpressure point (spec §5).
/*
 * Copyright (c) 2026, RibbonsAlmark. All rights reserved.
 */
package localstream

import (
	"bufio"
	"encoding/json"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	jsoniter "github.com/json-iterator/go"

	"github.com/RibbonsAlmark/Relay/relog"
	"github.com/RibbonsAlmark/Relay/vizstream"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

type entry struct {
	Path    string `json:"path"`
	Idx     int64  `json:"idx"`
	Payload []byte `json:"payload"`
	bytes   int
}

type timeRange struct {
	Lo int64 `json:"lo"`
	Hi int64 `json:"hi"`
}

// Stream is a localhost TCP sink: one goroutine serializes queued
// entries to every connected reader.
type Stream struct {
	mu        sync.Mutex
	conns     []net.Conn
	ln        net.Listener
	ch        chan entry
	curBytes  int64
	ceiling   int64
	timeIdx   int64
	closeOnce sync.Once
	done      chan struct{}
}

func New() *Stream {
	return &Stream{
		ch:   make(chan entry, 1024),
		done: make(chan struct{}),
	}
}

func (s *Stream) Serve(port int, memoryCeilingBytes int64) error {
	ln, err := net.Listen("tcp", hostPort(port))
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.ln = ln
	s.ceiling = memoryCeilingBytes
	s.mu.Unlock()

	go s.acceptLoop(ln)
	go s.fanoutLoop()
	return nil
}

func (s *Stream) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()
	}
}

func (s *Stream) fanoutLoop() {
	for {
		select {
		case e := <-s.ch:
			atomic.AddInt64(&s.curBytes, -int64(e.bytes))
			s.broadcast(e)
		case <-s.done:
			return
		}
	}
}

func (s *Stream) broadcast(e entry) {
	line, err := json.Marshal(e)
	if err != nil {
		return
	}
	line = append(line, '\n')
	s.mu.Lock()
	conns := s.conns
	s.mu.Unlock()
	for _, c := range conns {
		w := bufio.NewWriter(c)
		if _, err := w.Write(line); err != nil {
			relog.Warningf("localstream: write to viewer failed: %v", err)
			continue
		}
		_ = w.Flush()
	}
}

func (s *Stream) SetTimeSequence(idx int64) {
	atomic.StoreInt64(&s.timeIdx, idx)
}

func (s *Stream) Log(path string, c vizstream.Component) error {
	return s.enqueue(path, atomic.LoadInt64(&s.timeIdx), c)
}

func (s *Stream) LogColumns(path string, indices []int64, components []vizstream.Component) error {
	if cw, ok := firstColumnWriter(components); ok {
		return cw.WriteColumns(s, path, indices, components)
	}
	for i, c := range components {
		if err := s.enqueue(path, indices[i], c); err != nil {
			return err
		}
	}
	return nil
}

func firstColumnWriter(components []vizstream.Component) (vizstream.ColumnWriter, bool) {
	for _, c := range components {
		if c != nil && c.Columnar() {
			if cw, ok := c.(vizstream.ColumnWriter); ok {
				return cw, true
			}
		}
	}
	return nil, false
}

func (s *Stream) enqueue(path string, idx int64, c vizstream.Component) error {
	payload, err := jsonAPI.Marshal(c)
	if err != nil {
		return err
	}
	e := entry{Path: path, Idx: idx, Payload: payload, bytes: len(payload)}

	if s.ceiling > 0 && atomic.AddInt64(&s.curBytes, int64(e.bytes)) > s.ceiling {
		select {
		case dropped := <-s.ch:
			atomic.AddInt64(&s.curBytes, -int64(dropped.bytes))
		default:
		}
	}

	select {
	case s.ch <- e:
	case <-s.done:
	}
	return nil
}

func (s *Stream) SetTimeRange(lo, hi int64) {
	payload, _ := jsonAPI.Marshal(timeRange{Lo: lo, Hi: hi})
	s.broadcast(entry{Path: "__time_range__", Payload: payload})
}

func (s *Stream) Disconnect() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		if s.ln != nil {
			_ = s.ln.Close()
		}
		for _, c := range s.conns {
			_ = c.Close()
		}
		s.mu.Unlock()
	})
}

func hostPort(port int) string {
	return ":" + strconv.Itoa(port)
}
