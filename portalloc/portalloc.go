// Package portalloc leases TCP ports from a fixed range for per-session
// viewer transports, grounded on the original's PortManager
// (backend/app/core.py / port_manager.py): scan-and-probe under a single
// mutex, idempotent release.
/*
 * Copyright (c) 2026, RibbonsAlmark. All rights reserved.
 */
package portalloc

import (
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/RibbonsAlmark/Relay/rerr"
)

type Allocator struct {
	mu    sync.Mutex
	start int
	end   int
	used  map[int]struct{}
}

func New(start, end int) *Allocator {
	return &Allocator{start: start, end: end, used: make(map[int]struct{})}
}

// Acquire scans [start, end] and returns the first port that is both
// unleased here and locally bindable. Fails with rerr.OverloadedError
// (ResourceExhausted, spec §4.1) if none is free.
func (a *Allocator) Acquire() (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for port := a.start; port <= a.end; port++ {
		if _, leased := a.used[port]; leased {
			continue
		}
		if isBindable(port) {
			a.used[port] = struct{}{}
			return port, nil
		}
	}
	return 0, rerr.NewOverloaded("no free ports in [%d, %d]", a.start, a.end)
}

// Release is idempotent; releasing an unknown or already-released port is a
// no-op.
func (a *Allocator) Release(port int) {
	a.mu.Lock()
	delete(a.used, port)
	a.mu.Unlock()
}

// isBindable is a best-effort local probe: it succeeds only if nothing else
// is currently listening on the port.
func isBindable(port int) bool {
	ln, err := net.Listen("tcp", fmtHostPort(port))
	if err != nil {
		return false
	}
	ln.Close()
	// small grace period lets the OS release the socket before the caller
	// actually binds it for real (best-effort; racy under heavy concurrent
	// acquisition, which the spec accepts — bindability is advisory).
	time.Sleep(time.Millisecond)
	return true
}

func fmtHostPort(port int) string {
	return ":" + strconv.Itoa(port)
}
