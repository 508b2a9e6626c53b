package session

import (
	"sort"
	"time"

	"github.com/RibbonsAlmark/Relay/config"
	"github.com/RibbonsAlmark/Relay/relog"
	"github.com/RibbonsAlmark/Relay/rmetrics"
	"github.com/RibbonsAlmark/Relay/vizstream"
)

// sizeHinter is implemented by components that know their own
// approximate size; estimate_payload_size (spec §9) reads this hint
// where available and otherwise assigns a small constant.
type sizeHinter interface {
	NBytes() int
}

const defaultComponentBytes = 64

func estimateSize(c vizstream.Component) int {
	if h, ok := c.(sizeHinter); ok {
		return h.NBytes()
	}
	return defaultComponentBytes
}

type indexedComponent struct {
	idx int64
	c   vizstream.Component
}

// batcher is a per-consumer local buffer: a map from entity_path to
// its pending (idx, component) list, flushed on any of the three
// triggers in spec §4.5. It is not shared across consumers, so it
// needs no lock (spec §9 "Batching").
type batcher struct {
	cfg       *config.Config
	stream    vizstream.Stream
	sessionID string
	lane      string
	buf       map[string][]indexedComponent
	bytes     int64
	lastFlush time.Time
}

func newBatcher(cfg *config.Config, stream vizstream.Stream, sessionID, lane string) *batcher {
	return &batcher{
		cfg:       cfg,
		stream:    stream,
		sessionID: sessionID,
		lane:      lane,
		buf:       make(map[string][]indexedComponent),
		lastFlush: time.Now(),
	}
}

func (b *batcher) add(path string, idx int64, c vizstream.Component) {
	b.buf[path] = append(b.buf[path], indexedComponent{idx: idx, c: c})
	b.bytes += int64(estimateSize(c))
}

func (b *batcher) empty() bool { return len(b.buf) == 0 }

// shouldFlush reports whether any of spec §4.5's three triggers holds.
// gotNothing is true when the current dequeue attempt yielded no item.
func (b *batcher) shouldFlush(gotNothing bool) bool {
	if b.empty() {
		return false
	}
	if b.bytes >= b.cfg.BatchBufferSizeLimit {
		return true
	}
	if time.Since(b.lastFlush) > b.cfg.BatchBufferTimeout {
		return true
	}
	return gotNothing
}

// flush writes every buffered path to the stream, sorting each path's
// entries by idx first (spec §4.5 "within a path must sort by idx at
// flush time").
func (b *batcher) flush() {
	for path, entries := range b.buf {
		sort.Slice(entries, func(i, j int) bool { return entries[i].idx < entries[j].idx })
		indices := make([]int64, len(entries))
		components := make([]vizstream.Component, len(entries))
		for i, e := range entries {
			indices[i] = e.idx
			components[i] = e.c
		}
		if err := b.stream.LogColumns(path, indices, components); err != nil {
			relog.Warningf("session %s: flush %s failed: %v", b.sessionID, path, err)
			continue
		}
		rmetrics.FramesProcessedTotal.WithLabelValues(b.lane).Add(float64(len(entries)))
	}
	b.buf = make(map[string][]indexedComponent)
	b.bytes = 0
	b.lastFlush = time.Now()
}
