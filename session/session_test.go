package session

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/RibbonsAlmark/Relay/config"
	"github.com/RibbonsAlmark/Relay/docstore"
	"github.com/RibbonsAlmark/Relay/docstore/memstore"
	"github.com/RibbonsAlmark/Relay/vizstream"
)

// fakeStream is an in-process vizstream.Stream recorder used by
// session tests to assert ordering invariants without a real viewer
// connection (SPEC_FULL §8).
type fakeStream struct {
	mu      sync.Mutex
	byPath  map[string][]int64
	timeLo  int64
	timeHi  int64
}

func newFakeStream() *fakeStream {
	return &fakeStream{byPath: make(map[string][]int64)}
}

func (f *fakeStream) SetTimeSequence(int64) {}

func (f *fakeStream) Log(path string, c vizstream.Component) error {
	return f.LogColumns(path, []int64{0}, []vizstream.Component{c})
}

func (f *fakeStream) LogColumns(path string, indices []int64, _ []vizstream.Component) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byPath[path] = append(f.byPath[path], indices...)
	return nil
}

func (f *fakeStream) SetTimeRange(lo, hi int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timeLo, f.timeHi = lo, hi
}

func (f *fakeStream) Serve(int, int64) error { return nil }
func (f *fakeStream) Disconnect()            {}

func (f *fakeStream) indicesFor(path string) []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := append([]int64(nil), f.byPath[path]...)
	return cp
}

func seedDocs(n int) []map[string]any {
	docs := make([]map[string]any, n)
	for i := 0; i < n; i++ {
		docs[i] = map[string]any{
			"info":      map[string]any{"source": "camA", "timestamp": float64(i)},
			"transform": []any{map[string]any{"path": "/tf/a", "translation": []any{0.0, 0.0, 0.0}}},
		}
	}
	return docs
}

func newTestSession(t *testing.T, n int) (*Session, *fakeStream, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	store.Seed("db", "col", seedDocs(n))
	stream := newFakeStream()
	cfg := &config.Config{
		WorkerThreadMultiplier:      1,
		BackpressureQueueMultiplier: 4,
		SenderThreadCount:           2,
		BatchBufferSizeLimit:        1 << 20,
		BatchBufferTimeout:          10 * time.Millisecond,
		SlidingWindowCacheSize:      50,
	}
	prevHook := numCPUHook
	numCPUHook = func() int { return 1 }
	t.Cleanup(func() { numCPUHook = prevHook })

	s, err := New(context.Background(), cfg, store, stream, 12345, "db", "col", func(int) {})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Cleanup("test") })
	return s, stream, store
}

func TestPushFramesAdvancesMaxFrameIdx(t *testing.T) {
	s, _, _ := newTestSession(t, 0)
	docs := []docstore.Doc{docstore.NewDoc(map[string]any{"info": map[string]any{"source": "a"}})}
	if ok := s.PushFrames(context.Background(), docs, -1); !ok {
		t.Fatalf("PushFrames refused")
	}
	if got := s.MaxFrameIdx(); got != 1 {
		t.Fatalf("MaxFrameIdx() = %d, want 1", got)
	}
}

func TestPushFramesNegativeStartClampsToZero(t *testing.T) {
	s, _, _ := newTestSession(t, 0)
	docs := []docstore.Doc{docstore.NewDoc(nil)}
	s.PushFrames(context.Background(), docs, -100) // n > max_frame_idx(=0)
	if got := s.MaxFrameIdx(); got != 1 {
		t.Fatalf("MaxFrameIdx() = %d, want 1 (base clamped to 0)", got)
	}
}

func TestPushFramesRefusedAfterCleanup(t *testing.T) {
	s, _, _ := newTestSession(t, 0)
	s.Cleanup("early")
	ok := s.PushFrames(context.Background(), []docstore.Doc{docstore.NewDoc(nil)}, 0)
	if ok {
		t.Fatalf("PushFrames should refuse once is_dead")
	}
}

func TestSeqLaneOrderingMatchesEnqueueOrder(t *testing.T) {
	s, stream, _ := newTestSession(t, 0)
	docs := make([]docstore.Doc, 20)
	for i := range docs {
		docs[i] = docstore.NewDoc(map[string]any{
			"transform": []any{map[string]any{"path": "/tf/a", "translation": []any{0.0, 0.0, 0.0}}},
		})
	}
	s.PushFrames(context.Background(), docs, 0)

	deadline := time.Now().Add(2 * time.Second)
	for len(stream.indicesFor("/tf/a")) < 20 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	got := stream.indicesFor("/tf/a")
	if len(got) != 20 {
		t.Fatalf("got %d indices on /tf/a, want 20", len(got))
	}
	if !sort.IsSorted(int64Slice(got)) {
		t.Fatalf("/tf/a indices not monotonic: %v", got)
	}
}

type int64Slice []int64

func (s int64Slice) Len() int           { return len(s) }
func (s int64Slice) Less(i, j int) bool { return s[i] < s[j] }
func (s int64Slice) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

func TestEnableAlignmentModeIdempotent(t *testing.T) {
	s, _, _ := newTestSession(t, 0)
	s.EnableAlignmentMode()
	s.EnableAlignmentMode()
	if !s.AlignmentMode() {
		t.Fatalf("AlignmentMode() = false after enabling twice")
	}
}

func TestAlignmentBufferDrainsToZero(t *testing.T) {
	s, _, _ := newTestSession(t, 0)
	s.EnableAlignmentMode()
	docs := []docstore.Doc{docstore.NewDoc(map[string]any{
		"transform":   []any{map[string]any{"path": "/tf/a", "translation": []any{0.0, 0.0, 0.0}}},
		"joint_state": []any{map[string]any{"name": "elbow", "value": 1.0}},
	})}
	s.PushFrames(context.Background(), docs, 0)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s.alignMu.Lock()
		n := len(s.alignBuf)
		s.alignMu.Unlock()
		if n == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("alignment_buffer did not drain to zero")
}

func TestLoadRangeEmptyWhenEndLEStart(t *testing.T) {
	s, _, _ := newTestSession(t, 10)
	if err := s.LoadRange(context.Background(), 5, 5); err != nil {
		t.Fatalf("LoadRange: %v", err)
	}
	if s.MaxFrameIdx() != 0 {
		t.Fatalf("MaxFrameIdx() = %d, want 0 (no push on empty range)", s.MaxFrameIdx())
	}
}

func TestLoadRangeUsesCacheOnOverlap(t *testing.T) {
	s, _, store := newTestSession(t, 300)
	ctx := context.Background()
	if err := s.LoadRange(ctx, 100, 200); err != nil {
		t.Fatalf("LoadRange(100,200): %v", err)
	}
	s.cacheMu.Lock()
	cached := len(s.recentFramesCache)
	s.cacheMu.Unlock()
	if cached != 100 {
		t.Fatalf("cached = %d after first load, want 100", cached)
	}
	if err := s.LoadRange(ctx, 150, 250); err != nil {
		t.Fatalf("LoadRange(150,250): %v", err)
	}
	_ = store
}

func TestCleanupReleasesPortExactlyOnce(t *testing.T) {
	store := memstore.New()
	stream := newFakeStream()
	cfg := &config.Config{WorkerThreadMultiplier: 1, BackpressureQueueMultiplier: 4, SenderThreadCount: 1, BatchBufferSizeLimit: 1 << 20, BatchBufferTimeout: time.Millisecond}
	prevHook := numCPUHook
	numCPUHook = func() int { return 1 }
	defer func() { numCPUHook = prevHook }()

	released := 0
	var mu sync.Mutex
	s, err := New(context.Background(), cfg, store, stream, 9999, "db", "col", func(int) {
		mu.Lock()
		released++
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Cleanup("t1")
	s.Cleanup("t2")
	s.Cleanup("t3")
	mu.Lock()
	defer mu.Unlock()
	if released != 1 {
		t.Fatalf("releasePort called %d times, want 1", released)
	}
}

func TestNoEnqueueAfterCleanup(t *testing.T) {
	s, _, _ := newTestSession(t, 0)
	s.Cleanup("done")
	if s.seqQueue.Put(seqItem{}) {
		t.Fatalf("seqQueue.Put succeeded after Cleanup")
	}
	if s.asyncQueue.Put(asyncItem{}) {
		t.Fatalf("asyncQueue.Put succeeded after Cleanup")
	}
}
