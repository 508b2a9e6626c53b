// Package session implements the Session component (spec §3, §4.4,
// §4.5): the per-visualization-stream compute/send pipeline, its
// bounded queues, alignment buffer, and sliding-window range cache.
// Grounded on the teacher's transport/cluster ownership-tree shape
// (one struct owns its workers, its queues, and a stop signal checked
// at loop boundaries) though no single teacher file matches this
// component's exact shape — it is new code in the teacher's idiom.
/*
 * Copyright (c) 2026, RibbonsAlmark. All rights reserved.
 */
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/RibbonsAlmark/Relay/boundedqueue"
	"github.com/RibbonsAlmark/Relay/config"
	"github.com/RibbonsAlmark/Relay/docstore"
	"github.com/RibbonsAlmark/Relay/processor"
	"github.com/RibbonsAlmark/Relay/rerr"
	"github.com/RibbonsAlmark/Relay/rmetrics"
	"github.com/RibbonsAlmark/Relay/vizstream"
	"github.com/RibbonsAlmark/Relay/workerpool"
)

// uuidNamespace roots the deterministic per-session UUID derivation
// (spec §3, "derived deterministically from (dataset, collection,
// creation_timestamp)"). See DESIGN.md's UUID Open Question.
var uuidNamespace = uuid.NewSHA1(uuid.NameSpaceDNS, []byte("relay.session"))

type seqItem struct {
	FrameIdx int64
	Payload  processor.Payload
}

type asyncItem struct {
	priority int
	frameIdx int64
	counter  uint64
	payload  processor.Payload
}

func (a asyncItem) QueuePriority() int   { return a.priority }
func (a asyncItem) QueueCounter() uint64 { return a.counter }

// alignmentEntry holds whichever lane has reported first for a frame
// index, per spec §4.5 "Alignment mode".
type alignmentEntry struct {
	seq       *processor.Payload
	async     *processor.Payload
	priority  int
	haveSeq   bool
	haveAsync bool
}

// Session owns one visualization stream (spec §3).
type Session struct {
	UUID       string
	Dataset    string
	Collection string
	Port       int
	CreatedAt  time.Time

	cfg      *config.Config
	store    docstore.DocumentSource
	stream   vizstream.Stream
	releasePort func(int)

	computer processor.PayloadComputer

	seqPool   *workerpool.Pool
	asyncPool *workerpool.Pool

	seqQueue     *boundedqueue.FIFO[seqItem]
	asyncQueue   *boundedqueue.Priority[asyncItem]
	alignedQueue *boundedqueue.Priority[asyncItem]

	maxFrameIdx  int64 // atomic
	asyncCounter uint64 // atomic

	lastHeartbeat atomic.Int64 // unix nanos

	mu             sync.Mutex
	streamingMode  bool
	alignmentMode  bool
	playing        bool
	playCancel     context.CancelFunc
	playDone       chan struct{}
	stopSignal     atomic.Bool
	isDead         atomic.Bool

	alignMu  sync.Mutex
	alignBuf map[int64]*alignmentEntry

	cacheMu           sync.Mutex
	recentFramesCache map[int64]docstore.Doc
	recentFramesLRU   []int64 // front = least recently used

	fullCacheReady chan struct{}
	fullCacheOnce  sync.Once
	fullFramesMu   sync.RWMutex
	fullFrames     []docstore.Doc // nil until fullCacheReady closes successfully

	catalogMu sync.RWMutex
	catalog   []byte

	consumerWG sync.WaitGroup
	bgGroup    *errgroup.Group
}

// New constructs a Session, leases no port itself (the caller/manager
// already leased it), spawns the worker pools, consumers, and
// background materializer/catalog tasks, and returns immediately.
func New(ctx context.Context, cfg *config.Config, store docstore.DocumentSource, stream vizstream.Stream, port int, dataset, collection string, releasePort func(int)) (*Session, error) {
	now := time.Now()
	id := uuid.NewSHA1(uuidNamespace, []byte(fmt.Sprintf("%s|%s|%d", dataset, collection, now.UnixNano())))

	if err := stream.Serve(port, cfg.StreamMemoryCeilingBytes); err != nil {
		return nil, rerr.NewFatal("stream.Serve", err)
	}

	numCPU := numCPUHook()
	w := numCPU * cfg.WorkerThreadMultiplier
	if w < 1 {
		w = 1
	}
	backpressure := cfg.BackpressureQueueMultiplier
	if backpressure < 1 {
		backpressure = 1
	}

	s := &Session{
		UUID:        id.String(),
		Dataset:     dataset,
		Collection:  collection,
		Port:        port,
		CreatedAt:   now,
		cfg:         cfg,
		store:       store,
		stream:      stream,
		releasePort: releasePort,
		computer:    processor.NewPayloadComputer(processor.DefaultRegistry()),

		seqPool:   workerpool.New(1, 2*w),
		asyncPool: workerpool.New(w, w*backpressure),

		seqQueue:     boundedqueue.NewFIFO[seqItem](2 * w),
		asyncQueue:   boundedqueue.NewPriority[asyncItem](w * backpressure),
		alignedQueue: boundedqueue.NewPriority[asyncItem](w * backpressure),

		alignBuf:          make(map[int64]*alignmentEntry),
		recentFramesCache: make(map[int64]docstore.Doc),
		fullCacheReady:    make(chan struct{}),
	}
	s.lastHeartbeat.Store(now.UnixNano())

	s.bgGroup, _ = errgroup.WithContext(context.Background())
	s.bgGroup.Go(func() error { s.materializeFullCache(ctx); return nil })
	s.bgGroup.Go(func() error { s.buildCatalog(ctx); return nil })

	senders := cfg.SenderThreadCount
	if senders < 1 {
		senders = 1
	}
	s.consumerWG.Add(2 + senders)
	go s.seqConsumer()
	for i := 0; i < senders; i++ {
		go s.asyncConsumer()
	}
	go s.alignedConsumer()

	rmetrics.SessionsActive.Inc()
	rmetrics.SessionsCreatedTotal.Inc()
	return s, nil
}

// numCPUHook is overridden in tests to make worker-pool sizing
// deterministic; production uses runtime.NumCPU via sysload.
var numCPUHook = defaultNumCPU

func (s *Session) MaxFrameIdx() int64 { return atomic.LoadInt64(&s.maxFrameIdx) }

func (s *Session) IsDead() bool { return s.isDead.Load() }

func (s *Session) LastHeartbeat() time.Time {
	return time.Unix(0, s.lastHeartbeat.Load())
}

func (s *Session) Heartbeat() {
	s.lastHeartbeat.Store(time.Now().UnixNano())
}

func (s *Session) StreamingMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamingMode
}

func (s *Session) EnableStreamingMode() {
	s.mu.Lock()
	s.streamingMode = true
	s.mu.Unlock()
}

// EnableAlignmentMode is idempotent beyond the first call (spec §8
// round-trip property).
func (s *Session) EnableAlignmentMode() {
	s.mu.Lock()
	s.alignmentMode = true
	s.mu.Unlock()
}

func (s *Session) AlignmentMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alignmentMode
}

func (s *Session) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// nextAsyncCounter hands out the monotonic tie-break counter for
// async/aligned queue items (spec §3).
func (s *Session) nextAsyncCounter() uint64 {
	return atomic.AddUint64(&s.asyncCounter, 1)
}
