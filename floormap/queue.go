package floormap

import (
	"sync"

	"go.uber.org/zap"
)

type queuedTriple struct {
	frames [NumCameras]CameraFrame
	pose   Pose
}

// TripleQueue runs a TripleHandler on a single worker goroutine so that MQTT
// message callbacks return immediately. Triples are handled in the order they
// were queued. When the queue is full the oldest waiting triple is discarded.
type TripleQueue struct {
	handler TripleHandler
	logger  *zap.Logger

	ch   chan queuedTriple
	done chan struct{}

	mu        sync.Mutex
	closed    bool
	discarded int
}

// NewTripleQueue starts the worker. depth below 1 is treated as 1.
func NewTripleQueue(handler TripleHandler, depth int, logger *zap.Logger) *TripleQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	q := &TripleQueue{
		handler: handler,
		logger:  logger,
		ch:      make(chan queuedTriple, max(depth, 1)),
		done:    make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *TripleQueue) run() {
	defer close(q.done)
	for t := range q.ch {
		if q.handler != nil {
			q.handler(t.frames, t.pose)
		}
	}
}

// Handle queues a triple without blocking. It has the TripleHandler signature so
// it can be given to NewFrameAssembler directly.
func (q *TripleQueue) Handle(frames [NumCameras]CameraFrame, pose Pose) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}

	t := queuedTriple{frames: frames, pose: pose}
	select {
	case q.ch <- t:
		return
	default:
	}

	// Full: make room by discarding the oldest waiting triple.
	select {
	case <-q.ch:
		q.discarded++
		q.logger.Warn("mapping behind, discarding oldest queued triple", zap.Int("discarded", q.discarded))
	default:
	}
	select {
	case q.ch <- t:
	default:
		q.discarded++
	}
}

// Discarded counts triples dropped because the worker fell behind.
func (q *TripleQueue) Discarded() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.discarded
}

// Close stops accepting triples, lets the worker finish what is queued and waits
// for it.
func (q *TripleQueue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	q.mu.Unlock()
	<-q.done
}
