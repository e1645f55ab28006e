package bridge

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/INDA25PlusPlus/nhg-net/internal/metrics"
	"github.com/INDA25PlusPlus/nhg-net/internal/protocol"
)

// Queue is an unbounded FIFO of protocol messages between the input side and the network side.
// Send never blocks on a slow consumer: a pump goroutine buffers everything in a slice
// and feeds the Receive channel in order.
// The depth gauge is only written by the pump, so it never lags behind a receive.
// There is no bound on depth; a sustained imbalance grows memory, which is fine for a
// two-party turn protocol but would need backpressure for anything chattier.

const DefaultHighWatermark = 64

var ErrClosed = errors.New("bridge: queue closed")

type Queue struct {
	name          string
	in            chan protocol.Message
	out           chan protocol.Message
	mu            sync.RWMutex // guards closed against concurrent Send/Close
	closed        bool
	depth         atomic.Int64
	highWatermark int64
	logger        *slog.Logger
	metrics       *metrics.Metrics
}

type Option func(*Queue)

func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) {
		q.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(q *Queue) {
		q.metrics = m
	}
}

func WithHighWatermark(n int) Option {
	return func(q *Queue) {
		q.highWatermark = int64(n)
	}
}

// constructor for Queue, starts the pump goroutine
func NewQueue(name string, opts ...Option) *Queue {
	q := &Queue{
		name:          name,
		in:            make(chan protocol.Message),
		out:           make(chan protocol.Message),
		highWatermark: DefaultHighWatermark,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}
	go q.pump()
	return q
}

// Send appends msg to the queue
func (q *Queue) Send(msg protocol.Message) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}

	depth := q.depth.Add(1)
	q.in <- msg // the pump is always ready to take from in while it is open

	if depth == q.highWatermark {
		q.logger.Warn("queue_high_watermark",
			"queue", q.name,
			"queue_depth", depth,
		)
	}
	return nil
}

// Deliver makes the queue usable as the transport's inbound sink
func (q *Queue) Deliver(msg protocol.Message) error {
	return q.Send(msg)
}

// Receive is closed once the queue is closed and every pending message was taken
func (q *Queue) Receive() <-chan protocol.Message {
	return q.out
}

// TryReceive polls without blocking
func (q *Queue) TryReceive() (protocol.Message, bool) {
	select {
	case msg, ok := <-q.out:
		return msg, ok
	default:
		return nil, false
	}
}

// Len is the number of messages sent but not yet received
func (q *Queue) Len() int {
	return int(q.depth.Load())
}

func (q *Queue) Name() string {
	return q.name
}

// Close stops accepting messages; pending ones are still delivered. Safe to call twice.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.in)
}

func (q *Queue) pump() {
	defer close(q.out)

	var pending []protocol.Message
	in := q.in
	for in != nil || len(pending) > 0 {
		var out chan<- protocol.Message // nil until there is something to hand out
		var next protocol.Message
		if len(pending) > 0 {
			out = q.out
			next = pending[0]
		}

		select {
		case msg, ok := <-in:
			if !ok {
				in = nil
				continue
			}
			pending = append(pending, msg)
			q.metrics.SetQueueDepth(q.name, int(q.depth.Load()))
		case out <- next:
			pending[0] = nil
			pending = pending[1:]
			q.metrics.SetQueueDepth(q.name, int(q.depth.Add(-1)))
		}
	}
}
