package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fairyhunter13/cart-reservation-service/internal/model"
	"github.com/fairyhunter13/cart-reservation-service/internal/obs"
)

// Queue holds at most one pending price per product. A newer update replaces
// the pending one in place, keeping the product's turn in line; an older one
// is dropped. A background broker hands pending prices to workers through a
// bounded channel.
type Queue struct {
	mu      sync.Mutex
	pending map[string]model.PriceUpdate
	turn    []string
	notify  chan struct{}
	out     chan model.PriceUpdate
	closed  atomic.Bool

	enqueued  atomic.Uint64
	coalesced atomic.Uint64
	processed atomic.Uint64
}

// Stats is a point-in-time view of the queue counters.
type Stats struct {
	Enqueued  uint64
	Coalesced uint64
	Processed uint64
	Pending   int
	Depth     int
}

// Settled reports whether every accepted update was applied or superseded.
func (s Stats) Settled() bool {
	return s.Pending == 0 && s.Depth == 0 && s.Enqueued == s.Processed+s.Coalesced
}

// New creates a Queue whose hand-off channel buffers outBuffer updates.
func New(outBuffer int) *Queue {
	if outBuffer <= 0 {
		outBuffer = 64
	}
	return &Queue{
		pending: make(map[string]model.PriceUpdate),
		notify:  make(chan struct{}, 1),
		out:     make(chan model.PriceUpdate, outBuffer),
	}
}

// Start runs the broker loop until ctx is done.
func (q *Queue) Start(ctx context.Context, highWatermark int) {
	go q.broker(ctx, highWatermark)
}

func (q *Queue) broker(ctx context.Context, highWatermark int) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		q.handOff()
		if highWatermark > 0 {
			if n := q.Pending(); n > highWatermark {
				obs.Logger.Warn("price_pending_high_watermark", "pending_products", n, "high_watermark", highWatermark)
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-q.notify:
		case <-ticker.C:
		}
	}
}

// handOff moves pending prices to workers, oldest product turn first, while
// the channel has room.
func (q *Queue) handOff() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.turn) > 0 && len(q.out) < cap(q.out) {
		id := q.turn[0]
		q.turn[0] = ""
		q.turn = q.turn[1:]
		u := q.pending[id]
		delete(q.pending, id)
		q.out <- u
	}
}

// Enqueue records u as the pending price of its product. It returns false
// once intake is closed.
func (q *Queue) Enqueue(u model.PriceUpdate) bool {
	if q.closed.Load() {
		return false
	}
	q.enqueued.Add(1)
	q.mu.Lock()
	prev, waiting := q.pending[u.ProductID]
	switch {
	case !waiting:
		q.pending[u.ProductID] = u
		q.turn = append(q.turn, u.ProductID)
	case u.Sequence > prev.Sequence:
		q.pending[u.ProductID] = u
		q.coalesced.Add(1)
	default:
		q.coalesced.Add(1)
	}
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

func (q *Queue) Out() <-chan model.PriceUpdate { return q.out }

// Pending returns how many products wait for a worker.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *Queue) MarkProcessed() { q.processed.Add(1) }

func (q *Queue) Stats() Stats {
	q.mu.Lock()
	pending := len(q.pending)
	q.mu.Unlock()
	return Stats{
		Enqueued:  q.enqueued.Load(),
		Coalesced: q.coalesced.Load(),
		Processed: q.processed.Load(),
		Pending:   pending,
		Depth:     pending + len(q.out),
	}
}

// CloseIntake disallows future enqueues.
func (q *Queue) CloseIntake() { q.closed.Store(true) }

func (q *Queue) IsClosed() bool { return q.closed.Load() }
