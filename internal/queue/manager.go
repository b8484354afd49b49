// Package queue applies catalog price updates asynchronously through an
// autoscaled worker pool.
package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fairyhunter13/cart-reservation-service/internal/config"
	"github.com/fairyhunter13/cart-reservation-service/internal/model"
	"github.com/fairyhunter13/cart-reservation-service/internal/obs"
	"github.com/shopspring/decimal"
)

// ErrIntakeClosed is returned by Submit once shutdown has started.
var ErrIntakeClosed = errors.New("price intake closed")

// Catalog is the product table prices are checked against and applied to.
// store.Products satisfies it.
type Catalog interface {
	Get(id string) (model.Product, error)
	ApplyPrice(u model.PriceUpdate) bool
}

// Manager validates price updates at intake and runs the autoscaled workers
// that apply them.
type Manager struct {
	cfg     config.Config
	q       *Queue
	target  Catalog
	seq     Sequencer
	applied atomic.Uint64
	ctx     context.Context
	cancel  context.CancelFunc

	mu            sync.Mutex
	workerCancels []context.CancelFunc
}

func NewManager(cfg config.Config, q *Queue, target Catalog) *Manager {
	return &Manager{cfg: cfg, q: q, target: target}
}

// Start begins processing and autoscaling in the background.
func (m *Manager) Start(parent context.Context) {
	m.ctx, m.cancel = context.WithCancel(parent)
	m.q.Start(m.ctx, m.cfg.QueueHighWatermark)
	m.addWorkers(m.cfg.InitialWorkerCount)
	go m.scaler()
}

// Stop cancels background routines and stops workers.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.mu.Lock()
	for _, c := range m.workerCancels {
		c()
	}
	m.workerCancels = nil
	m.mu.Unlock()
}

func (m *Manager) scaler() {
	t := time.NewTicker(m.cfg.ScaleInterval)
	defer t.Stop()
	idleTicks := 0
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-t.C:
			pending := m.q.Pending()
			wc := m.WorkerCount()
			if pending > wc*m.cfg.ScaleUpBacklogPerWorker && wc < m.cfg.WorkerMax {
				m.addWorkers(1)
				idleTicks = 0
				continue
			}
			if pending == 0 {
				idleTicks++
				if idleTicks >= m.cfg.ScaleDownIdleTicks && wc > m.cfg.WorkerMin {
					m.removeWorkers(1)
					idleTicks = 0
				}
			} else {
				idleTicks = 0
			}
		}
	}
}

func (m *Manager) addWorkers(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < n; i++ {
		wctx, cancel := context.WithCancel(m.ctx)
		m.workerCancels = append(m.workerCancels, cancel)
		go m.worker(wctx)
	}
	obs.Logger.Info("price_workers_scaled", "worker_count", len(m.workerCancels))
}

func (m *Manager) removeWorkers(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n > len(m.workerCancels) {
		n = len(m.workerCancels)
	}
	for i := 0; i < n; i++ {
		c := m.workerCancels[len(m.workerCancels)-1]
		m.workerCancels = m.workerCancels[:len(m.workerCancels)-1]
		c()
	}
	obs.Logger.Info("price_workers_scaled", "worker_count", len(m.workerCancels))
}

func (m *Manager) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-m.q.Out():
			if m.target.ApplyPrice(u) {
				m.applied.Add(1)
			} else {
				obs.Logger.Debug("price_update_stale", "product_id", u.ProductID, "sequence", u.Sequence)
			}
			m.q.MarkProcessed()
		}
	}
}

// Submit validates a price change, stamps it with the next sequence and
// queues it. Unknown products are rejected here so nothing is dropped later.
func (m *Manager) Submit(productID string, price decimal.Decimal) (model.PriceUpdate, error) {
	if m.q.IsClosed() {
		return model.PriceUpdate{}, ErrIntakeClosed
	}
	if productID == "" {
		return model.PriceUpdate{}, model.NewValidationError("product_id", "is required")
	}
	if !price.IsPositive() {
		return model.PriceUpdate{}, model.NewValidationError("price", "must be > 0")
	}
	if _, err := m.target.Get(productID); err != nil {
		return model.PriceUpdate{}, err
	}
	u := model.PriceUpdate{ProductID: productID, Price: price, Sequence: m.seq.Next()}
	if !m.q.Enqueue(u) {
		return model.PriceUpdate{}, ErrIntakeClosed
	}
	return u, nil
}

// WorkerCount returns the current number of workers.
func (m *Manager) WorkerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.workerCancels)
}

// Applied returns how many updates changed a catalog price.
func (m *Manager) Applied() uint64 { return m.applied.Load() }

// LastSequence returns the sequence of the most recently accepted update.
func (m *Manager) LastSequence() uint64 { return m.seq.Last() }

func (m *Manager) IsShuttingDown() bool { return m.q.IsClosed() }

func (m *Manager) CloseIntake() { m.q.CloseIntake() }

func (m *Manager) Stats() Stats { return m.q.Stats() }

// DrainUntil blocks until every accepted update was applied or superseded,
// or ctx is done.
func (m *Manager) DrainUntil(ctx context.Context) bool {
	for {
		if m.q.Stats().Settled() {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(50 * time.Millisecond):
		}
	}
}
