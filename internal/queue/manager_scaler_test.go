package queue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/fairyhunter13/cart-reservation-service/internal/config"
	"github.com/fairyhunter13/cart-reservation-service/internal/model"
	"github.com/shopspring/decimal"
)

// slowCatalog knows every product and applies slowly, so pending updates stay
// around long enough for the scaler to see them.
type slowCatalog struct{}

func (slowCatalog) Get(id string) (model.Product, error) {
	return model.Product{ID: id, Name: id, Price: decimal.NewFromInt(1)}, nil
}

func (slowCatalog) ApplyPrice(model.PriceUpdate) bool {
	time.Sleep(5 * time.Millisecond)
	return true
}

func TestManagerScaler_UpAndDown(t *testing.T) {
	// Configure aggressive scaling
	t.Setenv("WORKER_MIN", "1")
	t.Setenv("WORKER_MAX", "3")
	t.Setenv("WORKER_COUNT", "1")
	t.Setenv("SCALE_INTERVAL_MS", "50")
	t.Setenv("SCALE_UP_BACKLOG_PER_WORKER", "1")
	t.Setenv("SCALE_DOWN_IDLE_TICKS", "1")

	cfg := config.Load()
	q := New(8)
	mgr := NewManager(cfg, q, slowCatalog{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mgr.Start(ctx)
	defer mgr.Stop()

	for i := 0; i < 50; i++ {
		if _, err := mgr.Submit(fmt.Sprintf("scale-%d", i), decimal.NewFromInt(int64(i+1))); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if wc := mgr.WorkerCount(); wc > 1 {
			break
		}
		time.Sleep(25 * time.Millisecond)
	}
	if wc := mgr.WorkerCount(); wc <= 1 {
		t.Fatalf("expected scale up, worker_count=%d", wc)
	}

	ctxDrain, cancelDrain := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancelDrain()
	if ok := mgr.DrainUntil(ctxDrain); !ok {
		t.Fatalf("drain timeout")
	}
	deadline2 := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline2) {
		if wc := mgr.WorkerCount(); wc == cfg.WorkerMin {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if wc := mgr.WorkerCount(); wc != cfg.WorkerMin {
		t.Fatalf("expected scale down to %d, got %d", cfg.WorkerMin, wc)
	}
}
