package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/fairyhunter13/cart-reservation-service/internal/config"
	httpapi "github.com/fairyhunter13/cart-reservation-service/internal/http"
	"github.com/fairyhunter13/cart-reservation-service/internal/queue"
	"github.com/fairyhunter13/cart-reservation-service/internal/reservation"
	"github.com/fairyhunter13/cart-reservation-service/internal/store"
)

type product struct {
	ID    string  `json:"id"`
	Price float64 `json:"price"`
	Stock int64   `json:"stock"`
}

type cart struct {
	ID    string `json:"id"`
	Items []struct {
		ProductID string `json:"product_id"`
		Quantity  int64  `json:"quantity"`
	} `json:"items"`
	Total float64 `json:"total"`
}

// decodeData unwraps the {"data": ...} envelope of a response body.
func decodeData(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	body := struct {
		Data any `json:"data"`
	}{Data: v}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func startServer(t *testing.T) (*httptest.Server, *queue.Manager) {
	t.Helper()
	cfg := config.Load()
	products := store.NewProducts()
	svc := reservation.New(products, store.NewCarts())
	mgr := queue.NewManager(cfg, queue.New(128), products)
	ctx, cancel := context.WithCancel(context.Background())
	mgr.Start(ctx)
	srv := httptest.NewServer(httpapi.NewRouter(httpapi.NewApp(cfg, products, svc, mgr)))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		mgr.Stop()
	})
	return srv, mgr
}

func post(t *testing.T, client *http.Client, url, body string) *http.Response {
	t.Helper()
	r, _ := http.NewRequest(http.MethodPost, url, bytes.NewBufferString(body))
	r.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(r)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func createProduct(t *testing.T, u string, stock int) product {
	t.Helper()
	resp := post(t, http.DefaultClient, u+"/products", fmt.Sprintf(`{"name":"load","price":2.5,"stock":%d}`, stock))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var p product
	decodeData(t, resp, &p)
	return p
}

func getProduct(t *testing.T, u, id string) product {
	t.Helper()
	resp, err := http.Get(u + "/products/" + id)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var p product
	decodeData(t, resp, &p)
	return p
}

// Many carts race for the same product over real HTTP; stock never goes
// negative and every unit sold is held by exactly one cart.
func TestIntegration_ConcurrentReservations(t *testing.T) {
	srv, _ := startServer(t)
	u := srv.URL
	p := createProduct(t, u, 25)

	concurrency := 20
	perGoroutine := 3
	client := &http.Client{Timeout: 5 * time.Second}
	var wg sync.WaitGroup
	wg.Add(concurrency)
	errCh := make(chan error, concurrency*perGoroutine)
	for g := 0; g < concurrency; g++ {
		go func(gid int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				body := fmt.Sprintf(`{"product_id":%q,"quantity":1}`, p.ID)
				r, _ := http.NewRequest(http.MethodPost, fmt.Sprintf("%s/cart/c-%d/items", u, gid), bytes.NewBufferString(body))
				r.Header.Set("Content-Type", "application/json")
				resp, err := client.Do(r)
				if err != nil {
					errCh <- err
					return
				}
				if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusConflict {
					errCh <- fmt.Errorf("expected 200 or 409, got %d", resp.StatusCode)
				}
				_ = resp.Body.Close()
			}
		}(g)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatal(err)
	}

	var reserved int64
	for g := 0; g < concurrency; g++ {
		resp, err := http.Get(fmt.Sprintf("%s/cart/c-%d", u, g))
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode == http.StatusOK {
			var c cart
			decodeData(t, resp, &c)
			for _, it := range c.Items {
				reserved += it.Quantity
			}
		}
		_ = resp.Body.Close()
	}
	got := getProduct(t, u, p.ID)
	if got.Stock != 0 || reserved != 25 {
		t.Fatalf("conservation broken: stock=%d reserved=%d", got.Stock, reserved)
	}
}

func TestIntegration_PriceUpdatesThenView(t *testing.T) {
	srv, mgr := startServer(t)
	u := srv.URL
	p := createProduct(t, u, 5)

	resp := post(t, http.DefaultClient, u+"/cart/c1/items", fmt.Sprintf(`{"product_id":%q,"quantity":2}`, p.ID))
	_ = resp.Body.Close()
	for i := 1; i <= 10; i++ {
		resp := post(t, http.DefaultClient, u+"/price-updates", fmt.Sprintf(`{"product_id":%q,"price":%d}`, p.ID, i))
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("expected 202, got %d", resp.StatusCode)
		}
		_ = resp.Body.Close()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if ok := mgr.DrainUntil(ctx); !ok {
		t.Fatalf("drain timeout")
	}
	r, err := http.Get(u + "/cart/c1")
	if err != nil {
		t.Fatal(err)
	}
	defer r.Body.Close()
	var c cart
	decodeData(t, r, &c)
	if c.Total != 20 {
		t.Fatalf("expected total priced at latest update, got %v", c.Total)
	}
}
