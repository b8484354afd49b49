// Package main boots the Cart Reservation Service HTTP server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fairyhunter13/cart-reservation-service/internal/config"
	httpapi "github.com/fairyhunter13/cart-reservation-service/internal/http"
	"github.com/fairyhunter13/cart-reservation-service/internal/obs"
	"github.com/fairyhunter13/cart-reservation-service/internal/queue"
	"github.com/fairyhunter13/cart-reservation-service/internal/reservation"
	"github.com/fairyhunter13/cart-reservation-service/internal/store"
)

func main() {
	cfg := config.Load()
	obs.InitLogger(cfg.LogLevel)
	obs.Logger.Info("service_starting")

	products := store.NewProducts()
	if cfg.SeedCatalog {
		if err := products.Seed(store.DemoCatalog()...); err != nil {
			obs.Logger.Error("catalog_seed_error", "error", err)
			os.Exit(1)
		}
		obs.Logger.Info("catalog_seeded", "products", products.Len())
	}
	svc := reservation.New(products, store.NewCarts())

	mgr := queue.NewManager(cfg, queue.New(128), products)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mgr.Start(ctx)

	app := httpapi.NewApp(cfg, products, svc, mgr)
	obs.Publish("cart_reservation", func() any { return app.Metrics() })

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(app),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		obs.Logger.Info("http_listen", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			obs.Logger.Error("http_server_error", "error", err)
			os.Exit(1)
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigc
	obs.Logger.Info("shutdown_signal", "signal", s.String())

	app.StartShutdown()
	obs.Logger.Info("shutdown_drain_begin", "pending_updates", mgr.Stats().Pending, "worker_count", mgr.WorkerCount())

	ctxDrain, cancelDrain := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelDrain()
	if drained := mgr.DrainUntil(ctxDrain); !drained {
		obs.Logger.Warn("shutdown_drain_timeout")
	} else {
		obs.Logger.Info("shutdown_drain_complete")
	}

	ctxSrv, cancelSrv := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelSrv()
	if err := srv.Shutdown(ctxSrv); err != nil {
		obs.Logger.Error("http_shutdown_error", "error", err)
	}
	mgr.Stop()
	st := svc.Stats()
	obs.Logger.Info("service_stopped", "carts", st.Carts, "reservations_added", st.Added, "reservations_removed", st.Removed)
}
