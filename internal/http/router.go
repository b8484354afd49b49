package httpapi

import (
	"expvar"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter registers HTTP routes and returns the handler with middleware.
func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()
	r.Use(WithRequestID, WithLogging, middleware.Recoverer)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteJSONError(w, http.StatusNotFound, "not_found", "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
	})

	r.Post("/products", app.createProductHandler)
	r.Get("/products", app.listProductsHandler)
	r.Get("/products/{productID}", app.getProductHandler)

	r.Get("/cart/{cartID}", app.getCartHandler)
	r.Post("/cart/{cartID}/items", app.addCartItemHandler)
	r.Delete("/cart/{cartID}/items/{productID}", app.removeCartItemHandler)

	r.Post("/price-updates", app.postPriceUpdateHandler)

	r.Get("/healthz", app.healthHandler)
	r.Get("/debug/metrics", app.metricsHandler)
	r.Handle("/debug/vars", expvar.Handler())
	r.Get("/openapi.yaml", app.openapiHandler)
	r.Get("/docs", app.docsHandler)
	return r
}
