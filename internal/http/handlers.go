package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fairyhunter13/cart-reservation-service/internal/catalog"
	"github.com/fairyhunter13/cart-reservation-service/internal/config"
	httpopenapi "github.com/fairyhunter13/cart-reservation-service/internal/http/openapi"
	"github.com/fairyhunter13/cart-reservation-service/internal/model"
	"github.com/fairyhunter13/cart-reservation-service/internal/obs"
	"github.com/fairyhunter13/cart-reservation-service/internal/queue"
	"github.com/fairyhunter13/cart-reservation-service/internal/reservation"
	"github.com/fairyhunter13/cart-reservation-service/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type App struct {
	Cfg          config.Config
	Products     *store.Products
	Catalog      *catalog.Query
	Reservations *reservation.Service
	Prices       *queue.Manager
	closing      atomic.Bool
	started      time.Time
}

type productResp struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Stock int64   `json:"stock"`
}

type cartLineResp struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	PriceUnit float64 `json:"price_unit"`
	Quantity  int64   `json:"quantity"`
	Subtotal  float64 `json:"subtotal"`
}

type cartResp struct {
	ID    string         `json:"id"`
	Items []cartLineResp `json:"items"`
	Total float64        `json:"total"`
}

type createProductReq struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock *int64          `json:"stock"`
}

type addItemReq struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
}

type priceUpdateReq struct {
	ProductID string          `json:"product_id"`
	Price     decimal.Decimal `json:"price"`
}

type ack struct {
	Status         string `json:"status"`
	RequestID      string `json:"request_id"`
	Sequence       uint64 `json:"sequence"`
	ProductID      string `json:"product_id"`
	ReceivedAt     string `json:"received_at"`
	PendingUpdates int    `json:"pending_updates"`
	QueueDepth     int    `json:"queue_depth"`
	WorkerCount    int    `json:"worker_count"`
}

// envelope wraps every successful domain response.
type envelope struct {
	Data any `json:"data"`
}

func NewApp(cfg config.Config, products *store.Products, svc *reservation.Service, prices *queue.Manager) *App {
	return &App{
		Cfg:          cfg,
		Products:     products,
		Catalog:      catalog.NewQuery(products),
		Reservations: svc,
		Prices:       prices,
		started:      time.Now(),
	}
}

// StartShutdown rejects further price updates. Cart traffic is still served
// until the HTTP server itself stops.
func (a *App) StartShutdown() {
	a.closing.Store(true)
	a.Prices.CloseIntake()
}

func toProductResp(p model.Product) productResp {
	return productResp{ID: p.ID, Name: p.Name, Price: p.Price.InexactFloat64(), Stock: p.Stock}
}

func toCartResp(v model.CartView) cartResp {
	out := cartResp{ID: v.ID, Items: make([]cartLineResp, 0, len(v.Items)), Total: v.Total.InexactFloat64()}
	for _, l := range v.Items {
		out.Items = append(out.Items, cartLineResp{
			ProductID: l.ProductID,
			Name:      l.Name,
			PriceUnit: l.PriceUnit.InexactFloat64(),
			Quantity:  l.Quantity,
			Subtotal:  l.Subtotal.InexactFloat64(),
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, v any) {
	writeJSON(w, status, envelope{Data: v})
}

// decodeJSON enforces the JSON media type and rejects unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		WriteJSONError(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "expected application/json")
		return false
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return false
	}
	return true
}

func (a *App) createProductHandler(w http.ResponseWriter, r *http.Request) {
	var req createProductReq
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Stock == nil {
		WriteJSONError(w, http.StatusBadRequest, "validation_error", "stock is required")
		return
	}
	p, err := a.Products.Create(req.Name, req.Price, *req.Stock)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	obs.Logger.Info("product_created",
		"request_id", RequestIDFromContext(r.Context()),
		"product_id", p.ID,
		"stock", p.Stock,
	)
	writeData(w, http.StatusCreated, toProductResp(p))
}

func (a *App) listProductsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := catalog.ParseFilter(q.Get("max_price"), q.Get("in_stock"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	products, err := a.Catalog.List(r.Context(), f)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	data := make([]productResp, 0, len(products))
	for _, p := range products {
		data = append(data, toProductResp(p))
	}
	writeData(w, http.StatusOK, data)
}

func (a *App) getProductHandler(w http.ResponseWriter, r *http.Request) {
	p, err := a.Products.Get(chi.URLParam(r, "productID"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toProductResp(p))
}

func (a *App) addCartItemHandler(w http.ResponseWriter, r *http.Request) {
	var req addItemReq
	if !decodeJSON(w, r, &req) {
		return
	}
	cartID := chi.URLParam(r, "cartID")
	view, err := a.Reservations.AddItem(r.Context(), cartID, req.ProductID, req.Quantity)
	if err != nil {
		obs.Logger.Info("cart_item_rejected",
			"request_id", RequestIDFromContext(r.Context()),
			"cart_id", cartID,
			"product_id", req.ProductID,
			"quantity", req.Quantity,
			"error", err.Error(),
		)
		writeDomainError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toCartResp(view))
}

func (a *App) getCartHandler(w http.ResponseWriter, r *http.Request) {
	view, err := a.Reservations.ViewCart(r.Context(), chi.URLParam(r, "cartID"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toCartResp(view))
}

func (a *App) removeCartItemHandler(w http.ResponseWriter, r *http.Request) {
	view, err := a.Reservations.RemoveItem(r.Context(), chi.URLParam(r, "cartID"), chi.URLParam(r, "productID"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toCartResp(view))
}

func (a *App) postPriceUpdateHandler(w http.ResponseWriter, r *http.Request) {
	if a.closing.Load() || a.Prices.IsShuttingDown() {
		WriteJSONError(w, http.StatusServiceUnavailable, "shutting_down", "")
		return
	}
	var req priceUpdateReq
	if !decodeJSON(w, r, &req) {
		return
	}
	u, err := a.Prices.Submit(req.ProductID, req.Price)
	if errors.Is(err, queue.ErrIntakeClosed) {
		WriteJSONError(w, http.StatusServiceUnavailable, "shutting_down", "")
		return
	}
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	qs := a.Prices.Stats()
	ac := ack{
		Status:         "accepted",
		RequestID:      RequestIDFromContext(r.Context()),
		Sequence:       u.Sequence,
		ProductID:      u.ProductID,
		ReceivedAt:     time.Now().UTC().Format(time.RFC3339),
		PendingUpdates: qs.Pending,
		QueueDepth:     qs.Depth,
		WorkerCount:    a.Prices.WorkerCount(),
	}
	writeData(w, http.StatusAccepted, ac)
	obs.Logger.Info("price_update_accepted",
		"request_id", ac.RequestID,
		"sequence", ac.Sequence,
		"product_id", ac.ProductID,
		"pending_updates", ac.PendingUpdates,
		"queue_depth", ac.QueueDepth,
		"worker_count", ac.WorkerCount,
	)
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Metrics is the payload of /debug/metrics and the expvar "cart_reservation" var.
func (a *App) Metrics() map[string]any {
	qs := a.Prices.Stats()
	st := a.Reservations.Stats()
	return map[string]any{
		"reservations_added":      st.Added,
		"reservations_removed":    st.Removed,
		"reservations_rejected":   st.Rejected,
		"carts":                   st.Carts,
		"products":                a.Products.Len(),
		"price_updates_enqueued":  qs.Enqueued,
		"price_updates_coalesced": qs.Coalesced,
		"price_updates_processed": qs.Processed,
		"price_updates_applied":   a.Prices.Applied(),
		"price_last_sequence":     a.Prices.LastSequence(),
		"pending_updates":         qs.Pending,
		"queue_depth":             qs.Depth,
		"worker_count":            a.Prices.WorkerCount(),
		"uptime_sec":              time.Since(a.started).Seconds(),
	}
}

func (a *App) metricsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Metrics())
}

func (a *App) openapiHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(httpopenapi.YAML)
}

func (a *App) docsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	html := `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>Cart Reservation API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui'
      });
    </script>
  </body>
</html>`
	_, _ = w.Write([]byte(html))
}
