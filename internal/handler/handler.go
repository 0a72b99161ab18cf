// Package handler exposes the storefront HTTP API: catalog with resolved
// offer pricing, cart quotes, order placement, the payment capture flow, and
// the admin offer surface.
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/kalamart/storefront/internal/domain/coupon"
	"github.com/kalamart/storefront/internal/domain/offer"
	"github.com/kalamart/storefront/internal/domain/order"
	"github.com/kalamart/storefront/internal/domain/payment"
	"github.com/kalamart/storefront/internal/domain/product"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	// When empty, image paths are returned as stored in the database.
	ImageBaseURL string
}

// Metrics counts the business events the API emits.
type Metrics struct {
	OrdersPlaced      metric.Int64Counter
	PaymentsVerified  metric.Int64Counter
	InvalidSignatures metric.Int64Counter
}

// NewMetrics registers the API counters on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	ordersPlaced, err := meter.Int64Counter("storefront.orders.placed")
	if err != nil {
		return nil, errors.Wrap(err, "orders counter")
	}
	paymentsVerified, err := meter.Int64Counter("storefront.payments.verified")
	if err != nil {
		return nil, errors.Wrap(err, "payments counter")
	}
	invalidSignatures, err := meter.Int64Counter("storefront.payments.invalid_signatures")
	if err != nil {
		return nil, errors.Wrap(err, "signatures counter")
	}
	return &Metrics{
		OrdersPlaced:      ordersPlaced,
		PaymentsVerified:  paymentsVerified,
		InvalidSignatures: invalidSignatures,
	}, nil
}

// Handler serves the storefront API, delegating business logic to the
// injected domain services and repositories.
type Handler struct {
	products     product.Repository
	offers       offer.Repository
	coupons      coupon.Quoter
	orders       *order.Service
	orderRepo    order.Repository
	payments     *payment.Service
	metrics      *Metrics
	imageBaseURL string
	now          func() time.Time
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	cfg Config,
	products product.Repository,
	offers offer.Repository,
	coupons coupon.Quoter,
	orders *order.Service,
	orderRepo order.Repository,
	payments *payment.Service,
	metrics *Metrics,
) *Handler {
	return &Handler{
		products:     products,
		offers:       offers,
		coupons:      coupons,
		orders:       orders,
		orderRepo:    orderRepo,
		payments:     payments,
		metrics:      metrics,
		imageBaseURL: cfg.ImageBaseURL,
		now:          time.Now,
	}
}

// Routes registers every API endpoint on the mux. Customer routes require a
// bearer token; admin routes require an API key.
func (h *Handler) Routes(mux *http.ServeMux, customer, admin func(http.Handler) http.Handler) {
	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("GET /api/products/{id}", h.GetProduct)
	mux.HandleFunc("POST /api/cart/quote", h.QuoteCart)

	mux.Handle("POST /api/orders", customer(http.HandlerFunc(h.PlaceOrder)))
	mux.Handle("GET /api/orders", customer(http.HandlerFunc(h.ListOrders)))
	mux.Handle("GET /api/orders/{id}", customer(http.HandlerFunc(h.GetOrder)))
	mux.Handle("POST /api/payments/order", customer(http.HandlerFunc(h.CreatePaymentOrder)))
	mux.Handle("POST /api/payments/verify", customer(http.HandlerFunc(h.VerifyPayment)))

	mux.Handle("GET /api/admin/offers", admin(http.HandlerFunc(h.ListOffers)))
	mux.Handle("POST /api/admin/offers", admin(http.HandlerFunc(h.CreateOffer)))
	mux.Handle("GET /api/admin/offers/{id}", admin(http.HandlerFunc(h.GetOffer)))
	mux.Handle("PUT /api/admin/offers/{id}", admin(http.HandlerFunc(h.UpdateOffer)))
	mux.Handle("DELETE /api/admin/offers/{id}", admin(http.HandlerFunc(h.DeleteOffer)))
}

// errorResponse is the uniform error body.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Code: status, Message: message})
}

func readJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writeDomainError maps a domain error onto the HTTP taxonomy. Signature
// mismatches get a distinct security log and counter; gateway and
// configuration failures never leak upstream detail to the client.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	lg := zctx.From(r.Context())

	var (
		validationErr *offer.ValidationError
		notFoundErr   *order.ProductNotFoundError
		quantityErr   *order.InvalidQuantityError
		gatewayErr    *payment.GatewayError
	)
	switch {
	case errors.Is(err, payment.ErrInvalidSignature):
		lg.Warn("Payment signature verification failed",
			zap.String("remote", r.RemoteAddr),
		)
		if h.metrics != nil {
			h.metrics.InvalidSignatures.Add(r.Context(), 1)
		}
		writeError(w, http.StatusBadRequest, "payment verification failed")
	case errors.Is(err, order.ErrEmptyItems),
		errors.As(err, &validationErr),
		errors.As(err, &quantityErr):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, coupon.ErrInvalidCoupon),
		errors.Is(err, coupon.ErrCouponExpired),
		errors.Is(err, coupon.ErrUsageLimitReached):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, payment.ErrAlreadyPaid):
		writeError(w, http.StatusConflict, "order is already paid")
	case errors.Is(err, payment.ErrNotOwner):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, product.ErrNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, offer.ErrNotFound),
		errors.As(err, &notFoundErr):
		writeError(w, http.StatusNotFound, "not found")
	case errors.As(err, &gatewayErr):
		lg.Error("Payment gateway request failed",
			zap.Int("status", gatewayErr.StatusCode),
			zap.String("body", gatewayErr.Body),
		)
		writeError(w, http.StatusInternalServerError, "payment gateway unavailable")
	case errors.Is(err, payment.ErrConfiguration):
		lg.Error("Payment gateway is not configured")
		writeError(w, http.StatusInternalServerError, "payments unavailable, contact support")
	default:
		lg.Error("Request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
