package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/kalamart/storefront/internal/domain/order"
)

type placeOrderRequest struct {
	Items      []cartItemRequest `json:"items"`
	CouponCode string            `json:"coupon_code,omitempty"`
}

type orderItemResponse struct {
	ProductID       string  `json:"product_id"`
	Quantity        int     `json:"quantity"`
	UnitPrice       float64 `json:"unit_price"`
	DiscountedPrice float64 `json:"discounted_price"`
	OfferID         string  `json:"offer_id,omitempty"`
	OfferLabel      string  `json:"offer_label,omitempty"`
}

type orderResponse struct {
	ID             string              `json:"id"`
	Items          []orderItemResponse `json:"items"`
	Subtotal       float64             `json:"subtotal"`
	OfferDiscount  float64             `json:"offer_discount"`
	CouponDiscount float64             `json:"coupon_discount"`
	Total          float64             `json:"total"`
	CouponCode     string              `json:"coupon_code,omitempty"`
	PaymentStatus  string              `json:"payment_status"`
	CreatedAt      time.Time           `json:"created_at"`
}

// PlaceOrder places an order for the authenticated customer and returns the
// persisted pricing snapshot. The order is created payment-pending; payment
// happens through the capture flow.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	var req placeOrderRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	items := make([]order.ItemRequest, len(req.Items))
	for i, item := range req.Items {
		items[i] = order.ItemRequest{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		}
	}

	result, err := h.orders.PlaceOrder(r.Context(), userID, order.PlaceOrderRequest{
		Items:      items,
		CouponCode: req.CouponCode,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.OrdersPlaced.Add(r.Context(), 1, metric.WithAttributes(
			attribute.Bool("coupon", result.Order.CouponCode != ""),
		))
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(result.Order))
}

// GetOrder returns one of the authenticated customer's orders.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	o, err := h.orderRepo.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if o.UserID != userID {
		// Indistinguishable from absent: customers cannot probe for other
		// customers' order ids.
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// ListOrders returns the authenticated customer's orders, newest first.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	list, err := h.orderRepo.ListByUser(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, r, errors.Wrap(err, "list orders"))
		return
	}

	resp := make([]orderResponse, len(list))
	for i := range list {
		resp[i] = toOrderResponse(&list[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

func toOrderResponse(o *order.Order) orderResponse {
	items := make([]orderItemResponse, len(o.Items))
	for i, item := range o.Items {
		items[i] = orderItemResponse{
			ProductID:       item.ProductID,
			Quantity:        item.Quantity,
			UnitPrice:       item.UnitPrice.InexactFloat64(),
			DiscountedPrice: item.DiscountedPrice.InexactFloat64(),
			OfferID:         item.OfferID,
			OfferLabel:      item.OfferLabel,
		}
	}
	return orderResponse{
		ID:             o.ID,
		Items:          items,
		Subtotal:       o.Subtotal.InexactFloat64(),
		OfferDiscount:  o.OfferDiscount.InexactFloat64(),
		CouponDiscount: o.CouponDiscount.InexactFloat64(),
		Total:          o.Total.InexactFloat64(),
		CouponCode:     o.CouponCode,
		PaymentStatus:  string(o.PaymentStatus),
		CreatedAt:      o.CreatedAt,
	}
}
