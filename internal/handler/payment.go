package handler

import (
	"net/http"

	"github.com/kalamart/storefront/internal/domain/payment"
)

type createPaymentOrderRequest struct {
	OrderID string `json:"order_id"`
}

type checkoutResponse struct {
	GatewayOrderID string `json:"gateway_order_id"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	KeyID          string `json:"key_id"`
}

type verifyPaymentRequest struct {
	OrderID          string `json:"order_id"`
	GatewayOrderID   string `json:"razorpay_order_id"`
	GatewayPaymentID string `json:"razorpay_payment_id"`
	Signature        string `json:"razorpay_signature"`
}

// CreatePaymentOrder starts a payment attempt: it creates a gateway-side
// order for an owned pending order and returns what the client needs to open
// the gateway checkout. Amount is in minor units. The response carries the
// public key id only.
func (h *Handler) CreatePaymentOrder(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	var req createPaymentOrderRequest
	if err := readJSON(r, &req); err != nil || req.OrderID == "" {
		writeError(w, http.StatusBadRequest, "order_id required")
		return
	}

	checkout, err := h.payments.CreateGatewayOrder(r.Context(), userID, req.OrderID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, checkoutResponse{
		GatewayOrderID: checkout.GatewayOrderID,
		Amount:         checkout.AmountMinor,
		Currency:       checkout.Currency,
		KeyID:          checkout.KeyID,
	})
}

// VerifyPayment verifies the gateway callback signature and captures the
// payment. Replays of an already-captured payment succeed without effect.
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	var req verifyPaymentRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OrderID == "" || req.GatewayOrderID == "" || req.GatewayPaymentID == "" || req.Signature == "" {
		writeError(w, http.StatusBadRequest, "order_id, razorpay_order_id, razorpay_payment_id and razorpay_signature required")
		return
	}

	err := h.payments.Verify(r.Context(), userID, payment.VerifyRequest{
		GatewayOrderID:   req.GatewayOrderID,
		GatewayPaymentID: req.GatewayPaymentID,
		Signature:        req.Signature,
		OrderID:          req.OrderID,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.PaymentsVerified.Add(r.Context(), 1)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "paid"})
}
