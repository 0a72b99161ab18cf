package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalamart/storefront/internal/domain/order"
	"github.com/kalamart/storefront/internal/domain/payment"
)

func pendingTestOrder(id, userID, total string) *order.Order {
	return &order.Order{
		ID:            id,
		UserID:        userID,
		Total:         decimal.RequireFromString(total),
		PaymentStatus: order.PaymentPending,
	}
}

func TestCreatePaymentOrder(t *testing.T) {
	gw := &mockGateway{order: &payment.GatewayOrder{ID: "order_gw1", AmountMinor: 64999, Currency: "INR"}}
	h := newTestHandler(&testDeps{
		orders:  &mockOrderRepo{orders: map[string]*order.Order{"ord-1": pendingTestOrder("ord-1", "u1", "649.99")}},
		gateway: gw,
	})

	w := doRequest(h.CreatePaymentOrder, http.MethodPost, "/api/payments/order", `{"order_id":"ord-1"}`, "u1")
	require.Equal(t, http.StatusCreated, w.Code)

	var resp checkoutResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "order_gw1", resp.GatewayOrderID)
	assert.Equal(t, int64(64999), resp.Amount)
	assert.Equal(t, "INR", resp.Currency)
	assert.Equal(t, "rzp_test", resp.KeyID)

	// The key secret must never appear in a client-visible response.
	assert.NotContains(t, w.Body.String(), "secret")
}

func TestCreatePaymentOrder_NotOwner(t *testing.T) {
	h := newTestHandler(&testDeps{
		orders: &mockOrderRepo{orders: map[string]*order.Order{"ord-1": pendingTestOrder("ord-1", "u1", "100")}},
	})

	w := doRequest(h.CreatePaymentOrder, http.MethodPost, "/api/payments/order", `{"order_id":"ord-1"}`, "intruder")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCreatePaymentOrder_AlreadyPaid(t *testing.T) {
	o := pendingTestOrder("ord-1", "u1", "100")
	o.PaymentStatus = order.PaymentPaid
	h := newTestHandler(&testDeps{
		orders: &mockOrderRepo{orders: map[string]*order.Order{"ord-1": o}},
	})

	w := doRequest(h.CreatePaymentOrder, http.MethodPost, "/api/payments/order", `{"order_id":"ord-1"}`, "u1")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCreatePaymentOrder_MissingBody(t *testing.T) {
	h := newTestHandler(&testDeps{})
	w := doRequest(h.CreatePaymentOrder, http.MethodPost, "/api/payments/order", `{}`, "u1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreatePaymentOrder_GatewayDown(t *testing.T) {
	h := newTestHandler(&testDeps{
		orders:  &mockOrderRepo{orders: map[string]*order.Order{"ord-1": pendingTestOrder("ord-1", "u1", "100")}},
		gateway: &mockGateway{err: &payment.GatewayError{StatusCode: 502, Body: "upstream"}},
	})

	w := doRequest(h.CreatePaymentOrder, http.MethodPost, "/api/payments/order", `{"order_id":"ord-1"}`, "u1")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	// Upstream body stays server-side.
	assert.NotContains(t, w.Body.String(), "upstream")
}

func TestCreatePaymentOrder_NotConfigured(t *testing.T) {
	h := newTestHandler(&testDeps{
		orders: &mockOrderRepo{orders: map[string]*order.Order{"ord-1": pendingTestOrder("ord-1", "u1", "100")}},
		creds:  &mockCredsSource{err: payment.ErrConfiguration},
	})

	w := doRequest(h.CreatePaymentOrder, http.MethodPost, "/api/payments/order", `{"order_id":"ord-1"}`, "u1")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "contact support")
}

func verifyBody(orderID, gatewayOrderID, paymentID, signature string) string {
	b, _ := json.Marshal(verifyPaymentRequest{
		OrderID:          orderID,
		GatewayOrderID:   gatewayOrderID,
		GatewayPaymentID: paymentID,
		Signature:        signature,
	})
	return string(b)
}

func TestVerifyPayment(t *testing.T) {
	rec := &mockRecorder{}
	h := newTestHandler(&testDeps{
		orders:   &mockOrderRepo{orders: map[string]*order.Order{"ord-1": pendingTestOrder("ord-1", "u1", "649.99")}},
		recorder: rec,
	})

	sig := payment.Sign("secret", "order_gw1", "pay_1")
	w := doRequest(h.VerifyPayment, http.MethodPost, "/api/payments/verify",
		verifyBody("ord-1", "order_gw1", "pay_1", sig), "u1")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"paid"`)
	require.NotNil(t, rec.lastPayment)
	assert.Equal(t, "pay_1", rec.lastPayment.TransactionID)
}

func TestVerifyPayment_BadSignature(t *testing.T) {
	rec := &mockRecorder{}
	h := newTestHandler(&testDeps{
		orders:   &mockOrderRepo{orders: map[string]*order.Order{"ord-1": pendingTestOrder("ord-1", "u1", "100")}},
		recorder: rec,
	})

	w := doRequest(h.VerifyPayment, http.MethodPost, "/api/payments/verify",
		verifyBody("ord-1", "order_gw1", "pay_1", "deadbeef"), "u1")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "payment verification failed")
	assert.Nil(t, rec.lastPayment)
}

func TestVerifyPayment_WrongOwner(t *testing.T) {
	rec := &mockRecorder{}
	h := newTestHandler(&testDeps{
		orders:   &mockOrderRepo{orders: map[string]*order.Order{"ord-1": pendingTestOrder("ord-1", "u1", "100")}},
		recorder: rec,
	})

	sig := payment.Sign("secret", "order_gw1", "pay_1")
	w := doRequest(h.VerifyPayment, http.MethodPost, "/api/payments/verify",
		verifyBody("ord-1", "order_gw1", "pay_1", sig), "intruder")

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Nil(t, rec.lastPayment)
}

func TestVerifyPayment_MissingFields(t *testing.T) {
	h := newTestHandler(&testDeps{})
	w := doRequest(h.VerifyPayment, http.MethodPost, "/api/payments/verify", `{"order_id":"ord-1"}`, "u1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerifyPayment_OrderNotFound(t *testing.T) {
	h := newTestHandler(&testDeps{})

	sig := payment.Sign("secret", "order_gw1", "pay_1")
	w := doRequest(h.VerifyPayment, http.MethodPost, "/api/payments/verify",
		verifyBody("ghost", "order_gw1", "pay_1", sig), "u1")

	assert.Equal(t, http.StatusNotFound, w.Code)
}
