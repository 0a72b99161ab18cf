package payment

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalamart/storefront/internal/domain/order"
)

// --- Mock implementations ---

type mockCreds struct {
	creds Credentials
	err   error
}

func (m *mockCreds) Resolve(_ context.Context) (Credentials, error) {
	return m.creds, m.err
}

type mockGateway struct {
	lastReq  GatewayOrderRequest
	order    *GatewayOrder
	err      error
	numCalls int
}

func (m *mockGateway) CreateOrder(_ context.Context, _ Credentials, req GatewayOrderRequest) (*GatewayOrder, error) {
	m.numCalls++
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.order, nil
}

type mockOrderRepo struct {
	order    *order.Order
	err      error
	numGets  int
	lastID   string
}

func (m *mockOrderRepo) Create(_ context.Context, _ *order.Order) error { return nil }

func (m *mockOrderRepo) GetByID(_ context.Context, id string) (*order.Order, error) {
	m.numGets++
	m.lastID = id
	if m.err != nil {
		return nil, m.err
	}
	return m.order, nil
}

func (m *mockOrderRepo) ListByUser(_ context.Context, _ string) ([]order.Order, error) {
	return nil, nil
}

type mockRecorder struct {
	lastOrderID string
	lastPayment *Payment
	err         error
	numCalls    int
}

func (m *mockRecorder) RecordVerified(_ context.Context, orderID string, p *Payment) error {
	m.numCalls++
	m.lastOrderID = orderID
	m.lastPayment = p
	return m.err
}

// --- Helpers ---

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func pendingOrder(id, userID, total string) *order.Order {
	return &order.Order{
		ID:            id,
		UserID:        userID,
		Total:         d(total),
		PaymentStatus: order.PaymentPending,
	}
}

var testCreds = Credentials{KeyID: "rzp_test_key", KeySecret: "secret"}

// --- CreateGatewayOrder ---

func TestCreateGatewayOrder_Success(t *testing.T) {
	gw := &mockGateway{order: &GatewayOrder{ID: "order_gw1", AmountMinor: 64999, Currency: "INR"}}
	orders := &mockOrderRepo{order: pendingOrder("ord-1", "u1", "649.99")}
	svc := NewService(&mockCreds{creds: testCreds}, gw, orders, &mockRecorder{}, "INR")

	checkout, err := svc.CreateGatewayOrder(context.Background(), "u1", "ord-1")

	require.NoError(t, err)
	assert.Equal(t, "order_gw1", checkout.GatewayOrderID)
	assert.Equal(t, int64(64999), checkout.AmountMinor)
	assert.Equal(t, "INR", checkout.Currency)
	assert.Equal(t, "rzp_test_key", checkout.KeyID)

	// Gateway sees integer minor units and the internal order id as receipt.
	assert.Equal(t, int64(64999), gw.lastReq.AmountMinor)
	assert.Equal(t, "ord-1", gw.lastReq.Receipt)
	assert.Equal(t, "INR", gw.lastReq.Currency)
}

func TestCreateGatewayOrder_OrderNotFound(t *testing.T) {
	orders := &mockOrderRepo{err: order.ErrNotFound}
	svc := NewService(&mockCreds{creds: testCreds}, &mockGateway{}, orders, &mockRecorder{}, "INR")

	_, err := svc.CreateGatewayOrder(context.Background(), "u1", "ghost")
	require.ErrorIs(t, err, order.ErrNotFound)
}

func TestCreateGatewayOrder_NotOwner(t *testing.T) {
	orders := &mockOrderRepo{order: pendingOrder("ord-1", "u1", "100")}
	gw := &mockGateway{}
	svc := NewService(&mockCreds{creds: testCreds}, gw, orders, &mockRecorder{}, "INR")

	_, err := svc.CreateGatewayOrder(context.Background(), "intruder", "ord-1")

	require.ErrorIs(t, err, ErrNotOwner)
	assert.Zero(t, gw.numCalls)
}

func TestCreateGatewayOrder_AlreadyPaid(t *testing.T) {
	o := pendingOrder("ord-1", "u1", "100")
	o.PaymentStatus = order.PaymentPaid
	svc := NewService(&mockCreds{creds: testCreds}, &mockGateway{}, &mockOrderRepo{order: o}, &mockRecorder{}, "INR")

	_, err := svc.CreateGatewayOrder(context.Background(), "u1", "ord-1")
	require.ErrorIs(t, err, ErrAlreadyPaid)
}

func TestCreateGatewayOrder_MissingCredentials(t *testing.T) {
	orders := &mockOrderRepo{order: pendingOrder("ord-1", "u1", "100")}
	svc := NewService(&mockCreds{err: ErrConfiguration}, &mockGateway{}, orders, &mockRecorder{}, "INR")

	_, err := svc.CreateGatewayOrder(context.Background(), "u1", "ord-1")
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestCreateGatewayOrder_GatewayFailure(t *testing.T) {
	gwErr := &GatewayError{StatusCode: 502, Body: `{"error":"upstream unavailable"}`}
	gw := &mockGateway{err: gwErr}
	orders := &mockOrderRepo{order: pendingOrder("ord-1", "u1", "100")}
	svc := NewService(&mockCreds{creds: testCreds}, gw, orders, &mockRecorder{}, "INR")

	_, err := svc.CreateGatewayOrder(context.Background(), "u1", "ord-1")

	var ge *GatewayError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, 502, ge.StatusCode)
}

// --- Verify ---

func validVerifyRequest(orderID string) VerifyRequest {
	return VerifyRequest{
		GatewayOrderID:   "order_gw1",
		GatewayPaymentID: "pay_1",
		Signature:        Sign(testCreds.KeySecret, "order_gw1", "pay_1"),
		OrderID:          orderID,
	}
}

func TestVerify_Success(t *testing.T) {
	orders := &mockOrderRepo{order: pendingOrder("ord-1", "u1", "649.99")}
	rec := &mockRecorder{}
	svc := NewService(&mockCreds{creds: testCreds}, &mockGateway{}, orders, rec, "INR")

	err := svc.Verify(context.Background(), "u1", validVerifyRequest("ord-1"))

	require.NoError(t, err)
	require.Equal(t, 1, rec.numCalls)
	assert.Equal(t, "ord-1", rec.lastOrderID)

	p := rec.lastPayment
	require.NotNil(t, p)
	assert.Equal(t, "ord-1", p.OrderID)
	assert.Equal(t, MethodOnline, p.Method)
	assert.Equal(t, StatusPaid, p.Status)
	assert.Equal(t, "pay_1", p.TransactionID)
	assert.True(t, d("649.99").Equal(p.Amount))
	assert.Equal(t, "order_gw1", p.GatewayResponse.GatewayOrderID)
	assert.Equal(t, "pay_1", p.GatewayResponse.GatewayPaymentID)
}

func TestVerify_TamperedSignatureFailsClosed(t *testing.T) {
	orders := &mockOrderRepo{order: pendingOrder("ord-1", "u1", "100")}
	rec := &mockRecorder{}
	svc := NewService(&mockCreds{creds: testCreds}, &mockGateway{}, orders, rec, "INR")

	req := validVerifyRequest("ord-1")
	last := req.Signature[len(req.Signature)-1]
	flipped := byte('0')
	if last == '0' {
		flipped = '1'
	}
	req.Signature = req.Signature[:len(req.Signature)-1] + string(flipped)

	err := svc.Verify(context.Background(), "u1", req)

	require.ErrorIs(t, err, ErrInvalidSignature)
	// Fails before the order is even loaded: no reads, no writes.
	assert.Zero(t, orders.numGets)
	assert.Zero(t, rec.numCalls)
}

func TestVerify_OrderNotFound(t *testing.T) {
	orders := &mockOrderRepo{err: order.ErrNotFound}
	rec := &mockRecorder{}
	svc := NewService(&mockCreds{creds: testCreds}, &mockGateway{}, orders, rec, "INR")

	err := svc.Verify(context.Background(), "u1", validVerifyRequest("ghost"))

	require.ErrorIs(t, err, order.ErrNotFound)
	assert.Zero(t, rec.numCalls)
}

func TestVerify_NotOwnerEvenWithValidSignature(t *testing.T) {
	orders := &mockOrderRepo{order: pendingOrder("ord-1", "u1", "100")}
	rec := &mockRecorder{}
	svc := NewService(&mockCreds{creds: testCreds}, &mockGateway{}, orders, rec, "INR")

	err := svc.Verify(context.Background(), "intruder", validVerifyRequest("ord-1"))

	require.ErrorIs(t, err, ErrNotOwner)
	// Ownership is checked after the signature, before any mutation.
	assert.Equal(t, 1, orders.numGets)
	assert.Zero(t, rec.numCalls)
}

func TestVerify_MissingCredentials(t *testing.T) {
	rec := &mockRecorder{}
	svc := NewService(&mockCreds{err: ErrConfiguration}, &mockGateway{}, &mockOrderRepo{}, rec, "INR")

	err := svc.Verify(context.Background(), "u1", validVerifyRequest("ord-1"))

	require.ErrorIs(t, err, ErrConfiguration)
	assert.Zero(t, rec.numCalls)
}

func TestVerify_RecorderError(t *testing.T) {
	orders := &mockOrderRepo{order: pendingOrder("ord-1", "u1", "100")}
	rec := &mockRecorder{err: errors.New("db down")}
	svc := NewService(&mockCreds{creds: testCreds}, &mockGateway{}, orders, rec, "INR")

	err := svc.Verify(context.Background(), "u1", validVerifyRequest("ord-1"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "record verified payment")
}
