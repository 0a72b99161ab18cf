package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalamart/storefront/internal/domain/coupon"
	"github.com/kalamart/storefront/internal/domain/offer"
	"github.com/kalamart/storefront/internal/domain/order"
	"github.com/kalamart/storefront/internal/domain/payment"
	"github.com/kalamart/storefront/internal/domain/product"
)

// --- Mock implementations ---

type mockProductRepo struct {
	products []product.Product
	err      error
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) {
	return m.products, m.err
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.products {
		if m.products[i].ID == id {
			return &m.products[i], nil
		}
	}
	return nil, product.ErrNotFound
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []product.Product
	for _, id := range ids {
		for i := range m.products {
			if m.products[i].ID == id {
				out = append(out, m.products[i])
				break
			}
		}
	}
	return out, nil
}

type mockOfferRepo struct {
	offers []offer.Offer
	err    error

	created *offer.Offer
	updated *offer.Offer
	deleted string
}

func (m *mockOfferRepo) List(_ context.Context) ([]offer.Offer, error) {
	return m.offers, m.err
}

func (m *mockOfferRepo) ListActive(_ context.Context, now time.Time) ([]offer.Offer, error) {
	if m.err != nil {
		return nil, m.err
	}
	return offer.Filter(m.offers, now), nil
}

func (m *mockOfferRepo) GetByID(_ context.Context, id string) (*offer.Offer, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.offers {
		if m.offers[i].ID == id {
			return &m.offers[i], nil
		}
	}
	return nil, offer.ErrNotFound
}

func (m *mockOfferRepo) Create(_ context.Context, o *offer.Offer) error {
	m.created = o
	return m.err
}

func (m *mockOfferRepo) Update(_ context.Context, o *offer.Offer) error {
	m.updated = o
	m.offers = append(m.offers, *o)
	return m.err
}

func (m *mockOfferRepo) Delete(_ context.Context, id string) error {
	m.deleted = id
	return m.err
}

type mockQuoter struct {
	discount *coupon.Discount
	err      error

	lastCode     string
	lastSubtotal decimal.Decimal
}

func (m *mockQuoter) Quote(_ context.Context, code string, subtotal decimal.Decimal) (*coupon.Discount, error) {
	m.lastCode = code
	m.lastSubtotal = subtotal
	return m.discount, m.err
}

type mockCouponValidator struct {
	discount *coupon.Discount
	err      error
}

func (m *mockCouponValidator) Validate(_ context.Context, _ string, _ decimal.Decimal) (*coupon.Discount, error) {
	return m.discount, m.err
}

type mockOrderRepo struct {
	orders  map[string]*order.Order
	created *order.Order
	err     error
}

func (m *mockOrderRepo) Create(_ context.Context, o *order.Order) error {
	m.created = o
	return m.err
}

func (m *mockOrderRepo) GetByID(_ context.Context, id string) (*order.Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o, nil
}

func (m *mockOrderRepo) ListByUser(_ context.Context, userID string) ([]order.Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []order.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

type mockCredsSource struct {
	creds payment.Credentials
	err   error
}

func (m *mockCredsSource) Resolve(_ context.Context) (payment.Credentials, error) {
	return m.creds, m.err
}

type mockGateway struct {
	order *payment.GatewayOrder
	err   error
}

func (m *mockGateway) CreateOrder(_ context.Context, _ payment.Credentials, _ payment.GatewayOrderRequest) (*payment.GatewayOrder, error) {
	return m.order, m.err
}

type mockRecorder struct {
	lastPayment *payment.Payment
	err         error
}

func (m *mockRecorder) RecordVerified(_ context.Context, _ string, p *payment.Payment) error {
	m.lastPayment = p
	return m.err
}

// --- Helpers ---

type testDeps struct {
	products *mockProductRepo
	offers   *mockOfferRepo
	quoter   *mockQuoter
	orders   *mockOrderRepo
	creds    *mockCredsSource
	gateway  *mockGateway
	recorder *mockRecorder
}

func newTestHandler(d *testDeps) *Handler {
	if d.products == nil {
		d.products = &mockProductRepo{}
	}
	if d.offers == nil {
		d.offers = &mockOfferRepo{}
	}
	if d.quoter == nil {
		d.quoter = &mockQuoter{}
	}
	if d.orders == nil {
		d.orders = &mockOrderRepo{}
	}
	if d.creds == nil {
		d.creds = &mockCredsSource{creds: payment.Credentials{KeyID: "rzp_test", KeySecret: "secret"}}
	}
	if d.gateway == nil {
		d.gateway = &mockGateway{order: &payment.GatewayOrder{ID: "order_gw1", AmountMinor: 100, Currency: "INR"}}
	}
	if d.recorder == nil {
		d.recorder = &mockRecorder{}
	}

	orderSvc := order.NewService(d.products, d.offers, &mockCouponValidator{}, d.orders)
	paymentSvc := payment.NewService(d.creds, d.gateway, d.orders, d.recorder, "INR")

	return NewHandler(Config{}, d.products, d.offers, d.quoter, orderSvc, d.orders, paymentSvc, nil)
}

func doRequest(h http.HandlerFunc, method, target, body, userID string) *httptest.ResponseRecorder {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	if userID != "" {
		r = r.WithContext(withUserID(r.Context(), userID))
	}
	w := httptest.NewRecorder()
	h(w, r)
	return w
}

func testProduct(id string, price string) product.Product {
	return product.Product{
		ID:         id,
		Name:       "Product " + id,
		Price:      decimal.RequireFromString(price),
		CategoryID: "cat-1",
		Image:      product.Image{Thumbnail: "thumb.jpg"},
	}
}

func percentOffer(id, productID, value string) offer.Offer {
	return offer.Offer{
		ID:        id,
		Title:     "Deal",
		Type:      offer.TypePercentage,
		Value:     decimal.RequireFromString(value),
		ProductID: productID,
		Active:    true,
		AutoApply: true,
	}
}

// --- Catalog ---

func TestListProducts_ResolvesOffers(t *testing.T) {
	o := percentOffer("off-1", "p1", "20")
	o.MaxDiscount = decimal.RequireFromString("50")
	h := newTestHandler(&testDeps{
		products: &mockProductRepo{products: []product.Product{testProduct("p1", "1000"), testProduct("p2", "60")}},
		offers:   &mockOfferRepo{offers: []offer.Offer{o}},
	})

	w := doRequest(h.ListProducts, http.MethodGet, "/api/products", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp []productResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp, 2)

	require.NotNil(t, resp[0].Offer)
	assert.Equal(t, "off-1", resp[0].Offer.OfferID)
	assert.Equal(t, "20% OFF", resp[0].Offer.Label)
	assert.InDelta(t, 50.0, resp[0].Offer.Discount, 0.001)
	assert.InDelta(t, 950.0, resp[0].Offer.DiscountedPrice, 0.001)

	// p2 is outside the offer's product scope.
	assert.Nil(t, resp[1].Offer)
}

func TestGetProduct_NotFound(t *testing.T) {
	h := newTestHandler(&testDeps{})

	r := httptest.NewRequest(http.MethodGet, "/api/products/ghost", nil)
	r.SetPathValue("id", "ghost")
	w := httptest.NewRecorder()
	h.GetProduct(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

// --- Cart quote ---

func TestQuoteCart(t *testing.T) {
	quoter := &mockQuoter{discount: &coupon.Discount{Amount: decimal.RequireFromString("15")}}
	h := newTestHandler(&testDeps{
		products: &mockProductRepo{products: []product.Product{testProduct("p1", "100")}},
		offers:   &mockOfferRepo{offers: []offer.Offer{percentOffer("off-1", "p1", "10")}},
		quoter:   quoter,
	})

	body := `{"items":[{"product_id":"p1","quantity":3}],"coupon_code":"SAVE15"}`
	w := doRequest(h.QuoteCart, http.MethodPost, "/api/cart/quote", body, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp cartQuoteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	require.Len(t, resp.Lines, 1)
	assert.InDelta(t, 100.0, resp.Lines[0].UnitPrice, 0.001)
	assert.InDelta(t, 90.0, resp.Lines[0].DiscountedPrice, 0.001)
	assert.Equal(t, "10% OFF", resp.Lines[0].OfferLabel)

	assert.InDelta(t, 300.0, resp.Subtotal, 0.001)
	assert.InDelta(t, 30.0, resp.OfferDiscount, 0.001)
	assert.InDelta(t, 15.0, resp.CouponDiscount, 0.001)
	assert.InDelta(t, 255.0, resp.Total, 0.001)

	// The coupon saw the offer-discounted subtotal, and the quote path must
	// not redeem.
	assert.True(t, decimal.RequireFromString("270").Equal(quoter.lastSubtotal))
	assert.Equal(t, "SAVE15", quoter.lastCode)
}

func TestQuoteCart_EmptyItems(t *testing.T) {
	h := newTestHandler(&testDeps{})
	w := doRequest(h.QuoteCart, http.MethodPost, "/api/cart/quote", `{"items":[]}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQuoteCart_UnknownProduct(t *testing.T) {
	h := newTestHandler(&testDeps{
		products: &mockProductRepo{products: []product.Product{testProduct("p1", "100")}},
	})
	w := doRequest(h.QuoteCart, http.MethodPost, "/api/cart/quote", `{"items":[{"product_id":"ghost","quantity":1}]}`, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestQuoteCart_InvalidCoupon(t *testing.T) {
	h := newTestHandler(&testDeps{
		products: &mockProductRepo{products: []product.Product{testProduct("p1", "100")}},
		quoter:   &mockQuoter{err: coupon.ErrInvalidCoupon},
	})
	body := `{"items":[{"product_id":"p1","quantity":1}],"coupon_code":"BOGUS"}`
	w := doRequest(h.QuoteCart, http.MethodPost, "/api/cart/quote", body, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Orders ---

func TestPlaceOrder(t *testing.T) {
	orders := &mockOrderRepo{}
	h := newTestHandler(&testDeps{
		products: &mockProductRepo{products: []product.Product{testProduct("p1", "100")}},
		offers:   &mockOfferRepo{offers: []offer.Offer{percentOffer("off-1", "p1", "10")}},
		orders:   orders,
	})

	body := `{"items":[{"product_id":"p1","quantity":2}]}`
	w := doRequest(h.PlaceOrder, http.MethodPost, "/api/orders", body, "u1")
	require.Equal(t, http.StatusCreated, w.Code)

	var resp orderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)
	assert.InDelta(t, 200.0, resp.Subtotal, 0.001)
	assert.InDelta(t, 20.0, resp.OfferDiscount, 0.001)
	assert.InDelta(t, 180.0, resp.Total, 0.001)
	assert.Equal(t, "pending", resp.PaymentStatus)

	require.NotNil(t, orders.created)
	assert.Equal(t, "u1", orders.created.UserID)
}

func TestPlaceOrder_EmptyItems(t *testing.T) {
	h := newTestHandler(&testDeps{})
	w := doRequest(h.PlaceOrder, http.MethodPost, "/api/orders", `{"items":[]}`, "u1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetOrder_OtherUsersOrderIsHidden(t *testing.T) {
	h := newTestHandler(&testDeps{
		orders: &mockOrderRepo{orders: map[string]*order.Order{
			"ord-1": {ID: "ord-1", UserID: "u1", PaymentStatus: order.PaymentPending},
		}},
	})

	r := httptest.NewRequest(http.MethodGet, "/api/orders/ord-1", nil)
	r.SetPathValue("id", "ord-1")
	r = r.WithContext(withUserID(r.Context(), "intruder"))
	w := httptest.NewRecorder()
	h.GetOrder(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
