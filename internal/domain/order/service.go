package order

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kalamart/storefront/internal/domain/coupon"
	"github.com/kalamart/storefront/internal/domain/offer"
	"github.com/kalamart/storefront/internal/domain/product"
)

// Sentinel errors for order validation.
var ErrEmptyItems = fmt.Errorf("items required")

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// PlaceOrderRequest holds the input for placing an order.
type PlaceOrderRequest struct {
	Items      []ItemRequest
	CouponCode string
}

// ItemRequest is a requested order line.
type ItemRequest struct {
	ProductID string
	Quantity  int
}

// PlaceOrderResult holds the output of a successfully placed order.
type PlaceOrderResult struct {
	Order    *Order
	Products []product.Product
}

// Service encapsulates order placement business logic: quantity validation,
// batch product lookup, offer resolution per line, coupon application, and
// persistence with payment_status=pending.
type Service struct {
	products product.Repository
	offers   offer.Repository
	coupons  coupon.Validator
	orders   Repository
	now      func() time.Time
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	products product.Repository,
	offers offer.Repository,
	coupons coupon.Validator,
	orders Repository,
) *Service {
	return &Service{
		products: products,
		offers:   offers,
		coupons:  coupons,
		orders:   orders,
		now:      time.Now,
	}
}

// PlaceOrder validates items, fetches products in a single batch, prices each
// line through the offer resolver, applies an optional coupon to the
// offer-discounted subtotal, and persists the order as payment-pending.
func (s *Service) PlaceOrder(ctx context.Context, userID string, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	ids := make([]string, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
		ids[i] = item.ProductID
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}

	productMap := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		productMap[p.ID] = p
	}

	products := make([]product.Product, 0, len(req.Items))
	for _, item := range req.Items {
		p, ok := productMap[item.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: item.ProductID}
		}
		products = append(products, p)
	}

	activeOffers, err := s.offers.ListActive(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("list active offers: %w", err)
	}

	// Price each line: the resolver picks at most one offer per product.
	items := make([]Item, len(req.Items))
	subtotal := decimal.Zero
	offerDiscount := decimal.Zero
	discountedSubtotal := decimal.Zero
	for i, item := range req.Items {
		p := products[i]
		qty := decimal.NewFromInt(int64(item.Quantity))

		line := Item{
			ProductID:       p.ID,
			Quantity:        item.Quantity,
			UnitPrice:       p.Price,
			DiscountedPrice: p.Price,
		}
		if po := offer.Resolve(offer.Line{
			ProductID:  p.ID,
			CategoryID: p.CategoryID,
			Price:      p.Price,
		}, activeOffers); po != nil {
			line.DiscountedPrice = po.DiscountedPrice
			line.OfferID = po.Offer.ID
			line.OfferLabel = po.Label
			offerDiscount = offerDiscount.Add(po.Discount.Mul(qty))
		}
		items[i] = line

		subtotal = subtotal.Add(p.Price.Mul(qty))
		discountedSubtotal = discountedSubtotal.Add(line.DiscountedPrice.Mul(qty))
	}

	// Coupons stack on top of offer pricing, validated against what the
	// customer would actually pay.
	couponDiscount := decimal.Zero
	if req.CouponCode != "" {
		discount, err := s.coupons.Validate(ctx, req.CouponCode, discountedSubtotal)
		if err != nil {
			return nil, fmt.Errorf("validate coupon: %w", err)
		}
		couponDiscount = discount.Amount
	}

	total := discountedSubtotal.Sub(couponDiscount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	o := &Order{
		ID:             uuid.New().String(),
		UserID:         userID,
		Items:          items,
		Subtotal:       subtotal.Round(2),
		OfferDiscount:  offerDiscount.Round(2),
		CouponDiscount: couponDiscount.Round(2),
		Total:          total.Round(2),
		CouponCode:     req.CouponCode,
		PaymentStatus:  PaymentPending,
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	return &PlaceOrderResult{
		Order:    o,
		Products: products,
	}, nil
}
