package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/kalamart/storefront/internal/domain/coupon"
	"github.com/kalamart/storefront/internal/domain/offer"
	"github.com/kalamart/storefront/internal/domain/order"
)

type cartQuoteRequest struct {
	Items      []cartItemRequest `json:"items"`
	CouponCode string            `json:"coupon_code,omitempty"`
}

type cartItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type cartLineResponse struct {
	ProductID       string  `json:"product_id"`
	Quantity        int     `json:"quantity"`
	UnitPrice       float64 `json:"unit_price"`
	DiscountedPrice float64 `json:"discounted_price"`
	OfferID         string  `json:"offer_id,omitempty"`
	OfferLabel      string  `json:"offer_label,omitempty"`
}

type cartQuoteResponse struct {
	Lines          []cartLineResponse `json:"lines"`
	Subtotal       float64            `json:"subtotal"`
	OfferDiscount  float64            `json:"offer_discount"`
	ByOffer        map[string]float64 `json:"offer_discounts_by_offer,omitempty"`
	CouponDiscount float64            `json:"coupon_discount"`
	Total          float64            `json:"total"`
}

// QuoteCart prices a cart without persisting anything: per-line offer
// resolution, cart-level discount aggregation, and an optional coupon applied
// to the offer-discounted subtotal.
func (h *Handler) QuoteCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req cartQuoteRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Items) == 0 {
		h.writeDomainError(w, r, order.ErrEmptyItems)
		return
	}

	ids := make([]string, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			h.writeDomainError(w, r, &order.InvalidQuantityError{ProductID: item.ProductID})
			return
		}
		ids[i] = item.ProductID
	}

	products, err := h.products.GetByIDs(ctx, ids)
	if err != nil {
		h.writeDomainError(w, r, errors.Wrap(err, "get products"))
		return
	}
	byID := make(map[string]int, len(products))
	for i, p := range products {
		byID[p.ID] = i
	}

	offers, err := h.offers.ListActive(ctx, h.now())
	if err != nil {
		h.writeDomainError(w, r, errors.Wrap(err, "list active offers"))
		return
	}

	lines := make([]offer.CartLine, len(req.Items))
	resp := cartQuoteResponse{Lines: make([]cartLineResponse, len(req.Items))}
	subtotal := decimal.Zero
	discountedSubtotal := decimal.Zero
	for i, item := range req.Items {
		idx, ok := byID[item.ProductID]
		if !ok {
			h.writeDomainError(w, r, &order.ProductNotFoundError{ProductID: item.ProductID})
			return
		}
		p := products[idx]
		qty := decimal.NewFromInt(int64(item.Quantity))

		lines[i] = offer.CartLine{
			Line: offer.Line{
				ProductID:  p.ID,
				CategoryID: p.CategoryID,
				Price:      p.Price,
			},
			Quantity: item.Quantity,
		}

		line := cartLineResponse{
			ProductID:       p.ID,
			Quantity:        item.Quantity,
			UnitPrice:       p.Price.InexactFloat64(),
			DiscountedPrice: p.Price.InexactFloat64(),
		}
		discounted := p.Price
		if po := offer.Resolve(lines[i].Line, offers); po != nil {
			discounted = po.DiscountedPrice
			line.DiscountedPrice = po.DiscountedPrice.InexactFloat64()
			line.OfferID = po.Offer.ID
			line.OfferLabel = po.Label
		}
		resp.Lines[i] = line

		subtotal = subtotal.Add(p.Price.Mul(qty))
		discountedSubtotal = discountedSubtotal.Add(discounted.Mul(qty))
	}

	cartDiscount := offer.CalculateCartDiscount(lines, offers)

	couponDiscount := decimal.Zero
	if req.CouponCode != "" {
		discount, err := h.coupons.Quote(ctx, req.CouponCode, discountedSubtotal)
		if err != nil {
			if errors.Is(err, coupon.ErrInvalidCoupon) ||
				errors.Is(err, coupon.ErrCouponExpired) ||
				errors.Is(err, coupon.ErrUsageLimitReached) {
				h.writeDomainError(w, r, err)
				return
			}
			h.writeDomainError(w, r, errors.Wrap(err, "validate coupon"))
			return
		}
		couponDiscount = discount.Amount
	}

	total := discountedSubtotal.Sub(couponDiscount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	resp.Subtotal = subtotal.Round(2).InexactFloat64()
	resp.OfferDiscount = cartDiscount.Total.InexactFloat64()
	if len(cartDiscount.ByOffer) > 0 {
		resp.ByOffer = make(map[string]float64, len(cartDiscount.ByOffer))
		for id, amount := range cartDiscount.ByOffer {
			resp.ByOffer[id] = amount.InexactFloat64()
		}
	}
	resp.CouponDiscount = couponDiscount.Round(2).InexactFloat64()
	resp.Total = total.Round(2).InexactFloat64()

	writeJSON(w, http.StatusOK, resp)
}
