package offer

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Line is the pricing input for a single product: immutable during one
// resolution pass.
type Line struct {
	ProductID  string
	CategoryID string
	Price      decimal.Decimal
}

// CartLine is a Line plus the quantity ordered, used for cart-level
// aggregation.
type CartLine struct {
	Line
	Quantity int
}

// ProductOffer is the outcome of resolving a line against the active offers:
// the winning offer, the per-unit discount, the resulting price, and a
// display label.
type ProductOffer struct {
	Offer           Offer
	Discount        decimal.Decimal
	DiscountedPrice decimal.Decimal
	Label           string
}

// CartDiscount aggregates per-line discounts across a cart. ByOffer maps
// offer id to the cumulative discount that offer contributed, so the same
// offer applied on several lines shows a single merged amount.
type CartDiscount struct {
	Total   decimal.Decimal
	ByOffer map[string]decimal.Decimal
}

// Resolve picks the single offer that applies to the line and computes the
// discounted price. Offers must already be filtered to the active window.
//
// Precedence, first match wins:
//  1. an offer scoped to this exact product
//  2. an offer scoped to the product's category with no product scope
//  3. none (nil result, not an error)
//
// Offers never combine: at most one applies per line.
func Resolve(line Line, offers []Offer) *ProductOffer {
	if o := match(line, offers); o != nil {
		po := apply(*o, line.Price)
		return &po
	}
	return nil
}

func match(line Line, offers []Offer) *Offer {
	for i := range offers {
		if !eligible(&offers[i], line) {
			continue
		}
		if offers[i].ProductID == line.ProductID {
			return &offers[i]
		}
	}
	for i := range offers {
		if !eligible(&offers[i], line) {
			continue
		}
		if offers[i].ProductID == "" && offers[i].CategoryID != "" && offers[i].CategoryID == line.CategoryID {
			return &offers[i]
		}
	}
	return nil
}

// eligible applies the scope-independent constraints. A product-scoped offer
// only ever matches its product; MinOrderValue gates on the unit price since
// resolution sees one unit at a time.
func eligible(o *Offer, line Line) bool {
	if o.ProductID != "" && o.ProductID != line.ProductID {
		return false
	}
	if o.MinOrderValue.IsPositive() && line.Price.LessThan(o.MinOrderValue) {
		return false
	}
	return true
}

// apply computes the per-unit discount for the winning offer. Monetary
// outputs are rounded half-up to 2 decimal places.
func apply(o Offer, price decimal.Decimal) ProductOffer {
	switch o.Type {
	case TypePercentage:
		discount := price.Mul(o.Value).Div(hundred)
		if o.MaxDiscount.IsPositive() && discount.GreaterThan(o.MaxDiscount) {
			discount = o.MaxDiscount
		}
		discount = discount.Round(2)
		return ProductOffer{
			Offer:           o,
			Discount:        discount,
			DiscountedPrice: price.Sub(discount).Round(2),
			Label:           fmt.Sprintf("%s%% OFF", o.Value),
		}
	case TypeFlat:
		discount := o.Value
		discounted := price.Sub(discount)
		if discounted.IsNegative() {
			discounted = decimal.Zero
			discount = price
		}
		return ProductOffer{
			Offer:           o,
			Discount:        discount.Round(2),
			DiscountedPrice: discounted.Round(2),
			Label:           fmt.Sprintf("₹%s OFF", o.Value),
		}
	case TypeBuyXGetY:
		// Label only. The "get Y free" effect on totals is deliberately not
		// computed here.
		return ProductOffer{
			Offer:           o,
			Discount:        decimal.Zero,
			DiscountedPrice: price.Round(2),
			Label:           fmt.Sprintf("Buy %d Get %d", o.BuyQuantity, o.GetQuantity),
		}
	default:
		// Unknown types resolve to no discount rather than failing a price
		// computation mid-request; the admin surface rejects them at write time.
		return ProductOffer{
			Offer:           o,
			Discount:        decimal.Zero,
			DiscountedPrice: price.Round(2),
		}
	}
}

// CalculateCartDiscount resolves every cart line and sums per-unit discounts
// times quantity, merging contributions by offer id.
func CalculateCartDiscount(lines []CartLine, offers []Offer) CartDiscount {
	cd := CartDiscount{
		Total:   decimal.Zero,
		ByOffer: make(map[string]decimal.Decimal),
	}
	for _, line := range lines {
		po := Resolve(line.Line, offers)
		if po == nil || !po.Discount.IsPositive() {
			continue
		}
		amount := po.Discount.Mul(decimal.NewFromInt(int64(line.Quantity)))
		cd.Total = cd.Total.Add(amount)
		if prev, ok := cd.ByOffer[po.Offer.ID]; ok {
			cd.ByOffer[po.Offer.ID] = prev.Add(amount)
		} else {
			cd.ByOffer[po.Offer.ID] = amount
		}
	}
	cd.Total = cd.Total.Round(2)
	return cd
}
