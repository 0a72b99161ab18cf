package offer

import "fmt"

// ValidationError reports a malformed offer at admin write time. The pricing
// resolver assumes rules are well-formed, so rejection happens here.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid offer: %s %s", e.Field, e.Reason)
}

// Validate checks an offer before it is persisted.
func Validate(o *Offer) error {
	switch o.Type {
	case TypePercentage:
		if !o.Value.IsPositive() {
			return &ValidationError{Field: "value", Reason: "must be positive"}
		}
		if o.Value.GreaterThan(hundred) {
			return &ValidationError{Field: "value", Reason: "must not exceed 100"}
		}
	case TypeFlat:
		if !o.Value.IsPositive() {
			return &ValidationError{Field: "value", Reason: "must be positive"}
		}
	case TypeBuyXGetY:
		if o.BuyQuantity <= 0 {
			return &ValidationError{Field: "buy_quantity", Reason: "must be positive"}
		}
		if o.GetQuantity <= 0 {
			return &ValidationError{Field: "get_quantity", Reason: "must be positive"}
		}
	default:
		return &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown type %q", o.Type)}
	}

	if o.ProductID != "" && o.CategoryID != "" {
		return &ValidationError{Field: "scope", Reason: "at most one of product_id and category_id may be set"}
	}
	if o.MinOrderValue.IsNegative() {
		return &ValidationError{Field: "min_order_value", Reason: "must not be negative"}
	}
	if o.MaxDiscount.IsNegative() {
		return &ValidationError{Field: "max_discount", Reason: "must not be negative"}
	}
	if o.StartsAt != nil && o.EndsAt != nil && o.EndsAt.Before(*o.StartsAt) {
		return &ValidationError{Field: "end_date", Reason: "must not precede start_date"}
	}
	return nil
}
