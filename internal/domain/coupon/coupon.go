package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Type enumerates the supported coupon discount strategies. Coupons are
// user-entered at checkout, unlike offers which auto-apply.
type Type string

const (
	// TypePercentage discounts a percentage of the cart subtotal, optionally
	// capped at MaxDiscount.
	TypePercentage Type = "percentage"
	// TypeFlat discounts a fixed amount capped at the subtotal.
	TypeFlat Type = "flat"
)

var (
	// ErrInvalidCoupon is returned when a coupon code is not found or the
	// cart does not satisfy the coupon's minimum order value.
	ErrInvalidCoupon = errors.New("invalid coupon code")
	// ErrCouponExpired is returned when a coupon is outside its valid time window.
	ErrCouponExpired = errors.New("coupon expired")
	// ErrUsageLimitReached is returned when a coupon has exhausted its allowed uses.
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
)

// Rule defines a coupon's discount behaviour and eligibility constraints.
// PerUserLimit is stored for the admin surface; per-user redemption
// bookkeeping happens at redemption time, not during validation.
type Rule struct {
	Code          string
	Type          Type
	Value         decimal.Decimal
	MinOrderValue decimal.Decimal
	MaxDiscount   decimal.Decimal
	Description   string
	ValidFrom     *time.Time
	ValidUntil    *time.Time
	UsageLimit    int
	UsedCount     int
	PerUserLimit  int
}

// Discount holds the computed discount amount and a human-readable description.
type Discount struct {
	Amount      decimal.Decimal
	Description string
}

// Repository provides lookup and mutation of coupon rules.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Rule, error)
	IncrementUses(ctx context.Context, code string) error
}
