package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Validator validates a coupon code against a cart subtotal and returns the
// computed discount, counting the use as a redemption.
type Validator interface {
	Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*Discount, error)
}

// Quoter previews a coupon against a cart subtotal without redeeming it, for
// price quotes that persist nothing.
type Quoter interface {
	Quote(ctx context.Context, code string, subtotal decimal.Decimal) (*Discount, error)
}

var (
	_ Validator = (*RepoValidator)(nil)
	_ Quoter    = (*RepoValidator)(nil)
)

// RepoValidator implements Validator by looking up coupon rules from a
// Repository and applying them via the Apply function.
type RepoValidator struct {
	repo Repository
	now  func() time.Time
}

// NewRepoValidator creates a RepoValidator backed by the given Repository.
func NewRepoValidator(repo Repository) *RepoValidator {
	return &RepoValidator{repo: repo, now: time.Now}
}

// Validate looks up the coupon rule for the given code, checks temporal
// validity and usage limits, applies it to the subtotal, and increments the
// usage counter on success.
func (v *RepoValidator) Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*Discount, error) {
	d, err := v.check(ctx, code, subtotal)
	if err != nil {
		return nil, err
	}

	if err := v.repo.IncrementUses(ctx, code); err != nil {
		return nil, errors.Wrap(err, "increment coupon uses")
	}

	return d, nil
}

// Quote is Validate without the redemption side effect.
func (v *RepoValidator) Quote(ctx context.Context, code string, subtotal decimal.Decimal) (*Discount, error) {
	return v.check(ctx, code, subtotal)
}

func (v *RepoValidator) check(ctx context.Context, code string, subtotal decimal.Decimal) (*Discount, error) {
	rule, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrInvalidCoupon) {
			return nil, ErrInvalidCoupon
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	now := v.now()

	if rule.ValidFrom != nil && now.Before(*rule.ValidFrom) {
		return nil, ErrCouponExpired
	}
	if rule.ValidUntil != nil && now.After(*rule.ValidUntil) {
		return nil, ErrCouponExpired
	}

	if rule.UsageLimit > 0 && rule.UsedCount >= rule.UsageLimit {
		return nil, ErrUsageLimitReached
	}

	d, err := Apply(rule, subtotal)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Apply calculates the discount for the given rule against a cart subtotal.
// It returns ErrInvalidCoupon when the subtotal is below the rule's minimum
// order value.
func Apply(rule *Rule, subtotal decimal.Decimal) (Discount, error) {
	if rule.MinOrderValue.IsPositive() && subtotal.LessThan(rule.MinOrderValue) {
		return Discount{}, ErrInvalidCoupon
	}

	var amount decimal.Decimal
	switch rule.Type {
	case TypePercentage:
		amount = subtotal.Mul(rule.Value).Div(hundred)
		if rule.MaxDiscount.IsPositive() && amount.GreaterThan(rule.MaxDiscount) {
			amount = rule.MaxDiscount
		}
	case TypeFlat:
		amount = decimal.Min(rule.Value, subtotal)
	default:
		return Discount{}, errors.Errorf("unsupported coupon type: %q", rule.Type)
	}

	if amount.IsNegative() {
		amount = decimal.Zero
	}

	return Discount{
		Amount:      amount.Round(2),
		Description: rule.Description,
	}, nil
}
