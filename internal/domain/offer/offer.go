package offer

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested offer does not exist.
var ErrNotFound = errors.New("offer not found")

// Type enumerates the supported promotional offer strategies.
type Type string

const (
	// TypePercentage discounts a percentage of the line price, optionally
	// capped at MaxDiscount.
	TypePercentage Type = "percentage"
	// TypeFlat discounts a fixed amount, floored so the price never goes
	// negative.
	TypeFlat Type = "flat"
	// TypeBuyXGetY is informational only: it produces a label but no price
	// change. The free-item effect on totals is not defined by the product.
	TypeBuyXGetY Type = "buy_x_get_y"
)

// Offer is an admin-configured, auto-applied discount rule scoped to a
// product, a category, or the whole catalog. At most one of ProductID and
// CategoryID is set; both empty means site-wide.
type Offer struct {
	ID            string
	Title         string
	Type          Type
	Value         decimal.Decimal
	BuyQuantity   int
	GetQuantity   int
	MinOrderValue decimal.Decimal
	MaxDiscount   decimal.Decimal
	ProductID     string
	CategoryID    string
	StartsAt      *time.Time
	EndsAt        *time.Time
	Active        bool
	AutoApply     bool
	CreatedAt     time.Time
}

// ActiveAt reports whether the offer is live at the given instant: the
// Active flag is set and the instant falls within [StartsAt, EndsAt].
// Either bound may be nil for an open-ended window.
func (o *Offer) ActiveAt(now time.Time) bool {
	if !o.Active {
		return false
	}
	if o.StartsAt != nil && now.Before(*o.StartsAt) {
		return false
	}
	if o.EndsAt != nil && now.After(*o.EndsAt) {
		return false
	}
	return true
}

// Filter returns the offers that are live at the given instant. The pricing
// resolver expects this filter to have been applied once upstream.
func Filter(offers []Offer, now time.Time) []Offer {
	out := make([]Offer, 0, len(offers))
	for _, o := range offers {
		if o.ActiveAt(now) {
			out = append(out, o)
		}
	}
	return out
}

// Repository defines persistence operations for offers. The pricing resolver
// only reads; writes happen through the admin surface.
type Repository interface {
	List(ctx context.Context) ([]Offer, error)
	ListActive(ctx context.Context, now time.Time) ([]Offer, error)
	GetByID(ctx context.Context, id string) (*Offer, error)
	Create(ctx context.Context, o *Offer) error
	Update(ctx context.Context, o *Offer) error
	Delete(ctx context.Context, id string) error
}
