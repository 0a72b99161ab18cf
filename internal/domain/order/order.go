package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")

// PaymentStatus tracks the payment lifecycle of an order. An order moves from
// pending to paid at most once, on a successfully verified payment.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// Order is the internal system of record for a purchase. Gateway orders are
// ephemeral tokens correlated with payment attempts against this record.
type Order struct {
	ID             string
	UserID         string
	Items          []Item
	Subtotal       decimal.Decimal
	OfferDiscount  decimal.Decimal
	CouponDiscount decimal.Decimal
	Total          decimal.Decimal
	CouponCode     string
	PaymentStatus  PaymentStatus
	CreatedAt      time.Time
}

// Item is a single order line with the pricing snapshot taken at placement.
type Item struct {
	ProductID       string          `json:"product_id"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountedPrice decimal.Decimal `json:"discounted_price"`
	OfferID         string          `json:"offer_id,omitempty"`
	OfferLabel      string          `json:"offer_label,omitempty"`
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
}
