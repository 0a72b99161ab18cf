package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/kalamart/storefront/internal/domain/coupon"
)

const (
	getCouponByCodeSQL = `SELECT code, coupon_type, value, min_order_value, max_discount,
		description, valid_from, valid_until, usage_limit, used_count, per_user_limit
		FROM coupons WHERE UPPER(code) = UPPER($1) AND active = TRUE`

	incrementCouponUsesSQL = `UPDATE coupons SET used_count = used_count + 1 WHERE UPPER(code) = UPPER($1)`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up an active coupon by its code (case-insensitive).
// Returns coupon.ErrInvalidCoupon when no matching active coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Rule, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	rule, err := pgx.CollectExactlyOneRow(rows, scanCouponRule)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrInvalidCoupon
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &rule, nil
}

// IncrementUses atomically increments the usage counter for the given coupon code.
func (r *CouponRepository) IncrementUses(ctx context.Context, code string) error {
	_, err := r.pool.Exec(ctx, incrementCouponUsesSQL, code)
	if err != nil {
		return fmt.Errorf("incrementing uses for coupon %q: %w", code, err)
	}
	return nil
}

func scanCouponRule(row pgx.CollectableRow) (coupon.Rule, error) {
	var (
		rule         coupon.Rule
		couponType   string
		value        decimal.Decimal
		minOrder     decimal.Decimal
		maxDiscount  decimal.Decimal
		validFrom    *time.Time
		validUntil   *time.Time
		usageLimit   int32
		usedCount    int32
		perUserLimit int32
	)
	err := row.Scan(
		&rule.Code, &couponType, &value, &minOrder, &maxDiscount,
		&rule.Description, &validFrom, &validUntil, &usageLimit, &usedCount, &perUserLimit,
	)
	rule.Type = coupon.Type(couponType)
	rule.Value = value
	rule.MinOrderValue = minOrder
	rule.MaxDiscount = maxDiscount
	rule.ValidFrom = validFrom
	rule.ValidUntil = validUntil
	rule.UsageLimit = int(usageLimit)
	rule.UsedCount = int(usedCount)
	rule.PerUserLimit = int(perUserLimit)
	return rule, err
}
