package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/kalamart/storefront/internal/domain/offer"
)

const (
	offerColumns = `id, title, offer_type, value, buy_quantity, get_quantity,
		min_order_value, max_discount, product_id, category_id,
		starts_at, ends_at, active, auto_apply, created_at`

	listOffersSQL = `SELECT ` + offerColumns + ` FROM offers ORDER BY created_at DESC`

	listActiveOffersSQL = `SELECT ` + offerColumns + ` FROM offers
		WHERE active = TRUE AND auto_apply = TRUE
		AND (starts_at IS NULL OR starts_at <= $1)
		AND (ends_at IS NULL OR ends_at >= $1)`

	getOfferByIDSQL = `SELECT ` + offerColumns + ` FROM offers WHERE id = $1`

	createOfferSQL = `INSERT INTO offers (id, title, offer_type, value, buy_quantity, get_quantity,
		min_order_value, max_discount, product_id, category_id,
		starts_at, ends_at, active, auto_apply)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	updateOfferSQL = `UPDATE offers SET title = $2, offer_type = $3, value = $4,
		buy_quantity = $5, get_quantity = $6, min_order_value = $7, max_discount = $8,
		product_id = $9, category_id = $10, starts_at = $11, ends_at = $12,
		active = $13, auto_apply = $14
		WHERE id = $1`

	deleteOfferSQL = `DELETE FROM offers WHERE id = $1`
)

var _ offer.Repository = (*OfferRepository)(nil)

// OfferRepository implements offer.Repository backed by PostgreSQL.
type OfferRepository struct {
	pool *pgxpool.Pool
}

// NewOfferRepository returns an OfferRepository that uses the given pool.
func NewOfferRepository(pool *pgxpool.Pool) *OfferRepository {
	return &OfferRepository{pool: pool}
}

// List returns every offer, newest first.
func (r *OfferRepository) List(ctx context.Context) ([]offer.Offer, error) {
	rows, err := r.pool.Query(ctx, listOffersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing offers: %w", err)
	}
	return pgx.CollectRows(rows, scanOffer)
}

// ListActive returns the auto-apply offers live at the given instant. The time
// window filter runs in SQL so the pricing path never loads dead offers.
func (r *OfferRepository) ListActive(ctx context.Context, now time.Time) ([]offer.Offer, error) {
	rows, err := r.pool.Query(ctx, listActiveOffersSQL, now)
	if err != nil {
		return nil, fmt.Errorf("listing active offers: %w", err)
	}
	return pgx.CollectRows(rows, scanOffer)
}

// GetByID returns a single offer by its identifier.
func (r *OfferRepository) GetByID(ctx context.Context, id string) (*offer.Offer, error) {
	rows, err := r.pool.Query(ctx, getOfferByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting offer %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOffer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, offer.ErrNotFound
		}
		return nil, fmt.Errorf("getting offer %q: %w", id, err)
	}
	return &o, nil
}

// Create persists a new offer.
func (r *OfferRepository) Create(ctx context.Context, o *offer.Offer) error {
	_, err := r.pool.Exec(ctx, createOfferSQL,
		o.ID, o.Title, string(o.Type), o.Value, int32(o.BuyQuantity), int32(o.GetQuantity),
		o.MinOrderValue, o.MaxDiscount, nullable(o.ProductID), nullable(o.CategoryID),
		o.StartsAt, o.EndsAt, o.Active, o.AutoApply,
	)
	if err != nil {
		return fmt.Errorf("creating offer %q: %w", o.ID, err)
	}
	return nil
}

// Update replaces every mutable field of an existing offer.
func (r *OfferRepository) Update(ctx context.Context, o *offer.Offer) error {
	tag, err := r.pool.Exec(ctx, updateOfferSQL,
		o.ID, o.Title, string(o.Type), o.Value, int32(o.BuyQuantity), int32(o.GetQuantity),
		o.MinOrderValue, o.MaxDiscount, nullable(o.ProductID), nullable(o.CategoryID),
		o.StartsAt, o.EndsAt, o.Active, o.AutoApply,
	)
	if err != nil {
		return fmt.Errorf("updating offer %q: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return offer.ErrNotFound
	}
	return nil
}

// Delete removes an offer.
func (r *OfferRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteOfferSQL, id)
	if err != nil {
		return fmt.Errorf("deleting offer %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return offer.ErrNotFound
	}
	return nil
}

func scanOffer(row pgx.CollectableRow) (offer.Offer, error) {
	var (
		o           offer.Offer
		offerType   string
		buyQty      int32
		getQty      int32
		value       decimal.Decimal
		minOrder    decimal.Decimal
		maxDiscount decimal.Decimal
		productID   *string
		categoryID  *string
	)
	err := row.Scan(
		&o.ID, &o.Title, &offerType, &value, &buyQty, &getQty,
		&minOrder, &maxDiscount, &productID, &categoryID,
		&o.StartsAt, &o.EndsAt, &o.Active, &o.AutoApply, &o.CreatedAt,
	)
	o.Type = offer.Type(offerType)
	o.Value = value
	o.BuyQuantity = int(buyQty)
	o.GetQuantity = int(getQty)
	o.MinOrderValue = minOrder
	o.MaxDiscount = maxDiscount
	if productID != nil {
		o.ProductID = *productID
	}
	if categoryID != nil {
		o.CategoryID = *categoryID
	}
	return o, err
}

// nullable maps an empty string to SQL NULL so scope columns stay NULL rather
// than holding empty-string sentinels.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
