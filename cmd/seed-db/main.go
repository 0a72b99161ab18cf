// Command seed-db loads products from a JSON file and seeds demo offers, a
// coupon, an admin API key, and optional gateway credentials. Intended for
// local development and demo environments.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/kalamart/storefront/internal/domain/auth"
	"github.com/kalamart/storefront/internal/storage/postgres"
)

type productJSON struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category"`
	Image    struct {
		Thumbnail string `json:"thumbnail"`
		Mobile    string `json:"mobile"`
		Tablet    string `json:"tablet"`
		Desktop   string `json:"desktop"`
	} `json:"image"`
}

func main() {
	var (
		databaseURL      string
		productsFile     string
		apiKey           string
		apiKeyPepper     string
		razorpayKeyID    string
		razorpayKeySecre string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&apiKey, "api-key", "", "admin API key to seed (or STORE_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or STORE_API_KEY_PEPPER env)")
	flag.StringVar(&razorpayKeyID, "razorpay-key-id", "", "gateway key id to store in settings (optional)")
	flag.StringVar(&razorpayKeySecre, "razorpay-key-secret", "", "gateway key secret to store in settings (optional)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("STORE_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or STORE_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("STORE_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, apiKey, apiKeyPepper, razorpayKeyID, razorpayKeySecre); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, apiKey, pepper, rzpKeyID, rzpKeySecret string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedOffers(ctx, pool); err != nil {
		return errors.Wrap(err, "seed offers")
	}
	if err := seedCoupons(ctx, pool); err != nil {
		return errors.Wrap(err, "seed coupons")
	}
	if err := seedAPIKey(ctx, pool, apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}
	if rzpKeyID != "" && rzpKeySecret != "" {
		if err := seedGatewayCredentials(ctx, pool, rzpKeyID, rzpKeySecret); err != nil {
			return errors.Wrap(err, "seed gateway credentials")
		}
	}

	return nil
}

const upsertProductSQL = `
INSERT INTO products (id, name, price, category_id, image_thumbnail, image_mobile, image_tablet, image_desktop)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET
    name = EXCLUDED.name,
    price = EXCLUDED.price,
    category_id = EXCLUDED.category_id,
    image_thumbnail = EXCLUDED.image_thumbnail,
    image_mobile = EXCLUDED.image_mobile,
    image_tablet = EXCLUDED.image_tablet,
    image_desktop = EXCLUDED.image_desktop
`

func seedProducts(ctx context.Context, pool *pgxpool.Pool, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		if _, err := pool.Exec(ctx, upsertProductSQL,
			p.ID, p.Name, p.Price, p.Category,
			p.Image.Thumbnail, p.Image.Mobile, p.Image.Tablet, p.Image.Desktop,
		); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}
		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

const upsertOfferSQL = `
INSERT INTO offers (id, title, offer_type, value, buy_quantity, get_quantity,
                    min_order_value, max_discount, product_id, category_id,
                    starts_at, ends_at, active, auto_apply)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (id) DO NOTHING
`

func seedOffers(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding demo offers")

	now := time.Now()
	weekend := now.AddDate(0, 0, 7)

	type seedOffer struct {
		id, title, typ      string
		value, maxDiscount  decimal.Decimal
		buyQty, getQty      int
		minOrder            decimal.Decimal
		productID, category *string
		startsAt, endsAt    *time.Time
	}

	category := "beverages"
	offers := []seedOffer{
		{
			id:          "seed-festive-10",
			title:       "Festive Sale: 10% off storewide",
			typ:         "percentage",
			value:       decimal.NewFromInt(10),
			maxDiscount: decimal.NewFromInt(200),
			startsAt:    &now,
			endsAt:      &weekend,
		},
		{
			id:       "seed-beverages-flat-50",
			title:    "Flat 50 off beverages",
			typ:      "flat",
			value:    decimal.NewFromInt(50),
			minOrder: decimal.NewFromInt(300),
			category: &category,
		},
	}

	for _, o := range offers {
		if _, err := pool.Exec(ctx, upsertOfferSQL,
			o.id, o.title, o.typ, o.value, o.buyQty, o.getQty,
			o.minOrder, o.maxDiscount, o.productID, o.category,
			o.startsAt, o.endsAt, true, true,
		); err != nil {
			return errors.Wrapf(err, "upsert offer %s", o.id)
		}
		slog.Info("upserted offer", slog.String("id", o.id), slog.String("title", o.title))
	}

	return nil
}

const upsertCouponSQL = `
INSERT INTO coupons (code, coupon_type, value, min_order_value, max_discount,
                     description, usage_limit, active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (code) DO UPDATE SET
    coupon_type = EXCLUDED.coupon_type,
    value = EXCLUDED.value,
    min_order_value = EXCLUDED.min_order_value,
    max_discount = EXCLUDED.max_discount,
    description = EXCLUDED.description,
    usage_limit = EXCLUDED.usage_limit,
    active = EXCLUDED.active
`

func seedCoupons(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding demo coupons")

	type seedCoupon struct {
		code, typ, description string
		value, minOrder, max   decimal.Decimal
		usageLimit             int
	}

	coupons := []seedCoupon{
		{
			code:        "WELCOME10",
			typ:         "percentage",
			value:       decimal.NewFromInt(10),
			max:         decimal.NewFromInt(100),
			description: "10% off your first order, up to 100",
		},
		{
			code:        "FLAT75",
			typ:         "flat",
			value:       decimal.NewFromInt(75),
			minOrder:    decimal.NewFromInt(500),
			description: "Flat 75 off orders over 500",
			usageLimit:  1000,
		},
	}

	for _, c := range coupons {
		if _, err := pool.Exec(ctx, upsertCouponSQL,
			c.code, c.typ, c.value, c.minOrder, c.max, c.description, c.usageLimit, true,
		); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.code)
		}
		slog.Info("upserted coupon", slog.String("code", c.code))
	}

	return nil
}

const upsertAPIKeySQL = `
INSERT INTO api_keys (id, key_hash, name, scopes, active)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
    key_hash = EXCLUDED.key_hash,
    name = EXCLUDED.name,
    scopes = EXCLUDED.scopes,
    active = EXCLUDED.active
`

func seedAPIKey(ctx context.Context, pool *pgxpool.Pool, apiKey, pepper string) error {
	slog.Info("seeding admin API key")

	keyHash := auth.HashKey([]byte(pepper), apiKey)
	if _, err := pool.Exec(ctx, upsertAPIKeySQL,
		"default", keyHash, "Default admin key", []string{"manage_offers"}, true,
	); err != nil {
		return errors.Wrap(err, "upsert default API key")
	}

	slog.Info("upserted API key", slog.String("id", "default"))
	return nil
}

const upsertSettingSQL = `
INSERT INTO settings (key, value, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
`

func seedGatewayCredentials(ctx context.Context, pool *pgxpool.Pool, keyID, keySecret string) error {
	slog.Info("storing gateway credentials in settings")

	value, err := json.Marshal(map[string]string{
		"key_id":     keyID,
		"key_secret": keySecret,
	})
	if err != nil {
		return errors.Wrap(err, "encode credentials")
	}

	if _, err := pool.Exec(ctx, upsertSettingSQL, "razorpay_credentials", value); err != nil {
		return errors.Wrap(err, "upsert credentials setting")
	}
	return nil
}
