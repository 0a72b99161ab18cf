// Command coupon-ingest imports promo codes from large gzip campaign dumps.
// A code is accepted only when it appears in at least two of the three dump
// files; the dumps are far too large to hold in memory, so the tool does two
// streaming passes with per-file bloom filters.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/kalamart/storefront/internal/storage/postgres"
)

const (
	bloomCapacity = 120_000_000
	bloomFPR      = 0.001
	numDumps      = 3
	progressEvery = 10_000_000
	minCodeLen    = 8
	maxCodeLen    = 10
)

// campaignRule is the discount applied when a known campaign code is found in
// the dumps. Unknown codes fall back to defaultRule.
type campaignRule struct {
	couponType  string
	value       string
	maxDiscount string
	description string
}

var campaignRules = map[string]campaignRule{
	"FIFTYOFF": {couponType: "percentage", value: "50", description: "50% off entire order"},
	"SIXTYOFF": {couponType: "percentage", value: "60", description: "60% off entire order"},
	"HAPPYHRS": {couponType: "percentage", value: "18", description: "Happy Hours: 18% off"},
	"GNULINUX": {couponType: "percentage", value: "15", description: "Open source discount: 15% off"},
	"OVER9000": {couponType: "flat", value: "90", description: "Flat 90 off your order"},
	"BIGSPEND": {couponType: "percentage", value: "25", maxDiscount: "500", description: "25% off, up to 500"},
}

var defaultRule = campaignRule{
	couponType:  "percentage",
	value:       "10",
	maxDiscount: "100",
	description: "Campaign promo code: 10% off",
}

// dumpResult holds candidate codes found in a single dump during pass 2.
type dumpResult struct {
	candidates map[string]uint
}

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing couponbaseN.gz dump files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL); err != nil {
		slog.Error("coupon ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	dumps := make([]string, numDumps)
	for i := range numDumps {
		dumps[i] = filepath.Join(dataDir, fmt.Sprintf("couponbase%d.gz", i+1))
	}
	for _, d := range dumps {
		if _, err := os.Stat(d); err != nil {
			return errors.Wrapf(err, "check dump %s", d)
		}
	}

	slog.Info("pass 1: building bloom filters", slog.Int("dumps", numDumps))

	filters, err := buildFilters(ctx, dumps)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	slog.Info("pass 2: cross-referencing dumps")

	codes, err := acceptedCodes(ctx, dumps, filters)
	if err != nil {
		return errors.Wrap(err, "cross-reference dumps")
	}

	slog.Info("accepted codes", slog.Int("count", len(codes)))

	if len(codes) == 0 {
		slog.Info("no codes to insert")
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := writeCoupons(ctx, pool, codes); err != nil {
		return errors.Wrap(err, "write coupons to database")
	}

	return nil
}

// buildFilters creates one bloom filter per dump, concurrently.
func buildFilters(ctx context.Context, dumps []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(dumps))

	g, ctx := errgroup.WithContext(ctx)
	for i, d := range dumps {
		g.Go(filterDump(ctx, i, d, filters))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return filters, nil
}

func filterDump(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter) func() error {
	return func() error {
		filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		var count uint64

		if err := streamDump(ctx, path, func(code string) {
			if len(code) >= minCodeLen && len(code) <= maxCodeLen {
				filter.AddString(code)
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 1 progress",
						slog.Int("dump", idx+1),
						slog.Uint64("codes", count),
					)
				}
			}
		}); err != nil {
			return errors.Wrapf(err, "build filter for dump %d", idx+1)
		}

		slog.Info("pass 1 complete",
			slog.Int("dump", idx+1),
			slog.Uint64("total_codes", count),
		)

		filters[idx] = filter
		return nil
	}
}

// acceptedCodes re-streams each dump and checks codes against the OTHER
// dumps' bloom filters. A code is accepted when it appears in 2+ dumps.
func acceptedCodes(ctx context.Context, dumps []string, filters []*bloom.BloomFilter) ([]string, error) {
	results := make([]dumpResult, len(dumps))

	g, ctx := errgroup.WithContext(ctx)
	for i, d := range dumps {
		g.Go(candidatesInDump(ctx, i, d, filters, results))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]uint)
	for _, r := range results {
		for code, mask := range r.candidates {
			merged[code] |= mask
		}
	}

	var accepted []string
	for code, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			accepted = append(accepted, code)
		}
	}

	return accepted, nil
}

func candidatesInDump(
	ctx context.Context,
	idx int,
	path string,
	filters []*bloom.BloomFilter,
	results []dumpResult,
) func() error {
	return func() error {
		candidates := make(map[string]uint)
		dumpBit := uint(1) << uint(idx)
		var count uint64

		if err := streamDump(ctx, path, func(code string) {
			if len(code) < minCodeLen || len(code) > maxCodeLen {
				return
			}

			count++
			if count%progressEvery == 0 {
				slog.Info("pass 2 progress",
					slog.Int("dump", idx+1),
					slog.Uint64("codes", count),
				)
			}

			for j, f := range filters {
				if j == idx {
					continue
				}
				if f.TestString(code) {
					candidates[code] |= dumpBit
					break
				}
			}
		}); err != nil {
			return errors.Wrapf(err, "scan dump %d for candidates", idx+1)
		}

		slog.Info("pass 2 complete",
			slog.Int("dump", idx+1),
			slog.Uint64("total_codes", count),
			slog.Int("candidates", len(candidates)),
		)

		results[idx] = dumpResult{candidates: candidates}
		return nil
	}
}

// streamDump opens a gzip-compressed dump and calls fn for each line.
func streamDump(ctx context.Context, path string, fn func(code string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}

const upsertCampaignCouponSQL = `
INSERT INTO coupons (code, coupon_type, value, max_discount, description, active)
VALUES ($1, $2, $3, $4, $5, TRUE)
ON CONFLICT (code) DO UPDATE SET
    coupon_type = EXCLUDED.coupon_type,
    value = EXCLUDED.value,
    max_discount = EXCLUDED.max_discount,
    description = EXCLUDED.description,
    active = TRUE
`

// writeCoupons upserts all accepted codes with their campaign rules.
func writeCoupons(ctx context.Context, pool *pgxpool.Pool, codes []string) error {
	slog.Info("writing coupons to database", slog.Int("count", len(codes)))

	for i, code := range codes {
		rule, ok := campaignRules[code]
		if !ok {
			rule = defaultRule
		}

		value, err := decimal.NewFromString(rule.value)
		if err != nil {
			return errors.Wrapf(err, "parse value for code %s", code)
		}
		maxDiscount := decimal.Zero
		if rule.maxDiscount != "" {
			if maxDiscount, err = decimal.NewFromString(rule.maxDiscount); err != nil {
				return errors.Wrapf(err, "parse max discount for code %s", code)
			}
		}

		if _, err := pool.Exec(ctx, upsertCampaignCouponSQL,
			code, rule.couponType, value, maxDiscount, rule.description,
		); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", code)
		}

		if (i+1)%100 == 0 || i+1 == len(codes) {
			slog.Info("write progress", slog.Int("written", i+1), slog.Int("total", len(codes)))
		}
	}

	return nil
}
