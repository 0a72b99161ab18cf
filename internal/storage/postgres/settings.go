package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kalamart/storefront/internal/domain/payment"
)

const getSettingSQL = `SELECT value FROM settings WHERE key = $1`

var _ payment.SettingsStore = (*SettingsRepository)(nil)

// SettingsRepository reads admin configuration records from PostgreSQL.
// Values are opaque JSONB blobs interpreted by the caller.
type SettingsRepository struct {
	pool *pgxpool.Pool
}

// NewSettingsRepository returns a SettingsRepository that uses the given pool.
func NewSettingsRepository(pool *pgxpool.Pool) *SettingsRepository {
	return &SettingsRepository{pool: pool}
}

// Get returns the raw value stored under key, or payment.ErrSettingNotFound.
func (r *SettingsRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.pool.QueryRow(ctx, getSettingSQL, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrSettingNotFound
		}
		return nil, fmt.Errorf("getting setting %q: %w", key, err)
	}
	return value, nil
}
