package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/kalamart/storefront/internal/domain/payment"
)

// ErrPaymentNotFound is returned when no payment matches the lookup.
var ErrPaymentNotFound = errors.New("payment not found")

const (
	markOrderPaidSQL = `UPDATE orders SET payment_status = 'paid'
		WHERE id = $1 AND payment_status = 'pending'`

	insertPaymentSQL = `INSERT INTO payments (id, order_id, amount, method, status,
		transaction_id, gateway_response)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (order_id, transaction_id) DO NOTHING`

	paymentColumns = `id, order_id, amount, method, status, transaction_id, gateway_response, created_at`

	findPaymentByTransactionSQL = `SELECT ` + paymentColumns + ` FROM payments
		WHERE order_id = $1 AND transaction_id = $2`

	listPaymentsByOrderSQL = `SELECT ` + paymentColumns + ` FROM payments
		WHERE order_id = $1 ORDER BY created_at`
)

var _ payment.Repository = (*PaymentRepository)(nil)

// PaymentRepository implements payment.Repository backed by PostgreSQL.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository returns a PaymentRepository that uses the given pool.
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

// RecordVerified flips the order's payment status pending->paid and appends
// the payment row in one transaction. The conditional UPDATE and the unique
// (order_id, transaction_id) insert make a replayed verification a no-op:
// neither statement changes anything the second time.
func (r *PaymentRepository) RecordVerified(ctx context.Context, orderID string, p *payment.Payment) error {
	gatewayJSON, err := json.Marshal(p.GatewayResponse)
	if err != nil {
		return fmt.Errorf("marshaling gateway response: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, markOrderPaidSQL, orderID); err != nil {
		return fmt.Errorf("marking order %q paid: %w", orderID, err)
	}

	if _, err := tx.Exec(ctx, insertPaymentSQL,
		p.ID, p.OrderID, p.Amount, string(p.Method), string(p.Status),
		p.TransactionID, gatewayJSON,
	); err != nil {
		return fmt.Errorf("inserting payment %q: %w", p.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing payment %q: %w", p.ID, err)
	}
	return nil
}

// FindByTransactionID returns the payment recorded for a gateway transaction.
func (r *PaymentRepository) FindByTransactionID(ctx context.Context, orderID, transactionID string) (*payment.Payment, error) {
	rows, err := r.pool.Query(ctx, findPaymentByTransactionSQL, orderID, transactionID)
	if err != nil {
		return nil, fmt.Errorf("finding payment by transaction %q: %w", transactionID, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanPayment)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("finding payment by transaction %q: %w", transactionID, err)
	}
	return &p, nil
}

// ListByOrder returns every payment recorded against an order, oldest first.
func (r *PaymentRepository) ListByOrder(ctx context.Context, orderID string) ([]payment.Payment, error) {
	rows, err := r.pool.Query(ctx, listPaymentsByOrderSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("listing payments for order %q: %w", orderID, err)
	}
	return pgx.CollectRows(rows, scanPayment)
}

func scanPayment(row pgx.CollectableRow) (payment.Payment, error) {
	var (
		p           payment.Payment
		amount      decimal.Decimal
		method      string
		status      string
		gatewayJSON []byte
	)
	err := row.Scan(
		&p.ID, &p.OrderID, &amount, &method, &status,
		&p.TransactionID, &gatewayJSON, &p.CreatedAt,
	)
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal(gatewayJSON, &p.GatewayResponse); err != nil {
		return p, fmt.Errorf("unmarshaling gateway response: %w", err)
	}
	p.Amount = amount
	p.Method = payment.Method(method)
	p.Status = payment.Status(status)
	return p, nil
}
