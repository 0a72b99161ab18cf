// Package payment implements the capture flow against an external payment
// gateway: creating a gateway order for a pending internal order, verifying
// the gateway's HMAC signature on completion, and marking the order paid
// exactly once.
package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Method identifies how a payment was made.
type Method string

// MethodOnline marks payments captured through the hosted gateway.
const MethodOnline Method = "online"

// Status tracks the outcome of a payment attempt.
type Status string

const (
	StatusPaid   Status = "paid"
	StatusFailed Status = "failed"
)

var (
	// ErrConfiguration is returned when gateway credentials cannot be
	// resolved from either the environment or the stored settings record.
	ErrConfiguration = errors.New("payment gateway is not configured")
	// ErrInvalidSignature is returned when the gateway callback signature
	// does not match the recomputed HMAC. Treated as a security event.
	ErrInvalidSignature = errors.New("invalid payment signature")
	// ErrNotOwner is returned when the caller does not own the order a
	// payment operation references.
	ErrNotOwner = errors.New("order does not belong to caller")
	// ErrAlreadyPaid is returned when a gateway order is requested for an
	// order that is no longer pending.
	ErrAlreadyPaid = errors.New("order is already paid")
	// ErrSettingNotFound is returned by a SettingsStore when no record
	// exists under the requested key.
	ErrSettingNotFound = errors.New("setting not found")
)

// GatewayError carries a non-2xx response from the external gateway. The
// upstream body is logged server-side only and never surfaced to clients.
type GatewayError struct {
	StatusCode int
	Body       string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway returned status %d", e.StatusCode)
}

// Payment is an append-only record of one verified payment attempt.
type Payment struct {
	ID              string
	OrderID         string
	Amount          decimal.Decimal
	Method          Method
	Status          Status
	TransactionID   string
	GatewayResponse GatewayResponse
	CreatedAt       time.Time
}

// GatewayResponse preserves the raw identifiers the gateway sent back.
type GatewayResponse struct {
	GatewayOrderID   string `json:"razorpay_order_id"`
	GatewayPaymentID string `json:"razorpay_payment_id"`
	Signature        string `json:"razorpay_signature"`
}

// Credentials is a gateway key pair. KeyID is public and may be returned to
// clients; KeySecret must never leave the server.
type Credentials struct {
	KeyID     string
	KeySecret string
}

// CredentialsSource resolves the gateway key pair at call time.
type CredentialsSource interface {
	Resolve(ctx context.Context) (Credentials, error)
}

// GatewayOrderRequest is the input for creating a gateway-side order.
// AmountMinor is in the gateway's minor unit (paise), never a float.
type GatewayOrderRequest struct {
	AmountMinor int64
	Currency    string
	Receipt     string
}

// GatewayOrder is the ephemeral order token issued by the gateway for one
// payment attempt.
type GatewayOrder struct {
	ID          string
	AmountMinor int64
	Currency    string
}

// Gateway creates orders on the external payment processor.
type Gateway interface {
	CreateOrder(ctx context.Context, creds Credentials, req GatewayOrderRequest) (*GatewayOrder, error)
}

// Recorder persists the outcome of a verified payment: the order's
// payment_status flips pending->paid and the payment row is appended in a
// single transaction. Replaying the same transaction id must be a no-op.
type Recorder interface {
	RecordVerified(ctx context.Context, orderID string, p *Payment) error
}

// Repository provides read access to recorded payments.
type Repository interface {
	Recorder
	FindByTransactionID(ctx context.Context, orderID, transactionID string) (*Payment, error)
	ListByOrder(ctx context.Context, orderID string) ([]Payment, error)
}

// SettingsStore reads stored admin configuration records, used as the
// fallback source for gateway credentials.
type SettingsStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// MinorUnits converts a major-unit amount to the gateway's integer minor
// unit (x100). Amounts with sub-paise precision are rejected rather than
// silently rounded.
func MinorUnits(amount decimal.Decimal) (int64, error) {
	shifted := amount.Shift(2)
	if !shifted.IsInteger() {
		return 0, errors.Errorf("amount %s has sub-minor-unit precision", amount)
	}
	return shifted.IntPart(), nil
}
