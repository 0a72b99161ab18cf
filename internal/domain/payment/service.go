package payment

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/kalamart/storefront/internal/domain/order"
)

// Checkout is what a client needs to open the gateway UI for one payment
// attempt. KeyID is the public key only.
type Checkout struct {
	GatewayOrderID string
	AmountMinor    int64
	Currency       string
	KeyID          string
}

// VerifyRequest carries the gateway callback parameters plus the internal
// order the payment settles.
type VerifyRequest struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
	OrderID          string
}

// Service orchestrates the capture flow. Gateway order ids are never reused:
// a retry after failure starts over with CreateGatewayOrder.
type Service struct {
	creds    CredentialsSource
	gateway  Gateway
	orders   order.Repository
	recorder Recorder
	currency string
}

// NewService creates a payment Service.
func NewService(
	creds CredentialsSource,
	gateway Gateway,
	orders order.Repository,
	recorder Recorder,
	currency string,
) *Service {
	return &Service{
		creds:    creds,
		gateway:  gateway,
		orders:   orders,
		recorder: recorder,
		currency: currency,
	}
}

// CreateGatewayOrder starts a payment attempt for an owned, pending order.
// The order total is converted to integer minor units before leaving this
// method; nothing downstream sees the major-unit value.
func (s *Service) CreateGatewayOrder(ctx context.Context, userID, orderID string) (*Checkout, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, ErrNotOwner
	}
	if o.PaymentStatus == order.PaymentPaid {
		return nil, ErrAlreadyPaid
	}

	creds, err := s.creds.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	minor, err := MinorUnits(o.Total)
	if err != nil {
		return nil, err
	}

	g, err := s.gateway.CreateOrder(ctx, creds, GatewayOrderRequest{
		AmountMinor: minor,
		Currency:    s.currency,
		Receipt:     o.ID,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create gateway order")
	}

	return &Checkout{
		GatewayOrderID: g.ID,
		AmountMinor:    g.AmountMinor,
		Currency:       g.Currency,
		KeyID:          creds.KeyID,
	}, nil
}

// Verify checks the gateway signature, then the order's existence and
// ownership, in that order, all before any mutation. On success the order is
// marked paid and the payment appended atomically; a replayed verification
// with the same gateway payment id is a no-op.
func (s *Service) Verify(ctx context.Context, userID string, req VerifyRequest) error {
	creds, err := s.creds.Resolve(ctx)
	if err != nil {
		return err
	}

	if !VerifySignature(creds.KeySecret, req.GatewayOrderID, req.GatewayPaymentID, req.Signature) {
		return ErrInvalidSignature
	}

	o, err := s.orders.GetByID(ctx, req.OrderID)
	if err != nil {
		return err
	}
	if o.UserID != userID {
		return ErrNotOwner
	}

	p := &Payment{
		ID:            uuid.New().String(),
		OrderID:       o.ID,
		Amount:        o.Total,
		Method:        MethodOnline,
		Status:        StatusPaid,
		TransactionID: req.GatewayPaymentID,
		GatewayResponse: GatewayResponse{
			GatewayOrderID:   req.GatewayOrderID,
			GatewayPaymentID: req.GatewayPaymentID,
			Signature:        req.Signature,
		},
	}
	if err := s.recorder.RecordVerified(ctx, o.ID, p); err != nil {
		return errors.Wrap(err, "record verified payment")
	}

	return nil
}
