// Package razorpay is a minimal client for the Razorpay Orders API, covering
// only what the capture flow needs: creating an order for one payment attempt.
package razorpay

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/kalamart/storefront/internal/domain/payment"
)

// DefaultBaseURL is the production Razorpay API endpoint.
const DefaultBaseURL = "https://api.razorpay.com"

// maxErrorBody bounds how much of an upstream error response is retained for
// server-side logging.
const maxErrorBody = 4 << 10

// Client talks to the Razorpay REST API. Credentials are supplied per call so
// one client serves every tenant configuration.
type Client struct {
	baseURL string
	http    *http.Client
}

var _ payment.Gateway = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint, used in tests and sandboxes.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// NewClient creates a Razorpay API client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateOrder creates a gateway-side order via POST /v1/orders, authenticated
// with HTTP basic auth on the key pair.
func (c *Client) CreateOrder(ctx context.Context, creds payment.Credentials, req payment.GatewayOrderRequest) (*payment.GatewayOrder, error) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("amount", func(e *jx.Encoder) { e.Int64(req.AmountMinor) })
		e.Field("currency", func(e *jx.Encoder) { e.Str(req.Currency) })
		e.Field("receipt", func(e *jx.Encoder) { e.Str(req.Receipt) })
	})

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(e.Bytes()))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(creds.KeyID, creds.KeySecret)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "post orders")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &payment.GatewayError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	order, err := decodeOrder(body)
	if err != nil {
		return nil, errors.Wrap(err, "decode order")
	}
	return order, nil
}

func decodeOrder(body []byte) (*payment.GatewayOrder, error) {
	var order payment.GatewayOrder
	d := jx.DecodeBytes(body)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "id":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "id")
			}
			order.ID = v
		case "amount":
			v, err := d.Int64()
			if err != nil {
				return errors.Wrap(err, "amount")
			}
			order.AmountMinor = v
		case "currency":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "currency")
			}
			order.Currency = v
		default:
			return d.Skip()
		}
		return nil
	}); err != nil {
		return nil, err
	}
	if order.ID == "" {
		return nil, errors.New("response missing order id")
	}
	return &order, nil
}
