// Package donationapi sends round-up donations to the external donation
// service over HTTP.
package donationapi

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/internal/domain/donation"
)

const donationPath = "api/donation"

var _ donation.Notifier = (*Client)(nil)

// Client implements donation.Notifier.
type Client struct {
	endpoint string
	http     *http.Client
	cb       *gobreaker.CircuitBreaker
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default instrumented HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// New returns a Client posting to baseURL + "api/donation".
func New(baseURL string, lg *zap.Logger, opts ...Option) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse donation base url")
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, errors.Errorf("donation base url %q is not absolute", baseURL)
	}
	ref, _ := url.Parse(donationPath)
	if base.Path != "" && base.Path[len(base.Path)-1] != '/' {
		base.Path += "/"
	}

	c := &Client{
		endpoint: base.ResolveReference(ref).String(),
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "DonationAPI",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				lg.Warn("Circuit breaker state changed",
					zap.String("name", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Endpoint returns the URL donations are posted to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Notify posts d. Any 2xx response is success; everything else, including an
// open breaker, yields a *donation.NotificationError.
func (c *Client) Notify(ctx context.Context, d donation.Donation) error {
	_, err := c.cb.Execute(func() (any, error) {
		return nil, c.post(ctx, d)
	})
	if err == nil {
		return nil
	}
	var nerr *donation.NotificationError
	if errors.As(err, &nerr) {
		return nerr
	}
	return &donation.NotificationError{Err: err}
}

func (c *Client) post(ctx context.Context, d donation.Donation) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(EncodeDonation(d)))
	if err != nil {
		return &donation.NotificationError{Err: errors.Wrap(err, "create request")}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &donation.NotificationError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &donation.NotificationError{
			StatusCode: resp.StatusCode,
			Err:        errors.Errorf("unexpected status %s", resp.Status),
		}
	}
	return nil
}

// EncodeDonation renders the JSON body expected by the donation service.
func EncodeDonation(d donation.Donation) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("sourceRetailer")
	e.Str(d.SourceRetailer)
	e.FieldStart("customerId")
	e.Str(d.CustomerID)
	e.FieldStart("orderId")
	e.Str(d.OrderID)
	e.FieldStart("currency")
	e.Str(d.Currency)
	e.FieldStart("dateTime")
	e.Str(d.DateTime.UTC().Format(time.RFC3339))
	e.FieldStart("amount")
	e.Num(jx.Num(d.Amount.StringFixed(2)))
	e.ObjEnd()
	return e.Bytes()
}
