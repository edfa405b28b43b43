// Package net provides the HTTP client used for calls to Stellar services that the
// Horizon SDK does not cover (Friendbot) and for calls to the payment gateway.
//
// Every request is a single attempt bounded by the client timeout. Failures are
// surfaced immediately; callers decide whether to try again.
//
// Example usage:
//
//	client := net.NewClient(net.WithTimeout(20 * time.Second))
//	resp, err := client.Get(ctx, "https://friendbot.stellar.org/?addr=G...")
package net

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/marwen-abid/stellar-payments-go/errors"
)

const defaultTimeout = 30 * time.Second

// Client is an HTTP client with a fixed per-request timeout.
type Client struct {
	httpClient *http.Client
	log        *logrus.Entry
}

// ClientOption is a function that configures a Client.
type ClientOption func(*Client)

// WithTimeout sets the HTTP client timeout (default: 30s).
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying *http.Client, e.g. with an httptest server's client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger for request diagnostics.
func WithLogger(log *logrus.Entry) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// NewClient creates a new HTTP client with the given options.
func NewClient(opts ...ClientOption) *Client {
	client := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		log:        logrus.NewEntry(logrus.StandardLogger()),
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Response wraps an HTTP response with convenience methods.
type Response struct {
	*http.Response
}

// OK reports whether the response has a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Get performs an HTTP GET request.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.New(errors.LayerClient, errors.NETWORK_ERROR, "failed to create GET request", err)
	}
	return c.do(req)
}

// Post performs an HTTP POST request with a JSON body.
func (c *Client) Post(ctx context.Context, url string, body io.Reader) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, errors.New(errors.LayerClient, errors.NETWORK_ERROR, "failed to create POST request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

// do executes the request once. Non-2xx responses are returned to the caller untouched.
func (c *Client) do(req *http.Request) (*Response, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if req.Context().Err() != nil {
			return nil, errors.New(errors.LayerClient, errors.NETWORK_ERROR, "request cancelled", req.Context().Err())
		}
		return nil, errors.New(errors.LayerClient, errors.NETWORK_ERROR,
			"request to "+req.URL.Host+" failed", err)
	}

	c.log.WithFields(logrus.Fields{
		"method":   req.Method,
		"host":     req.URL.Host,
		"path":     req.URL.Path,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	}).Debug("http request")

	return &Response{resp}, nil
}
