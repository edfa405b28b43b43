// Package client talks to the payment gateway over HTTP. It is what a wallet front end
// needs: account creation and import, balances and history, payments and asset
// management, plus a Session that keeps the active keypair in a KeyStore and a
// Refresher that re-reads account details on a fixed interval.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	stellarpay "github.com/marwen-abid/stellar-payments-go"
	"github.com/marwen-abid/stellar-payments-go/core/net"
	"github.com/marwen-abid/stellar-payments-go/errors"
)

// APIError is a non-2xx gateway response.
type APIError struct {
	Status     int    `json:"-"`
	Message    string `json:"error"`
	Code       string `json:"code"`
	Field      string `json:"field,omitempty"`
	RemoteCode string `json:"remote_code,omitempty"`

	// Present when account creation generated keys but could not fund them.
	PublicKey string `json:"publicKey,omitempty"`
	SecretKey string `json:"secretKey,omitempty"`
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("gateway returned %d: %s", e.Status, e.Message)
	if e.RemoteCode != "" {
		msg += fmt.Sprintf(" [%s]", e.RemoteCode)
	}
	return msg
}

// Client is a gateway API client.
type Client struct {
	baseURL string
	http    *net.Client
	log     *logrus.Entry
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for gateway calls.
func WithHTTPClient(hc *net.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithLogger sets the client logger.
func WithLogger(log *logrus.Entry) Option {
	return func(c *Client) {
		c.log = log
	}
}

// New creates a client for the gateway at baseURL (e.g. "http://localhost:5000").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = net.NewClient(net.WithLogger(c.log))
	}
	return c
}

// PaymentParams is the body of POST /api/payment.
type PaymentParams struct {
	SenderSecretKey   string `json:"senderSecretKey"`
	ReceiverPublicKey string `json:"receiverPublicKey"`
	Amount            string `json:"amount"`
	Asset             string `json:"asset,omitempty"`
	Issuer            string `json:"issuer,omitempty"`
	Memo              string `json:"memo,omitempty"`
}

// TrustParams is the body of POST /api/asset/trust.
type TrustParams struct {
	SecretKey       string `json:"secretKey"`
	AssetCode       string `json:"assetCode"`
	IssuerPublicKey string `json:"issuerPublicKey"`
	Limit           string `json:"limit,omitempty"`
}

// IssueParams is the body of POST /api/asset/issue.
type IssueParams struct {
	IssuerSecretKey      string `json:"issuerSecretKey"`
	DestinationPublicKey string `json:"destinationPublicKey"`
	AssetCode            string `json:"assetCode"`
	Amount               string `json:"amount"`
}

// AssetInfo is the response of POST /api/asset/create.
type AssetInfo struct {
	AssetCode string `json:"assetCode"`
	Issuer    string `json:"issuer"`
	AssetType string `json:"assetType"`
}

// CreateAccount asks the gateway for a new funded account. If funding failed, the
// generated keypair is returned along with the *APIError.
func (c *Client) CreateAccount(ctx context.Context) (stellarpay.Keypair, error) {
	var kp stellarpay.Keypair
	err := c.post(ctx, "/api/account/create", nil, &kp)
	if apiErr, ok := err.(*APIError); ok && apiErr.PublicKey != "" {
		return stellarpay.Keypair{PublicKey: apiErr.PublicKey, SecretKey: apiErr.SecretKey}, err
	}
	return kp, err
}

// ImportAccount recovers the keypair of secretKey.
func (c *Client) ImportAccount(ctx context.Context, secretKey string) (stellarpay.Keypair, error) {
	var kp stellarpay.Keypair
	err := c.post(ctx, "/api/account/import", map[string]string{"secretKey": secretKey}, &kp)
	return kp, err
}

// FundAccount retries faucet funding for publicKey.
func (c *Client) FundAccount(ctx context.Context, publicKey string) error {
	return c.post(ctx, "/api/account/fund", map[string]string{"publicKey": publicKey}, nil)
}

// AccountDetails returns balances and recent transactions of publicKey.
func (c *Client) AccountDetails(ctx context.Context, publicKey string) (*stellarpay.AccountDetails, error) {
	var details stellarpay.AccountDetails
	if err := c.get(ctx, "/api/account/"+url.PathEscape(publicKey), &details); err != nil {
		return nil, err
	}
	return &details, nil
}

// SendPayment submits a payment.
func (c *Client) SendPayment(ctx context.Context, params PaymentParams) (*stellarpay.TransactionResult, error) {
	var result stellarpay.TransactionResult
	if err := c.post(ctx, "/api/payment", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateAsset validates an asset definition.
func (c *Client) CreateAsset(ctx context.Context, code, issuer string) (*AssetInfo, error) {
	var info AssetInfo
	err := c.post(ctx, "/api/asset/create", map[string]string{"assetCode": code, "issuerPublicKey": issuer}, &info)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// TrustAsset establishes a trustline.
func (c *Client) TrustAsset(ctx context.Context, params TrustParams) (*stellarpay.TransactionResult, error) {
	var result stellarpay.TransactionResult
	if err := c.post(ctx, "/api/asset/trust", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// IssueAsset pays out a custom asset from its issuer.
func (c *Client) IssueAsset(ctx context.Context, params IssueParams) (*stellarpay.TransactionResult, error) {
	var result stellarpay.TransactionResult
	if err := c.post(ctx, "/api/asset/issue", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// StreamURL returns the websocket URL of publicKey's payment stream.
func (c *Client) StreamURL(publicKey string) string {
	base := c.baseURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/api/account/" + url.PathEscape(publicKey) + "/stream"
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	resp, err := c.http.Get(ctx, c.baseURL+path)
	if err != nil {
		return err
	}
	return c.decode(resp, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return errors.New(errors.LayerClient, errors.VALIDATION_FAILED, "failed to encode request", err)
		}
	}
	resp, err := c.http.Post(ctx, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	return c.decode(resp, out)
}

func (c *Client) decode(resp *net.Response, out any) error {
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.New(errors.LayerClient, errors.NETWORK_ERROR, "failed to read response", err)
	}

	if !resp.OK() {
		apiErr := &APIError{Status: resp.StatusCode}
		if jsonErr := json.Unmarshal(raw, apiErr); jsonErr != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.New(errors.LayerClient, errors.NETWORK_ERROR, "failed to decode response", err)
	}
	return nil
}
