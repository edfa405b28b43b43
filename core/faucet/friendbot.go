// Package faucet funds test-network accounts through Friendbot.
package faucet

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"

	"github.com/sirupsen/logrus"

	stellarpay "github.com/marwen-abid/stellar-payments-go"
	"github.com/marwen-abid/stellar-payments-go/core/net"
	"github.com/marwen-abid/stellar-payments-go/errors"
)

// DefaultFriendbotURL is the public testnet Friendbot.
const DefaultFriendbotURL = "https://friendbot.stellar.org"

const maxErrorBody = 4096

// Friendbot implements stellarpay.Faucet against a Friendbot endpoint.
type Friendbot struct {
	baseURL string
	client  *net.Client
	log     *logrus.Entry
}

// NewFriendbot creates a faucet for the Friendbot at baseURL.
func NewFriendbot(baseURL string, client *net.Client, log *logrus.Entry) *Friendbot {
	if baseURL == "" {
		baseURL = DefaultFriendbotURL
	}
	if client == nil {
		client = net.NewClient()
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Friendbot{
		baseURL: baseURL,
		client:  client,
		log:     log.WithField("component", "faucet"),
	}
}

// friendbotProblem is the subset of Friendbot's error document we surface.
type friendbotProblem struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// Fund asks Friendbot to create and fund publicKey. Any transport failure or non-2xx
// response is a FUNDING_FAILED error; Friendbot's own detail text is passed through.
func (f *Friendbot) Fund(ctx context.Context, publicKey string) error {
	endpoint := fmt.Sprintf("%s?addr=%s", f.baseURL, url.QueryEscape(publicKey))

	resp, err := f.client.Get(ctx, endpoint)
	if err != nil {
		return errors.New(errors.LayerAccount, errors.FUNDING_FAILED,
			"Failed to create and fund account", err).With("account", publicKey)
	}
	defer resp.Body.Close()

	if !resp.OK() {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		message := fmt.Sprintf("friendbot returned status %d", resp.StatusCode)
		var p friendbotProblem
		if json.Unmarshal(body, &p) == nil && p.Detail != "" {
			message = fmt.Sprintf("%s: %s", message, p.Detail)
		}
		return errors.New(errors.LayerAccount, errors.FUNDING_FAILED, message, nil).
			With("account", publicKey).
			With("status", resp.StatusCode)
	}

	f.log.WithField("account", publicKey).Info("account funded")
	return nil
}

var _ stellarpay.Faucet = (*Friendbot)(nil)
