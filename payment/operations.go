package payment

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/stellar/go-stellar-sdk/txnbuild"

	stellarpay "github.com/marwen-abid/stellar-payments-go"
	"github.com/marwen-abid/stellar-payments-go/errors"
)

// PaymentOp moves amount of asset from the transaction source to destination.
func PaymentOp(destination string, asset stellarpay.Asset, amount string) *txnbuild.Payment {
	return &txnbuild.Payment{
		Destination: destination,
		Amount:      amount,
		Asset:       asset.Txnbuild(),
	}
}

// ChangeTrustOp creates, updates or (with limit "0") removes the source's trustline for
// asset. An empty limit trusts the maximum amount.
func ChangeTrustOp(asset stellarpay.Asset, limit string) (*txnbuild.ChangeTrust, error) {
	if asset.IsNative() {
		return nil, errors.New(errors.LayerPayment, errors.INVALID_ASSET,
			"the native asset needs no trustline", nil)
	}
	line, err := txnbuild.CreditAsset{Code: asset.Code, Issuer: asset.Issuer}.ToChangeTrustAsset()
	if err != nil {
		return nil, errors.New(errors.LayerPayment, errors.INVALID_ASSET,
			"failed to build trustline asset", err).With("asset", asset.String())
	}
	return &txnbuild.ChangeTrust{Line: line, Limit: limit}, nil
}

// PaymentRequest is a single-payment transaction. Asset is a symbol: "XLM" (any case)
// or empty selects the native asset and Issuer is ignored.
type PaymentRequest struct {
	Signer      stellarpay.Signer
	Destination string
	Amount      string
	Asset       string
	Issuer      string
	Memo        string
}

// Pay sends a payment. The asset is resolved before the network is touched, so a
// non-native asset without an issuer fails with MISSING_ISSUER and no ledger calls.
func (w *Workflow) Pay(ctx context.Context, req PaymentRequest) (*stellarpay.TransactionResult, error) {
	asset, err := stellarpay.ResolveAsset(strings.TrimSpace(req.Asset), req.Issuer)
	if err != nil {
		return nil, err
	}

	w.log.WithFields(logrus.Fields{
		"op":          "payment",
		"destination": req.Destination,
		"asset":       asset.String(),
		"amount":      req.Amount,
	}).Debug("building payment")

	return w.BuildAndSubmit(ctx, Request{
		Signer:     req.Signer,
		Operations: []txnbuild.Operation{PaymentOp(req.Destination, asset, req.Amount)},
		Memo:       req.Memo,
	})
}

// EstablishTrust lets the signer's account hold asset, up to limit.
func (w *Workflow) EstablishTrust(ctx context.Context, signer stellarpay.Signer, asset stellarpay.Asset, limit string) (*stellarpay.TransactionResult, error) {
	op, err := ChangeTrustOp(asset, limit)
	if err != nil {
		return nil, err
	}
	return w.BuildAndSubmit(ctx, Request{
		Signer:     signer,
		Operations: []txnbuild.Operation{op},
	})
}

// IssueAsset pays amount of code, issued by the signer, to destination. The destination
// must already trust the asset.
func (w *Workflow) IssueAsset(ctx context.Context, issuer stellarpay.Signer, destination, code, amount string) (*stellarpay.TransactionResult, error) {
	if issuer == nil {
		return nil, errors.NewValidationError(errors.LayerPayment, "issuer", "an issuer signer is required")
	}
	asset, err := stellarpay.NewAsset(code, issuer.PublicKey())
	if err != nil {
		return nil, err
	}
	return w.BuildAndSubmit(ctx, Request{
		Signer:     issuer,
		Operations: []txnbuild.Operation{PaymentOp(destination, asset, amount)},
	})
}
