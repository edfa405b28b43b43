package stellarpay

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/stellar/go-stellar-sdk/txnbuild"
	"github.com/stellar/go/strkey"

	"github.com/marwen-abid/stellar-payments-go/errors"
)

// Asset types as reported by Horizon.
const (
	AssetTypeNative           = "native"
	AssetTypeCreditAlphanum4  = "credit_alphanum4"
	AssetTypeCreditAlphanum12 = "credit_alphanum12"
	maxAlphanum4CodeLength    = 4
	maxAssetCodeLength        = 12
)

var assetCodePattern = regexp.MustCompile(`^[a-zA-Z0-9]{1,12}$`)

// Asset identifies a currency on the ledger. The zero Issuer denotes the native asset.
type Asset struct {
	Code   string
	Issuer string
}

// NativeAsset returns the network's base currency.
func NativeAsset() Asset {
	return Asset{Code: NativeSymbol}
}

// NewAsset validates and returns an issued asset. It does not touch the network:
// an asset exists on the ledger as soon as its issuer pays it out.
func NewAsset(code, issuer string) (Asset, error) {
	if !assetCodePattern.MatchString(code) {
		return Asset{}, errors.New(errors.LayerPayment, errors.INVALID_ASSET,
			fmt.Sprintf("asset code %q must be 1-%d alphanumeric characters", code, maxAssetCodeLength), nil).
			With("asset_code", code)
	}
	if !strkey.IsValidEd25519PublicKey(issuer) {
		return Asset{}, errors.New(errors.LayerPayment, errors.INVALID_ASSET,
			fmt.Sprintf("issuer %q is not a valid public key", issuer), nil).
			With("asset_issuer", issuer)
	}
	return Asset{Code: code, Issuer: issuer}, nil
}

// ResolveAsset maps a requested symbol to an asset. The native symbol (any case, or
// empty) always resolves to the native asset and the issuer is ignored; any other
// symbol requires an issuer.
func ResolveAsset(symbol, issuer string) (Asset, error) {
	if symbol == "" || strings.EqualFold(symbol, NativeSymbol) {
		return NativeAsset(), nil
	}
	if strings.TrimSpace(issuer) == "" {
		return Asset{}, errors.New(errors.LayerPayment, errors.MISSING_ISSUER,
			"Issuer is required for non-XLM assets", nil).With("asset_code", symbol)
	}
	return NewAsset(symbol, issuer)
}

// IsNative reports whether a is the native asset.
func (a Asset) IsNative() bool {
	return a.Issuer == ""
}

// Equal reports whether a and b name the same asset.
func (a Asset) Equal(b Asset) bool {
	if a.IsNative() || b.IsNative() {
		return a.IsNative() && b.IsNative()
	}
	return a.Code == b.Code && a.Issuer == b.Issuer
}

// Type returns the Horizon asset type name.
func (a Asset) Type() string {
	switch {
	case a.IsNative():
		return AssetTypeNative
	case len(a.Code) <= maxAlphanum4CodeLength:
		return AssetTypeCreditAlphanum4
	default:
		return AssetTypeCreditAlphanum12
	}
}

// String renders native assets as "native" and issued ones as "CODE:ISSUER".
func (a Asset) String() string {
	if a.IsNative() {
		return AssetTypeNative
	}
	return fmt.Sprintf("%s:%s", a.Code, a.Issuer)
}

// Txnbuild converts a to its SDK representation.
func (a Asset) Txnbuild() txnbuild.Asset {
	if a.IsNative() {
		return txnbuild.NativeAsset{}
	}
	return txnbuild.CreditAsset{Code: a.Code, Issuer: a.Issuer}
}

// AssetFromTxnbuild converts an SDK asset back into an Asset.
func AssetFromTxnbuild(a txnbuild.BasicAsset) Asset {
	if a.IsNative() {
		return NativeAsset()
	}
	return Asset{Code: a.GetCode(), Issuer: a.GetIssuer()}
}
