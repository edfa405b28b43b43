// Package errors defines the error taxonomy for the payment service.
//
// All service errors are represented as PaymentError, which provides:
//   - Code: Machine-readable error identifier
//   - Message: Human-readable error description, safe to show to callers
//   - Layer: Which component produced the error (account, payment, ledger, gateway, client)
//   - Field: The offending input field, for validation failures
//   - RemoteCode: The ledger's result codes, passed through undecoded
//   - Cause: Underlying error, if any
//
// Codes are a closed set. Transport status codes are assigned only at the gateway.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Code is a machine-readable error identifier.
type Code string

// Input errors, detected before any network call.
const (
	VALIDATION_FAILED Code = "VALIDATION_FAILED"
	INVALID_SECRET    Code = "INVALID_SECRET"
	INVALID_ASSET     Code = "INVALID_ASSET"
	MISSING_ISSUER    Code = "MISSING_ISSUER"
	MEMO_TOO_LONG     Code = "MEMO_TOO_LONG"
)

// Local failures.
const (
	KEYPAIR_GENERATION_FAILED Code = "KEYPAIR_GENERATION_FAILED"
	TRANSACTION_BUILD_FAILED  Code = "TRANSACTION_BUILD_FAILED"
	SIGNING_FAILED            Code = "SIGNING_FAILED"
	KEYSTORE_ERROR            Code = "KEYSTORE_ERROR"
)

// Remote failures. Messages from the remote side pass through verbatim.
const (
	FUNDING_FAILED      Code = "FUNDING_FAILED"
	ACCOUNT_LOAD_FAILED Code = "ACCOUNT_LOAD_FAILED"
	ACCOUNT_NOT_FOUND   Code = "ACCOUNT_NOT_FOUND"
	SUBMISSION_FAILED   Code = "SUBMISSION_FAILED"
	NETWORK_ERROR       Code = "NETWORK_ERROR"
	STREAM_ERROR        Code = "STREAM_ERROR"
)

// Layers.
const (
	LayerAccount = "account"
	LayerPayment = "payment"
	LayerLedger  = "ledger"
	LayerGateway = "gateway"
	LayerClient  = "client"
)

// PaymentError is the base error type for all service errors.
type PaymentError struct {
	Code       Code
	Message    string
	Layer      string
	Field      string
	RemoteCode string
	Cause      error
	Context    map[string]any
}

// Error returns a formatted error string.
func (e *PaymentError) Error() string {
	msg := fmt.Sprintf("[%s] %s: %s", e.Layer, e.Code, e.Message)
	if e.RemoteCode != "" {
		msg += fmt.Sprintf(" [%s]", e.RemoteCode)
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(" (caused by: %v)", e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause error, enabling error chain inspection.
func (e *PaymentError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a PaymentError with the same code.
func (e *PaymentError) Is(target error) bool {
	other, ok := target.(*PaymentError)
	if !ok || other == nil {
		return false
	}
	return e.Code == other.Code
}

// With attaches a context value and returns the error for chaining.
func (e *PaymentError) With(key string, value any) *PaymentError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// New creates an error for the given layer.
func New(layer string, code Code, message string, cause error) *PaymentError {
	return &PaymentError{
		Code:    code,
		Message: message,
		Layer:   layer,
		Cause:   cause,
		Context: make(map[string]any),
	}
}

// NewValidationError reports a missing or malformed input field.
func NewValidationError(layer, field, message string) *PaymentError {
	e := New(layer, VALIDATION_FAILED, message, nil)
	e.Field = field
	return e
}

// NewSubmissionError reports a transaction the ledger refused. remoteCode carries the
// ledger's result codes untouched.
func NewSubmissionError(message, remoteCode string, cause error) *PaymentError {
	e := New(LayerLedger, SUBMISSION_FAILED, message, cause)
	e.RemoteCode = remoteCode
	return e
}

// Sentinels for errors.Is comparisons.
var (
	ErrValidation     = &PaymentError{Code: VALIDATION_FAILED}
	ErrInvalidSecret  = &PaymentError{Code: INVALID_SECRET}
	ErrInvalidAsset   = &PaymentError{Code: INVALID_ASSET}
	ErrMissingIssuer  = &PaymentError{Code: MISSING_ISSUER}
	ErrMemoTooLong    = &PaymentError{Code: MEMO_TOO_LONG}
	ErrFunding        = &PaymentError{Code: FUNDING_FAILED}
	ErrAccountLoad    = &PaymentError{Code: ACCOUNT_LOAD_FAILED}
	ErrAccountMissing = &PaymentError{Code: ACCOUNT_NOT_FOUND}
	ErrSubmission     = &PaymentError{Code: SUBMISSION_FAILED}
)

// As finds the first PaymentError in err's chain.
func As(err error, target **PaymentError) bool {
	return stderrors.As(err, target)
}

// CodeOf returns the code of the first PaymentError in err's chain, or "".
func CodeOf(err error) Code {
	var pe *PaymentError
	if As(err, &pe) {
		return pe.Code
	}
	return ""
}
