package types

import (
	"errors"
	"fmt"
)

// ErrorCode classifies currency failures for programmatic handling.
type ErrorCode string

const (
	ErrCodeUnsupportedCurrency ErrorCode = "UNSUPPORTED_CURRENCY"
	ErrCodeMalformedKey        ErrorCode = "MALFORMED_KEY"
	ErrCodeProviderError       ErrorCode = "PROVIDER_ERROR"
	ErrCodeInsufficientAmount  ErrorCode = "INSUFFICIENT_AMOUNT"
	ErrCodeBundlingError       ErrorCode = "BUNDLING_ERROR"
	ErrCodeTxNotFound          ErrorCode = "TX_NOT_FOUND"
	ErrCodeInvalidArgument     ErrorCode = "INVALID_ARGUMENT"
	ErrCodeConfigError         ErrorCode = "CONFIG_ERROR"
)

// Sentinels for errors.Is. A *CurrencyError matches the sentinel with the same code.
var (
	ErrUnsupportedCurrency = &CurrencyError{Code: ErrCodeUnsupportedCurrency, Message: "unsupported currency"}
	ErrMalformedKey        = &CurrencyError{Code: ErrCodeMalformedKey, Message: "malformed key"}
	ErrProviderError       = &CurrencyError{Code: ErrCodeProviderError, Message: "provider error"}
	ErrInsufficientAmount  = &CurrencyError{Code: ErrCodeInsufficientAmount, Message: "insufficient amount"}
	ErrBundlingError       = &CurrencyError{Code: ErrCodeBundlingError, Message: "transaction submission failed"}
	ErrTxNotFound          = &CurrencyError{Code: ErrCodeTxNotFound, Message: "transaction not found"}
	ErrInvalidArgument     = &CurrencyError{Code: ErrCodeInvalidArgument, Message: "invalid argument"}
	ErrConfigError         = &CurrencyError{Code: ErrCodeConfigError, Message: "configuration error"}
)

// CurrencyError is the structured error returned by every fallible currency operation.
type CurrencyError struct {
	Code     ErrorCode    `json:"code"`
	Message  string       `json:"message"`
	Currency CurrencyKind `json:"currency,omitempty"`

	// Retryable is set on provider and bundling errors caused by transient
	// conditions (timeouts, unavailable endpoints, rate limits).
	Retryable bool `json:"retryable"`

	Err error `json:"-"`
}

func (e *CurrencyError) Error() string {
	msg := e.Message
	if e.Currency.IsValid() {
		msg = fmt.Sprintf("%s: %s", e.Currency, msg)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *CurrencyError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a CurrencyError carrying the same code.
func (e *CurrencyError) Is(target error) bool {
	t, ok := target.(*CurrencyError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithCurrency returns a copy of e tagged with the given currency.
func (e *CurrencyError) WithCurrency(kind CurrencyKind) *CurrencyError {
	cp := *e
	cp.Currency = kind
	return &cp
}

// NewCurrencyError creates a CurrencyError for the given currency.
func NewCurrencyError(code ErrorCode, kind CurrencyKind, message string, err error) *CurrencyError {
	return &CurrencyError{
		Code:     code,
		Message:  message,
		Currency: kind,
		Err:      err,
	}
}

// IsRetryable reports whether err (or anything it wraps) is a retryable CurrencyError.
func IsRetryable(err error) bool {
	var ce *CurrencyError
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	return false
}

// CodeOf extracts the error code from err, or "" when err is not a CurrencyError.
func CodeOf(err error) ErrorCode {
	var ce *CurrencyError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}
