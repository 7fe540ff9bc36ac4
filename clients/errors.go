package clients

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vitwit/currency/types"
)

// httpStatusError is returned by HTTP-backed providers for non-2xx responses.
type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// providerError wraps a failed provider call, marking it retryable when the
// failure looks transient.
func providerError(kind types.CurrencyKind, op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *types.CurrencyError
	if errors.As(err, &ce) {
		return err
	}
	return &types.CurrencyError{
		Code:      types.ErrCodeProviderError,
		Message:   op + " failed",
		Currency:  kind,
		Retryable: isTransient(err),
		Err:       err,
	}
}

// bundlingError wraps a rejected or failed broadcast.
func bundlingError(kind types.CurrencyKind, err error) error {
	var ce *types.CurrencyError
	if errors.As(err, &ce) && ce.Code != types.ErrCodeProviderError {
		return err
	}
	return &types.CurrencyError{
		Code:      types.ErrCodeBundlingError,
		Message:   "broadcast failed",
		Currency:  kind,
		Retryable: isTransient(err),
		Err:       err,
	}
}

// buildError wraps a local failure while encoding or signing a transaction.
// It is never retryable.
func buildError(kind types.CurrencyKind, op string, err error) error {
	return &types.CurrencyError{
		Code:     types.ErrCodeProviderError,
		Message:  op + " failed",
		Currency: kind,
		Err:      err,
	}
}

// connectError reports an endpoint that could not be dialed at construction time.
func connectError(kind types.CurrencyKind, endpoint string, err error) error {
	return types.NewCurrencyError(types.ErrCodeConfigError, kind, fmt.Sprintf("cannot connect to %q", endpoint), err)
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= http.StatusInternalServerError ||
			statusErr.StatusCode == http.StatusTooManyRequests
	}

	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
			return true
		}
	}

	return false
}
