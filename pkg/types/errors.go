package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrQuoteUnavailable means the depth or best-price lookup failed.
	// Callers fall back to the last known single-level price instead of
	// surfacing it.
	ErrQuoteUnavailable = errors.New("quote unavailable")

	// ErrCredentialsUnavailable means the wallet session or its API
	// credentials disappeared while an attempt was in flight.
	ErrCredentialsUnavailable = errors.New("credentials unavailable")

	// ErrWalletRejected is matched by any WalletError carrying the
	// user-rejection code.
	ErrWalletRejected = errors.New("wallet request rejected by user")
)

// UserRejectedCode is the EIP-1193 code wallets return when the user
// declines a signature request.
const UserRejectedCode = 4001

// Known structured error codes returned by the trading backend.
const (
	ErrCodeInvalidSignature = "INVALID_SIGNATURE"
	ErrCodeInvalidOrder     = "INVALID_ORDER"
	ErrCodeNotReady         = "SERVICE_NOT_READY"
)

// invalidSignatureMarker is matched against free-text backend details when
// no structured code is present.
const invalidSignatureMarker = "invalid signature"

// ValidationKind identifies a confirmation-gating validation failure.
type ValidationKind string

const (
	InvalidPrice          ValidationKind = "INVALID_PRICE"
	InsufficientLiquidity ValidationKind = "INSUFFICIENT_LIQUIDITY"
	BelowMinimumOrder     ValidationKind = "BELOW_MINIMUM_ORDER"
)

// ValidationError blocks confirmation. It never reaches the submission engine.
type ValidationError struct {
	Kind   ValidationKind
	Amount decimal.Decimal // shortfall, offending price or order value
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case InvalidPrice:
		return fmt.Sprintf("invalid price %s: must be greater than 0 and at most 1", e.Amount.String())
	case InsufficientLiquidity:
		return fmt.Sprintf("insufficient liquidity: only $%s available", e.Amount.StringFixed(2))
	case BelowMinimumOrder:
		return fmt.Sprintf("order value $%s is below the $1.00 minimum", e.Amount.StringFixed(2))
	default:
		return fmt.Sprintf("validation failed: %s", e.Kind)
	}
}

// IsValidation reports whether err is a ValidationError of the given kind.
func IsValidation(err error, kind ValidationKind) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr) && vErr.Kind == kind
}

// PrepareRejectedError is returned when the backend refuses to build an
// unsigned order, or hands back a payload that cannot be signed safely.
type PrepareRejectedError struct {
	Reason string
}

func (e *PrepareRejectedError) Error() string {
	return fmt.Sprintf("prepare order rejected: %s", e.Reason)
}

// WalletError is a failure reported by the connected wallet.
type WalletError struct {
	Code    int
	Message string
}

func (e *WalletError) Error() string {
	return fmt.Sprintf("wallet error %d: %s", e.Code, e.Message)
}

// Is makes errors.Is(err, ErrWalletRejected) true for user rejections.
func (e *WalletError) Is(target error) bool {
	return target == ErrWalletRejected && e.Code == UserRejectedCode
}

// SubmissionError is a rejection from the submit endpoint.
type SubmissionError struct {
	StatusCode int
	Code       string
	Detail     string
	Retryable  bool
}

func (e *SubmissionError) Error() string {
	kind := "terminal"
	if e.Retryable {
		kind = "retryable signature"
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s submission error (status %d): %s", kind, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s submission error: %s", kind, e.Detail)
}

// NewSubmissionError classifies a backend rejection. A structured code wins;
// the substring match on the detail text is kept for backends that do not
// send codes yet.
func NewSubmissionError(statusCode int, code, detail string) *SubmissionError {
	retryable := code == ErrCodeInvalidSignature
	if code == "" {
		retryable = strings.Contains(strings.ToLower(detail), invalidSignatureMarker)
	}

	return &SubmissionError{
		StatusCode: statusCode,
		Code:       code,
		Detail:     detail,
		Retryable:  retryable,
	}
}

// IsRetryableSignatureError reports whether err is a submission rejection
// that warrants a fresh prepare/sign cycle.
func IsRetryableSignatureError(err error) bool {
	var subErr *SubmissionError
	return errors.As(err, &subErr) && subErr.Retryable
}

// APIError is a non-2xx response from the backend outside of submission.
type APIError struct {
	StatusCode int
	Code       string
	Detail     string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API error (status %d, %s): %s", e.StatusCode, e.Code, e.Detail)
	}
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Detail)
}
