package passwordless

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeInvalidEmail       = "INVALID_EMAIL"
	textCodeInvalidCode        = "INVALID_CODE"
	textCodeNetworkError       = "NETWORK_ERROR"
	textCodeNotInitialized     = "NOT_INITIALIZED"
	textCodeUnauthorized       = "UNAUTHORIZED"
	textCodeCodeRequestPending = "CODE_REQUEST_PENDING"
	textCodeRouteRuleExists    = "ROUTE_RULE_EXISTS"
)

// ErrInvalidEmail is returned for syntactically malformed email addresses
// before any network call is attempted.
var ErrInvalidEmail = goerrors.New("invalid email address", goerrors.CategoryValidation).
	WithTextCode(textCodeInvalidEmail).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidCode is returned when the one-time code is wrong or expired.
var ErrInvalidCode = goerrors.New("invalid or expired one-time code", goerrors.CategoryAuth).
	WithTextCode(textCodeInvalidCode).
	WithCode(goerrors.CodeUnauthorized)

// ErrNetwork covers transport failures, timeouts and malformed or partial
// backend responses. Timeouts must resolve here, never leave the login
// flow loading indefinitely.
var ErrNetwork = goerrors.New("identity backend unreachable", goerrors.CategoryOperation).
	WithTextCode(textCodeNetworkError)

// ErrNotInitialized is returned when the identity client is missing or
// not configured. It replaces silent no-op stand-ins: callers always see
// an explicit failure.
var ErrNotInitialized = goerrors.New("identity client not initialized", goerrors.CategoryInternal).
	WithTextCode(textCodeNotInitialized)

// ErrUnauthorized is returned when an operation requiring a session is
// attempted without one.
var ErrUnauthorized = goerrors.New("operation requires an authenticated session", goerrors.CategoryAuth).
	WithTextCode(textCodeUnauthorized).
	WithCode(goerrors.CodeUnauthorized)

// ErrCodeRequestPending is returned when a code request is issued while a
// previous one is still in flight. The second call is rejected, never
// silently dropped.
var ErrCodeRequestPending = goerrors.New("a code request is already pending", goerrors.CategoryConflict).
	WithTextCode(textCodeCodeRequestPending).
	WithCode(goerrors.CodeConflict)

// ErrRouteRuleExists is returned when inserting a routing rule would
// violate the (user, transaction type) uniqueness invariant.
var ErrRouteRuleExists = goerrors.New("route rule already exists for user and transaction type", goerrors.CategoryConflict).
	WithTextCode(textCodeRouteRuleExists).
	WithCode(goerrors.CodeConflict)

// IsInvalidEmailError reports whether err is (or wraps) ErrInvalidEmail.
func IsInvalidEmailError(err error) bool {
	return goerrors.Is(err, ErrInvalidEmail)
}

// IsInvalidCodeError reports whether err is (or wraps) ErrInvalidCode.
func IsInvalidCodeError(err error) bool {
	return goerrors.Is(err, ErrInvalidCode)
}

// IsNetworkError reports whether err is (or wraps) ErrNetwork.
func IsNetworkError(err error) bool {
	return goerrors.Is(err, ErrNetwork)
}

// IsNotInitializedError reports whether err is (or wraps) ErrNotInitialized.
func IsNotInitializedError(err error) bool {
	return goerrors.Is(err, ErrNotInitialized)
}
