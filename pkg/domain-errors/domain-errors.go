package domainerrors

import "errors"

// Code represents a domain error category independent of transport layer.
// These codes describe what went wrong in business logic terms, not HTTP terms.
type Code string

const (
	CodeNotFound           Code = "not_found"
	CodeBadRequest         Code = "bad_request"
	CodeInvalidInput       Code = "invalid_input"
	CodeValidation         Code = "validation_failed"
	CodeInternal           Code = "internal_error"
	CodeConflict           Code = "conflict"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeTimeout            Code = "timeout"
	CodeInvariantViolation Code = "invariant_violation"

	// Purchase authorization outcomes. Every rejection the orchestrator can
	// produce maps to exactly one of these.
	CodeConsentRequired       Code = "consent_required"
	CodeSpendingLimitExceeded Code = "spending_limit_exceeded"
	CodeContentRestricted     Code = "content_restricted"
	CodeApprovalDenied        Code = "approval_denied"
	CodePaymentFailed         Code = "payment_failed"

	// Approval token lifecycle.
	CodeTokenNotFound        Code = "token_not_found"
	CodeTokenExpired         Code = "token_expired"
	CodeTokenAlreadyResolved Code = "token_already_resolved"
	CodeNotApproved          Code = "not_approved"
	CodeAlreadyRedeemed      Code = "already_redeemed"

	// Ownership and ledger.
	CodeAlreadyOwned        Code = "already_owned"
	CodeDuplicatePurchase   Code = "duplicate_purchase"
	CodeRefundWindowExpired Code = "refund_window_expired"
)

// Sentinels for errors.Is comparisons. Matching is by code, so any *Error
// carrying the same code (whatever its message) satisfies errors.Is.
var (
	ErrNotFound              = New(CodeNotFound, "not found")
	ErrConflict              = New(CodeConflict, "conflict")
	ErrForbidden             = New(CodeForbidden, "forbidden")
	ErrConsentRequired       = New(CodeConsentRequired, "consent required")
	ErrSpendingLimitExceeded = New(CodeSpendingLimitExceeded, "spending limit exceeded")
	ErrContentRestricted     = New(CodeContentRestricted, "content restricted")
	ErrApprovalDenied        = New(CodeApprovalDenied, "approval denied")
	ErrPaymentFailed         = New(CodePaymentFailed, "payment failed")
	ErrTokenNotFound         = New(CodeTokenNotFound, "approval token not found")
	ErrTokenExpired          = New(CodeTokenExpired, "approval token expired")
	ErrTokenAlreadyResolved  = New(CodeTokenAlreadyResolved, "approval token already resolved")
	ErrNotApproved           = New(CodeNotApproved, "approval not granted")
	ErrAlreadyRedeemed       = New(CodeAlreadyRedeemed, "approval already redeemed")
	ErrAlreadyOwned          = New(CodeAlreadyOwned, "pack already owned")
	ErrDuplicatePurchase     = New(CodeDuplicatePurchase, "purchase already recorded")
	ErrRefundWindowExpired   = New(CodeRefundWindowExpired, "refund window expired")
)

// Error wraps domain or infrastructure failures with a stable code.
// It is transport-agnostic and can be used across service, store, and other layers.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

// Unwrap implements error unwrapping for error chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is enables errors.Is() to match errors by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new domain error with the given code and message.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap creates a new domain error wrapping an existing error.
// If the wrapped error is already a domain error, the original code is preserved.
func Wrap(err error, code Code, msg string) error {
	var existing *Error
	if errors.As(err, &existing) {
		return &Error{Code: existing.Code, Message: msg, Err: err}
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode checks if an error is a domain error with the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf returns the outermost domain code of err, or CodeInternal when err
// carries none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
