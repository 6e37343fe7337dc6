package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a stable machine-readable error kind. Every error that crosses a
// service boundary carries one so transports can map it without string
// matching and callers can branch on it.
type Code string

const (
	// Generic codes.
	CodeBadRequest   Code = "bad_request"
	CodeInvalidInput Code = "invalid_input"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeUnauthorized Code = "unauthorized"
	CodeInternal     Code = "internal"

	// Registry codes.
	CodeUnverified        Code = "unverified"
	CodeAlreadyRegistered Code = "already_registered"
	CodeAlreadyVerified   Code = "already_verified"
	CodeUnknownRecipient  Code = "unknown_recipient"

	// Submission validation codes.
	CodeSelfFlag        Code = "self_flag"
	CodeNotMatched      Code = "not_matched"
	CodeInvalidCategory Code = "invalid_category"
	CodeEmptyReview     Code = "empty_review"
	CodeReviewTooLong   Code = "review_too_long"
	CodeEmptyPayload    Code = "empty_payload"
	CodePayloadTooLong  Code = "payload_too_long"
	CodeInvalidSeverity Code = "invalid_severity"

	// Approval and read codes.
	CodeFlagNotFound    Code = "flag_not_found"
	CodeAlreadyApproved Code = "already_approved"
	CodeNotRecipient    Code = "not_recipient"
	CodeAccessDenied    Code = "access_denied"

	// Catalog codes.
	CodeDuplicateCategory Code = "duplicate_category"
)

// Error is the domain error type. Reason is human-readable; Code is the stable
// contract. Wrapped causes are kept for logs, never for callers to parse.
type Error struct {
	Code   Code
	Reason string
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Reason, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a domain error with a code and a reason.
func New(code Code, reason string) error {
	return &Error{Code: code, Reason: reason}
}

// Newf is New with formatting.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and reason to an underlying cause.
func Wrap(err error, code Code, reason string) error {
	return &Error{Code: code, Reason: reason, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is an alias for HasCode; reads better at call sites.
func Is(err error, code Code) bool { return HasCode(err, code) }

// CodeOf extracts the code from an error, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ReasonOf extracts the human-readable reason, defaulting to a generic one so
// internals never leak through transports.
func ReasonOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Reason
	}
	return "internal error"
}

// ToHTTPStatus maps a code to an HTTP status for the JSON error envelope.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeInvalidInput, CodeEmptyReview, CodeReviewTooLong,
		CodeEmptyPayload, CodePayloadTooLong, CodeInvalidSeverity,
		CodeInvalidCategory, CodeSelfFlag:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeUnverified, CodeNotMatched, CodeNotRecipient, CodeAccessDenied:
		return http.StatusForbidden
	case CodeNotFound, CodeFlagNotFound, CodeUnknownRecipient:
		return http.StatusNotFound
	case CodeConflict, CodeAlreadyRegistered, CodeAlreadyVerified,
		CodeAlreadyApproved, CodeDuplicateCategory:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
