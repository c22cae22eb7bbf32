package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")

	// ErrUnauthenticated indicates the request carries no usable session.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden indicates the principal may not perform the action.
	ErrForbidden = errors.New("forbidden")
	// ErrRateLimited indicates the caller exceeded its attempt budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrStoreUnavailable indicates a backing store (identity, audit, rate limit) failed.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrInvalidFileType indicates the sniffed content is not an allowed image type.
	ErrInvalidFileType = errors.New("invalid file type")
	// ErrFileTooLarge indicates the upload exceeds the configured size.
	ErrFileTooLarge = errors.New("file too large")
	// ErrExtensionMismatch indicates the declared extension disagrees with the content.
	ErrExtensionMismatch = errors.New("extension mismatch")
	// ErrUploadWriteFailed indicates the upload could not be persisted.
	ErrUploadWriteFailed = errors.New("upload write failed")
	// ErrUploadVerificationFailed indicates the persisted bytes did not re-sniff identically.
	ErrUploadVerificationFailed = errors.New("upload verification failed")
)

// DenyReason tags a Forbidden outcome.
type DenyReason string

// Deny reasons attached to ForbiddenError.
const (
	ReasonInsufficientRole   DenyReason = "insufficient_role"
	ReasonOwnershipViolation DenyReason = "ownership_violation"
	ReasonRestrictedAccount  DenyReason = "restricted_account"
)

// ForbiddenError carries the reason for an authorization denial. It matches ErrForbidden
// under errors.Is.
type ForbiddenError struct {
	Reason DenyReason
}

// Forbidden returns a ForbiddenError for reason.
func Forbidden(reason DenyReason) error {
	return &ForbiddenError{Reason: reason}
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("forbidden: %s", e.Reason)
}

func (e *ForbiddenError) Unwrap() error {
	return ErrForbidden
}

// DenyReasonOf extracts the reason from err, if any.
func DenyReasonOf(err error) (DenyReason, bool) {
	var fe *ForbiddenError
	if errors.As(err, &fe) {
		return fe.Reason, true
	}
	return "", false
}
