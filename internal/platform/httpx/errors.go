// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/odyssey-erp/landhub/internal/shared"
)

// Sentinel errors for domain layer.
var (
	ErrValidation = errors.New("validation failed")
	ErrDuplicate  = errors.New("duplicate entry")
)

// Stable user-facing messages. Forbidden and not-found share one message so callers cannot
// probe for the existence of resources they may not touch.
const (
	MsgUnauthenticated   = "Authentication required."
	MsgDenied            = "You do not have access to this resource."
	MsgRateLimited       = "Too many attempts. Please try again later."
	MsgInvalidFileType   = "Only JPEG, PNG, GIF and WebP images are accepted."
	MsgFileTooLarge      = "The file exceeds the maximum allowed size."
	MsgExtensionMismatch = "The file extension does not match its content."
	MsgUploadFailed      = "The file could not be stored."
	MsgValidation        = "The request is invalid."
	MsgDuplicate         = "The resource already exists."
	MsgUnavailable       = "The service is temporarily unavailable."
	MsgInternal          = "An internal error occurred."
	MsgInvalidLogin      = "Invalid email or password."
)

// StatusFor maps a domain error to its HTTP status and stable message.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, shared.ErrUnauthenticated):
		return http.StatusUnauthorized, MsgUnauthenticated
	case errors.Is(err, shared.ErrInvalidCredentials):
		return http.StatusUnauthorized, MsgInvalidLogin
	case errors.Is(err, shared.ErrForbidden), errors.Is(err, shared.ErrNotFound):
		return http.StatusForbidden, MsgDenied
	case errors.Is(err, shared.ErrRateLimited):
		return http.StatusTooManyRequests, MsgRateLimited
	case errors.Is(err, shared.ErrInvalidFileType):
		return http.StatusBadRequest, MsgInvalidFileType
	case errors.Is(err, shared.ErrFileTooLarge):
		return http.StatusBadRequest, MsgFileTooLarge
	case errors.Is(err, shared.ErrExtensionMismatch):
		return http.StatusBadRequest, MsgExtensionMismatch
	case errors.Is(err, shared.ErrUploadWriteFailed), errors.Is(err, shared.ErrUploadVerificationFailed):
		return http.StatusInternalServerError, MsgUploadFailed
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest, MsgValidation
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict, MsgDuplicate
	case errors.Is(err, shared.ErrStoreUnavailable):
		return http.StatusInternalServerError, MsgUnavailable
	default:
		return http.StatusInternalServerError, MsgInternal
	}
}

// RespondError maps domain errors to an envelope response. The error text itself is never
// written to the client.
func RespondError(w http.ResponseWriter, err error) {
	status, message := StatusFor(err)
	Fail(w, status, message)
}
