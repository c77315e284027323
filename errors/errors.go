package errors

import (
	"fmt"
	"net/http"
	"time"
)

// AppError là custom error type cho application
type AppError struct {
	Raw       error
	HTTPCode  int
	Code      ErrorCode
	Message   string
	Details   map[string]string
	Timestamp time.Time
}

// Error implements error interface
func (e AppError) Error() string {
	if e.Raw != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code.String(), e.Message, e.Raw)
	}
	return fmt.Sprintf("[%s] %s", e.Code.String(), e.Message)
}

// Unwrap exposes the wrapped error to errors.Is/As
func (e AppError) Unwrap() error {
	return e.Raw
}

// WithDetail adds a detail to the error
func (e AppError) WithDetail(key, value string) AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// General Errors
func ErrInternal(err error) AppError {
	return AppError{
		Raw:      err,
		HTTPCode: http.StatusInternalServerError,
		Code:     ErrorCode_INTERNAL,
		Message:  "Internal server error",
	}
}

func ErrInvalidArgument(message string) AppError {
	return AppError{
		HTTPCode: http.StatusBadRequest,
		Code:     ErrorCode_INVALID_ARGUMENT,
		Message:  message,
	}
}

func ErrInvalidPayload() AppError {
	return AppError{
		HTTPCode: http.StatusBadRequest,
		Code:     ErrorCode_INVALID_PAYLOAD,
		Message:  "Invalid payload",
	}
}

// Authentication Errors
func ErrUnauthenticated() AppError {
	return AppError{
		HTTPCode: http.StatusUnauthorized,
		Code:     ErrorCode_UNAUTHENTICATED,
		Message:  "Authentication required",
	}
}

func ErrInvalidToken() AppError {
	return AppError{
		HTTPCode: http.StatusUnauthorized,
		Code:     ErrorCode_AUTH_INVALID_TOKEN,
		Message:  "Invalid authentication token",
	}
}

func ErrTokenExpired() AppError {
	return AppError{
		HTTPCode: http.StatusUnauthorized,
		Code:     ErrorCode_AUTH_TOKEN_EXPIRED,
		Message:  "Authentication token has expired",
	}
}

// ErrInvalidWebhookToken is returned when the shared-secret header on a
// provider callback does not match the configured value.
func ErrInvalidWebhookToken() AppError {
	return AppError{
		HTTPCode: http.StatusForbidden,
		Code:     ErrorCode_WEBHOOK_TOKEN_INVALID,
		Message:  "Invalid webhook token",
	}
}

// Pipeline Errors
func ErrAudioItemNotFound(id string) AppError {
	return AppError{
		HTTPCode: http.StatusNotFound,
		Code:     ErrorCode_AUDIO_ITEM_NOT_FOUND,
		Message:  "Audio item not found",
	}.WithDetail("id", id)
}

func ErrDispatchFailed(err error) AppError {
	return AppError{
		Raw:      err,
		HTTPCode: http.StatusInternalServerError,
		Code:     ErrorCode_DISPATCH_FAILED,
		Message:  "Transcription dispatch failed",
	}
}

// ErrAmbiguousDispatch is returned when the correlation-id update matched
// zero or more than one row, which would make the later callback unroutable.
func ErrAmbiguousDispatch(filename string, matched int64) AppError {
	return AppError{
		HTTPCode: http.StatusInternalServerError,
		Code:     ErrorCode_AMBIGUOUS_DISPATCH,
		Message:  "Dispatch matched an unexpected number of rows",
	}.WithDetail("filename", filename).
		WithDetail("matched", fmt.Sprintf("%d", matched))
}

func ErrOrphanCallback(requestID string) AppError {
	return AppError{
		HTTPCode: http.StatusNotFound,
		Code:     ErrorCode_ORPHAN_CALLBACK,
		Message:  "No audio item matches callback request id",
	}.WithDetail("request_id", requestID)
}

// ErrNotTranscribed is returned when a summary is requested for an item
// whose transcription has not been committed yet.
func ErrNotTranscribed(id string) AppError {
	return AppError{
		HTTPCode: http.StatusConflict,
		Code:     ErrorCode_NOT_TRANSCRIBED,
		Message:  "Audio item has no committed transcription",
	}.WithDetail("id", id)
}

func ErrSummaryFailed(err error) AppError {
	return AppError{
		Raw:      err,
		HTTPCode: http.StatusInternalServerError,
		Code:     ErrorCode_SUMMARY_FAILED,
		Message:  "Failed to generate summary",
	}
}

// Integration Errors
func ErrStorageFailed(operation string, err error) AppError {
	return AppError{
		Raw:      err,
		HTTPCode: http.StatusInternalServerError,
		Code:     ErrorCode_STORAGE_FAILED,
		Message:  fmt.Sprintf("Storage operation failed: %s", operation),
	}
}

func ErrProviderFailed(service string, err error) AppError {
	return AppError{
		Raw:      err,
		HTTPCode: http.StatusInternalServerError,
		Code:     ErrorCode_PROVIDER_FAILED,
		Message:  fmt.Sprintf("External provider call failed: %s", service),
	}
}

func ErrEventPublishFailed(err error) AppError {
	return AppError{
		Raw:      err,
		HTTPCode: http.StatusInternalServerError,
		Code:     ErrorCode_EVENT_PUBLISH_FAILED,
		Message:  "Failed to publish pipeline event",
	}
}

// Database Errors
func ErrDBQueryFailed(query string, err error) AppError {
	return AppError{
		Raw:      err,
		HTTPCode: http.StatusInternalServerError,
		Code:     ErrorCode_DB_QUERY_FAILED,
		Message:  "Database query failed",
	}.WithDetail("query", query)
}
