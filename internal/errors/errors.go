package errors

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
)

// Sentinels shared across the service. Mark an error with one of them and
// test with errors.Is or the Is* helpers.
var (
	ErrNotFound         = newInternal(ErrCodeNotFound, "resource not found")
	ErrRejected         = newInternal(ErrCodeRejected, "rejected by business rule")
	ErrTransient        = newInternal(ErrCodeTransient, "temporarily unavailable")
	ErrValidation       = newInternal(ErrCodeValidation, "validation error")
	ErrAlreadyExists    = newInternal(ErrCodeAlreadyExists, "resource already exists")
	ErrPermissionDenied = newInternal(ErrCodePermissionDenied, "permission denied")
	ErrHTTPClient       = newInternal(ErrCodeHTTPClient, "http client error")
	ErrDatabase         = newInternal(ErrCodeDatabase, "database error")
	ErrSystem           = newInternal(ErrCodeSystemError, "system error")

	statusCodeMap = []struct {
		err    error
		status int
	}{
		{ErrNotFound, http.StatusNotFound},
		{ErrRejected, http.StatusUnprocessableEntity},
		{ErrTransient, http.StatusServiceUnavailable},
		{ErrValidation, http.StatusBadRequest},
		{ErrAlreadyExists, http.StatusConflict},
		{ErrPermissionDenied, http.StatusForbidden},
		{ErrHTTPClient, http.StatusBadGateway},
		{ErrDatabase, http.StatusInternalServerError},
		{ErrSystem, http.StatusInternalServerError},
	}
)

const (
	ErrCodeNotFound         = "not_found"
	ErrCodeRejected         = "rejected"
	ErrCodeTransient        = "transient"
	ErrCodeValidation       = "validation_error"
	ErrCodeAlreadyExists    = "already_exists"
	ErrCodePermissionDenied = "permission_denied"
	ErrCodeHTTPClient       = "http_client_error"
	ErrCodeDatabase         = "database_error"
	ErrCodeSystemError      = "system_error"
)

// InternalError is a coded sentinel.
type InternalError struct {
	Code    string
	Message string
	Err     error
}

func (e *InternalError) Error() string {
	if e.Err == nil {
		return e.DisplayError()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Err.Error())
}

func (e *InternalError) DisplayError() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// Is matches sentinels by code so that wrapped copies still compare equal.
func (e *InternalError) Is(target error) bool {
	if target == nil {
		return false
	}
	t, ok := target.(*InternalError)
	if !ok {
		return errors.Is(e.Err, target)
	}
	return e.Code == t.Code
}

func newInternal(code, message string) *InternalError {
	return &InternalError{Code: code, Message: message}
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

func Is(err, reference error) bool {
	return errors.Is(err, reference)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsRejected(err error) bool {
	return errors.Is(err, ErrRejected)
}

// IsTransient reports whether the failure is safe to retry.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// Reason returns the user facing hints attached to err, or an empty string.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	return strings.TrimSpace(errors.FlattenHints(err))
}

func HTTPStatusFromErr(err error) int {
	for _, m := range statusCodeMap {
		if errors.Is(err, m.err) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}

// CodeFromErr returns the machine readable code of the first matching sentinel.
func CodeFromErr(err error) string {
	for _, m := range statusCodeMap {
		if errors.Is(err, m.err) {
			return m.err.(*InternalError).Code
		}
	}
	return ErrCodeSystemError
}
