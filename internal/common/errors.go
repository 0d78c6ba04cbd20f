package common

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies an expected failure so callers handle each case explicitly
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindNotFound
	KindInsufficientStock
	KindContention
	KindValidation
	KindConflict
	KindUnauthorized
	KindForbidden
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInsufficientStock:
		return "insufficient_stock"
	case KindContention:
		return "contention"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	default:
		return "internal"
	}
}

// HTTPStatus is the status code a kind is reported with
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindInsufficientStock, KindValidation:
		return http.StatusBadRequest
	case KindContention, KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Code is the machine readable code placed in the error envelope
func (k ErrorKind) Code() string {
	switch k {
	case KindNotFound:
		return "NOT_FOUND"
	case KindInsufficientStock:
		return "INSUFFICIENT_STOCK"
	case KindContention:
		return "CONTENTION"
	case KindValidation:
		return "VALIDATION_ERROR"
	case KindConflict:
		return "CONFLICT"
	case KindUnauthorized:
		return "UNAUTHORIZED"
	case KindForbidden:
		return "FORBIDDEN"
	default:
		return "SERVER_ERROR"
	}
}

// AppError is the error type returned across the service boundary.
// Message is safe to show to clients; Err is the internal cause.
type AppError struct {
	Kind    ErrorKind
	Message string
	Details map[string]string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches another *AppError of the same kind, so sentinel comparisons
// like errors.Is(err, ErrContention) work regardless of message.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// Kind sentinels for errors.Is
var (
	ErrNotFound          = &AppError{Kind: KindNotFound}
	ErrInsufficientStock = &AppError{Kind: KindInsufficientStock}
	ErrContention        = &AppError{Kind: KindContention}
	ErrInternal          = &AppError{Kind: KindInternal}
	ErrValidation        = &AppError{Kind: KindValidation}
	ErrConflict          = &AppError{Kind: KindConflict}
)

func NewNotFound(message string) *AppError {
	return &AppError{Kind: KindNotFound, Message: message}
}

func NewInsufficientStock(message string) *AppError {
	return &AppError{Kind: KindInsufficientStock, Message: message}
}

func NewContention(message string, cause error) *AppError {
	return &AppError{Kind: KindContention, Message: message, Err: cause}
}

func NewInternal(message string, cause error) *AppError {
	return &AppError{Kind: KindInternal, Message: message, Err: cause}
}

func NewValidation(field, message string) *AppError {
	return &AppError{Kind: KindValidation, Message: "Validation failed", Details: map[string]string{field: message}}
}

func NewConflict(message string, cause error) *AppError {
	return &AppError{Kind: KindConflict, Message: message, Err: cause}
}

func NewUnauthorized(message string) *AppError {
	return &AppError{Kind: KindUnauthorized, Message: message}
}

func NewForbidden(message string) *AppError {
	return &AppError{Kind: KindForbidden, Message: message}
}

// KindOf returns the kind of err, KindInternal for foreign errors
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}
