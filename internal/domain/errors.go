package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is the broad category of a domain error.
type ErrorKind string

const (
	// KindValidation: input rejected before any write.
	KindValidation ErrorKind = "VALIDATION"

	// KindConflict: the request contradicts current state.
	KindConflict ErrorKind = "CONFLICT"

	// KindNotFound: a referenced record does not exist or is not eligible.
	KindNotFound ErrorKind = "NOT_FOUND"

	// KindPersistence: the local store failed; nothing was committed.
	KindPersistence ErrorKind = "PERSISTENCE"

	// KindSync: remote delivery failed. Never blocks local flows.
	KindSync ErrorKind = "SYNC"
)

// Error codes.
const (
	CodeEmptyCart            = "EMPTY_CART"
	CodeInsufficientPayment  = "INSUFFICIENT_PAYMENT"
	CodeInvalidPaymentMethod = "INVALID_PAYMENT_METHOD"
	CodeInvalidAmount        = "INVALID_AMOUNT"
	CodeInvalidInput         = "INVALID_INPUT"
	CodeBelowMinimum         = "BELOW_MINIMUM"
	CodeDiscountNotFound     = "DISCOUNT_NOT_FOUND"
	CodeUsageLimitReached    = "USAGE_LIMIT_REACHED"
	CodeShiftAlreadyOpen     = "SHIFT_ALREADY_OPEN"
	CodeNoActiveShift        = "NO_ACTIVE_SHIFT"
	CodeCategoryInUse        = "CATEGORY_IN_USE"
	CodeDuplicateBarcode     = "DUPLICATE_BARCODE"
	CodeDuplicateCode        = "DUPLICATE_CODE"
	CodeNotFound             = "NOT_FOUND"
	CodeStoreWrite           = "STORE_WRITE"
	CodeStoreRead            = "STORE_READ"
	CodeRemoteFailed         = "REMOTE_FAILED"
	CodeRemoteUnavailable    = "REMOTE_UNAVAILABLE"
)

// Error is the error type returned by every component for failures callers
// are expected to act on.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string

	// Details carries structured context (ids, amounts) for callers and logs.
	Details map[string]string

	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidationError creates a KindValidation error.
func NewValidationError(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

// NewConflictError creates a KindConflict error.
func NewConflictError(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

// NewNotFoundError creates a KindNotFound error.
func NewNotFoundError(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

// NewPersistenceError wraps a store failure.
func NewPersistenceError(message string, err error) *Error {
	return &Error{Kind: KindPersistence, Code: CodeStoreWrite, Message: message, Err: err}
}

// NewSyncError wraps a remote failure.
func NewSyncError(message string, err error) *Error {
	return &Error{Kind: KindSync, Code: CodeRemoteFailed, Message: message, Err: err}
}

// With attaches a detail and returns e.
func (e *Error) With(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsConflict reports whether err is a conflict error.
func IsConflict(err error) bool { return KindOf(err) == KindConflict }

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsPersistence reports whether err is a persistence error.
func IsPersistence(err error) bool { return KindOf(err) == KindPersistence }

// IsSync reports whether err is a sync error.
func IsSync(err error) bool { return KindOf(err) == KindSync }

// AsPersistence returns err unchanged when it already carries a domain kind,
// and wraps it as a persistence error otherwise.
func AsPersistence(message string, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != "" {
		return err
	}
	return NewPersistenceError(message, err)
}
