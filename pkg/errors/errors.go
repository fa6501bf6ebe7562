package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeForbidden         Code = "FORBIDDEN"
	CodeNotFound          Code = "NOT_FOUND"
	CodeConflict          Code = "CONFLICT"
	CodeStateConflict     Code = "STATE_CONFLICT"
	CodeIdempotency       Code = "IDEMPOTENCY_KEY_REUSED"
	CodeInsufficientStock Code = "INSUFFICIENT_STOCK"
	CodeInternal          Code = "INTERNAL_ERROR"
	CodeDependency        Code = "DEPENDENCY_ERROR"
)

// Metadata is the transport-facing description of a Code.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

// catalog rows are {status, retryable, public message, details allowed}.
var catalog = map[Code]Metadata{
	CodeValidation:        {http.StatusBadRequest, false, "validation failed", true},
	CodeUnauthorized:      {http.StatusUnauthorized, false, "authentication required", false},
	CodeForbidden:         {http.StatusForbidden, false, "access denied", false},
	CodeNotFound:          {http.StatusNotFound, false, "resource not found", false},
	CodeConflict:          {http.StatusConflict, false, "conflict detected", false},
	CodeStateConflict:     {http.StatusUnprocessableEntity, false, "state transition disallowed", true},
	CodeIdempotency:       {http.StatusConflict, false, "idempotency key reused", true},
	CodeInsufficientStock: {http.StatusBadRequest, false, "insufficient stock", true},
	CodeInternal:          {http.StatusInternalServerError, true, "internal server error", false},
	CodeDependency:        {http.StatusServiceUnavailable, true, "dependency unavailable", true},
}

// StockShortage describes the line that could not be reserved.
type StockShortage struct {
	ItemName     string `json:"itemName"`
	Size         string `json:"size"`
	RemainingQty int    `json:"remainingQty"`
}

// NewInsufficientStock renders the shortage message shown to shoppers.
func NewInsufficientStock(shortage StockShortage) *Error {
	msg := fmt.Sprintf("Only %d stock is available for %s of size %s.", shortage.RemainingQty, shortage.ItemName, shortage.Size)
	if shortage.RemainingQty <= 0 {
		msg = fmt.Sprintf("No stock is available for %s of size %s. Please remove it.", shortage.ItemName, shortage.Size)
	}
	return New(CodeInsufficientStock, msg).WithDetails(shortage)
}

// MetadataFor falls back to CodeInternal for unknown codes.
func MetadataFor(code Code) Metadata {
	meta, ok := catalog[code]
	if !ok {
		return catalog[CodeInternal]
	}
	return meta
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.cause != nil:
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	default:
		return fmt.Sprintf("%s: %s", e.code, e.message)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the first *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if !stdErrors.As(err, &typed) {
		return nil
	}
	return typed
}

// IsCode reports whether err carries code anywhere in its chain.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}
