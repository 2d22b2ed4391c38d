package source

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error codes surfaced to callers.
const (
	CodeInvalidAddress       = "InvalidAddress"
	CodeInvalidParameter     = "InvalidParameter"
	CodeBackendUnreachable   = "BackendUnreachable"
	CodeBackendRejected      = "BackendRejected"
	CodeUnsupportedOperation = "UnsupportedOperation"
	CodeAllSourcesFailed     = "AllSourcesFailed"
	CodeSignerUnavailable    = "SignerUnavailable"
)

type BaseError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Cause   error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *BaseError) Unwrap() error {
	return e.Cause
}

func (e *BaseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ErrorWithStatusCode is implemented by errors that map onto an HTTP status.
type ErrorWithStatusCode interface {
	ErrorStatusCode() int
}

//
// Validation
//

type ErrInvalidAddress struct{ BaseError }

func NewErrInvalidAddress(address string, cause error) error {
	return &ErrInvalidAddress{
		BaseError{
			Code:    CodeInvalidAddress,
			Message: fmt.Sprintf("invalid TRON address %q", address),
			Cause:   cause,
			Details: map[string]any{"address": address},
		},
	}
}

func (e *ErrInvalidAddress) ErrorStatusCode() int { return http.StatusBadRequest }

type ErrInvalidParameter struct{ BaseError }

func NewErrInvalidParameter(name, reason string) error {
	return &ErrInvalidParameter{
		BaseError{
			Code:    CodeInvalidParameter,
			Message: fmt.Sprintf("invalid parameter %s: %s", name, reason),
			Details: map[string]any{"parameter": name},
		},
	}
}

func (e *ErrInvalidParameter) ErrorStatusCode() int { return http.StatusBadRequest }

//
// Backend errors
//

type ErrBackendUnreachable struct{ BaseError }

func NewErrBackendUnreachable(backend ID, cause error) error {
	return &ErrBackendUnreachable{
		BaseError{
			Code:    CodeBackendUnreachable,
			Message: fmt.Sprintf("%s unreachable", backend),
			Cause:   cause,
			Details: map[string]any{"source": backend},
		},
	}
}

func (e *ErrBackendUnreachable) ErrorStatusCode() int { return http.StatusBadGateway }

type ErrBackendRejected struct{ BaseError }

func NewErrBackendRejected(backend ID, status int, message string) error {
	details := map[string]any{"source": backend}
	if status > 0 {
		details["status"] = status
	}
	return &ErrBackendRejected{
		BaseError{
			Code:    CodeBackendRejected,
			Message: fmt.Sprintf("%s rejected request: %s", backend, message),
			Details: details,
		},
	}
}

func (e *ErrBackendRejected) ErrorStatusCode() int { return http.StatusBadGateway }

type ErrUnsupportedOperation struct{ BaseError }

func NewErrUnsupportedOperation(backend ID, op Operation) error {
	return &ErrUnsupportedOperation{
		BaseError{
			Code:    CodeUnsupportedOperation,
			Message: fmt.Sprintf("%s does not support %s", backend, op),
			Details: map[string]any{"source": backend, "operation": op},
		},
	}
}

func (e *ErrUnsupportedOperation) ErrorStatusCode() int { return http.StatusNotImplemented }

// ErrAlreadyBroadcast is a rejection raised locally, before any backend is
// contacted, for a transaction this gateway has already sent.
type ErrAlreadyBroadcast struct{ BaseError }

func NewErrAlreadyBroadcast(txID string) error {
	return &ErrAlreadyBroadcast{
		BaseError{
			Code:    CodeBackendRejected,
			Message: fmt.Sprintf("transaction %s already broadcast", txID),
			Details: map[string]any{"txId": txID},
		},
	}
}

func (e *ErrAlreadyBroadcast) ErrorStatusCode() int { return http.StatusConflict }

type ErrSignerUnavailable struct{ BaseError }

func NewErrSignerUnavailable(op Operation) error {
	return &ErrSignerUnavailable{
		BaseError{
			Code:    CodeSignerUnavailable,
			Message: fmt.Sprintf("%s needs a signing key and none is configured", op),
			Details: map[string]any{"operation": op},
		},
	}
}

func (e *ErrSignerUnavailable) ErrorStatusCode() int { return http.StatusServiceUnavailable }

//
// Aggregate
//

// Attempt is one recorded backend failure.
type Attempt struct {
	Source ID
	Err    error
}

type ErrAllSourcesFailed struct {
	BaseError
	Operation Operation
	Attempts  []Attempt
}

func NewErrAllSourcesFailed(op Operation, attempts []Attempt) error {
	parts := make([]string, 0, len(attempts))
	causes := make([]error, 0, len(attempts))
	for _, a := range attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Source, a.Err))
		causes = append(causes, a.Err)
	}
	msg := "no source could serve the request"
	if len(parts) > 0 {
		msg = strings.Join(parts, "; ")
	}
	return &ErrAllSourcesFailed{
		BaseError: BaseError{
			Code:    CodeAllSourcesFailed,
			Message: fmt.Sprintf("%s failed on all sources: %s", op, msg),
			Cause:   errors.Join(causes...),
			Details: map[string]any{"operation": op},
		},
		Operation: op,
		Attempts:  attempts,
	}
}

// Error omits the joined cause because the message already lists every
// backend failure.
func (e *ErrAllSourcesFailed) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ErrAllSourcesFailed) ErrorStatusCode() int { return http.StatusBadGateway }

// HasCode reports whether any error in err's chain carries code.
func HasCode(err error, code string) bool {
	for err != nil {
		if be := baseOf(err); be != nil && be.Code == code {
			return true
		}
		switch x := err.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range x.Unwrap() {
				if HasCode(inner, code) {
					return true
				}
			}
			return false
		default:
			err = errors.Unwrap(err)
		}
	}
	return false
}

// CodeOf returns the outermost error code in err's chain, or "" if none.
func CodeOf(err error) string {
	for err != nil {
		if be := baseOf(err); be != nil {
			return be.Code
		}
		err = errors.Unwrap(err)
	}
	return ""
}

func baseOf(err error) *BaseError {
	switch e := err.(type) {
	case *ErrInvalidAddress:
		return &e.BaseError
	case *ErrInvalidParameter:
		return &e.BaseError
	case *ErrBackendUnreachable:
		return &e.BaseError
	case *ErrBackendRejected:
		return &e.BaseError
	case *ErrUnsupportedOperation:
		return &e.BaseError
	case *ErrAllSourcesFailed:
		return &e.BaseError
	case *ErrAlreadyBroadcast:
		return &e.BaseError
	case *ErrSignerUnavailable:
		return &e.BaseError
	case *BaseError:
		return e
	}
	return nil
}

// StatusCode maps err onto an HTTP status, defaulting to 500.
func StatusCode(err error) int {
	var sc ErrorWithStatusCode
	if errors.As(err, &sc) {
		return sc.ErrorStatusCode()
	}
	return http.StatusInternalServerError
}
