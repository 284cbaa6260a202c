// Package apperr carries domain failures with a machine code and a message
// that is safe to show to clinic staff.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Code string

const (
	CodeInvalid         Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "ALREADY_EXISTS"
	CodePrecondition    Code = "FAILED_PRECONDITION"
	CodeForbidden       Code = "PERMISSION_DENIED"
	CodeUnauthenticated Code = "UNAUTHENTICATED"
	CodeInternal        Code = "INTERNAL"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	case CodeInvalid:
		return codes.InvalidArgument
	case CodeNotFound:
		return codes.NotFound
	case CodeConflict:
		return codes.AlreadyExists
	case CodePrecondition:
		return codes.FailedPrecondition
	case CodeForbidden:
		return codes.PermissionDenied
	case CodeUnauthenticated:
		return codes.Unauthenticated
	default:
		return codes.Internal
	}
}

type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// GRPCStatus lets status.FromError and the grpc server see the mapped code.
func (e *Error) GRPCStatus() *status.Status {
	return status.New(e.Code.GRPCCode(), e.Message)
}

func Invalid(msg string) error { return &Error{Code: CodeInvalid, Message: msg} }

// NotFound builds "<Entity> not found".
func NotFound(entity string) error {
	return &Error{Code: CodeNotFound, Message: entity + " not found"}
}

func Conflict(msg string) error     { return &Error{Code: CodeConflict, Message: msg} }
func Precondition(msg string) error { return &Error{Code: CodePrecondition, Message: msg} }
func Forbidden(msg string) error    { return &Error{Code: CodeForbidden, Message: msg} }

func Unauthenticated(msg string) error {
	return &Error{Code: CodeUnauthenticated, Message: msg}
}

// Internal hides err from callers; it stays reachable through Unwrap for logs.
func Internal(err error) error {
	return &Error{Code: CodeInternal, Message: "internal error", Err: err}
}

// CodeOf extracts the domain code, CodeInternal for anything else.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	if s, ok := status.FromError(err); ok && s.Code() != codes.OK {
		switch s.Code() {
		case codes.InvalidArgument:
			return CodeInvalid
		case codes.NotFound:
			return CodeNotFound
		case codes.AlreadyExists:
			return CodeConflict
		case codes.FailedPrecondition:
			return CodePrecondition
		case codes.PermissionDenied:
			return CodeForbidden
		case codes.Unauthenticated:
			return CodeUnauthenticated
		}
	}
	return CodeInternal
}

// HTTPStatus is used by the REST auth routes.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeInvalid:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodePrecondition:
		return http.StatusUnprocessableEntity
	case CodeForbidden:
		return http.StatusForbidden
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
