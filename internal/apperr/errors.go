// Package apperr holds the error categories shared by the settlement engine
// and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

type ValidationError struct {
	Field string
	Msg   string
	Err   error
}

func (e *ValidationError) Error() string {
	switch {
	case e.Field != "" && e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Field, e.Msg)
	case e.Msg != "":
		return e.Msg
	case e.Field != "":
		return fmt.Sprintf("invalid %s", e.Field)
	default:
		return "validation error"
	}
}

func (e *ValidationError) Unwrap() error { return e.Err }

type NotFoundError struct {
	Resource string
	Err      error
}

func (e *NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

type ConflictError struct {
	Resource string
	Msg      string
	Err      error
}

func (e *ConflictError) Error() string {
	switch {
	case e.Resource != "" && e.Msg != "":
		return fmt.Sprintf("%s conflict: %s", e.Resource, e.Msg)
	case e.Msg != "":
		return e.Msg
	case e.Resource != "":
		return fmt.Sprintf("%s conflict", e.Resource)
	default:
		return "conflict"
	}
}

func (e *ConflictError) Unwrap() error { return e.Err }

type ForbiddenError struct {
	Msg string
}

func (e *ForbiddenError) Error() string {
	if e.Msg == "" {
		return "forbidden"
	}
	return e.Msg
}

// GatewayMessage is the only text about a provider failure that may reach
// an end user.
const GatewayMessage = "payment provider request failed"

// GatewayError describes a failed call to the external payment provider.
// Body carries the raw provider response and must only be logged.
type GatewayError struct {
	Op         string
	StatusCode int
	Status     string
	Body       string
	Err        error
}

func (e *GatewayError) Error() string { return GatewayMessage }

func (e *GatewayError) Unwrap() error { return e.Err }

// Detail returns the server-side description of the failure.
func (e *GatewayError) Detail() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Status != "":
		return fmt.Sprintf("%s: provider status %s", e.Op, e.Status)
	default:
		return fmt.Sprintf("%s: http %d: %s", e.Op, e.StatusCode, e.Body)
	}
}

func Validation(field, msg string) error { return &ValidationError{Field: field, Msg: msg} }

func NotFound(resource string) error { return &NotFoundError{Resource: resource} }

func Conflict(resource, msg string) error { return &ConflictError{Resource: resource, Msg: msg} }

func Forbidden(msg string) error { return &ForbiddenError{Msg: msg} }

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

func IsForbidden(err error) bool {
	var target *ForbiddenError
	return errors.As(err, &target)
}

func IsGateway(err error) bool {
	var target *GatewayError
	return errors.As(err, &target)
}

// AsGateway unwraps err into a GatewayError when it is one.
func AsGateway(err error) (*GatewayError, bool) {
	var target *GatewayError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
